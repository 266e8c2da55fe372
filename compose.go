package pyramid

import (
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Compose resamples this raster onto the canvas, aligned by shared
// geography, using bilinear interpolation and alpha-over blending.
//
// The affine transform maps source pixel space to canvas pixel space
// consistent with each raster's sector-to-pixel relationship; output is
// clipped to the canvas bounds. Composing rasters whose sectors do not
// intersect is a no-op, not an error. This primitive is the numerical
// foundation of every tile-build step: both burning sources into leaf tiles
// and downsampling four children into their parent go through it.
func (r *Raster) Compose(canvas *Raster) error {
	if r.img == nil || canvas.img == nil {
		return ErrDisposed
	}
	if !r.sector.Intersects(canvas.sector) {
		return nil
	}

	// Degrees per pixel on each axis, for both rasters.
	srcDLon := r.sector.DeltaLon() / float64(r.Width())
	srcDLat := r.sector.DeltaLat() / float64(r.Height())
	dstDLon := canvas.sector.DeltaLon() / float64(canvas.Width())
	dstDLat := canvas.sector.DeltaLat() / float64(canvas.Height())

	// Source pixel (u, v) -> canvas pixel (sx*u + tx, sy*v + ty).
	// Pixel y grows south, so v is anchored at the maximum latitude.
	sx := srcDLon / dstDLon
	sy := srcDLat / dstDLat
	tx := (r.sector.MinLon - canvas.sector.MinLon) / dstDLon
	ty := (canvas.sector.MaxLat - r.sector.MaxLat) / dstDLat

	xdraw.BiLinear.Transform(canvas.img,
		f64.Aff3{sx, 0, tx, 0, sy, ty},
		r.img, r.img.Bounds(), xdraw.Over, nil)
	return nil
}
