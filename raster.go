package pyramid

import (
	"image"
	"image/color"
)

// Raster is an in-memory decoded pixel buffer with a geographic extent.
// Pixels are stored RGBA, 4 bytes per pixel, with the image's top row at the
// sector's maximum latitude.
//
// A Raster owns its pixel buffer until Dispose is called. Dispose is
// idempotent; all other operations fail or no-op on a disposed raster.
type Raster struct {
	sector Sector
	img    *image.RGBA // nil once disposed
}

// NewRaster allocates a blank, fully transparent raster covering the sector.
func NewRaster(width, height int, sector Sector) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, &ValidationError{Param: "raster dimensions", Reason: "width and height must be positive"}
	}
	if !sector.IsValid() {
		return nil, &ValidationError{Param: "raster sector", Reason: "sector has no extent"}
	}
	return &Raster{
		sector: sector,
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

// FromImage wraps an already-decoded image in a raster covering the sector.
// Non-RGBA images are converted.
func FromImage(img image.Image, sector Sector) (*Raster, error) {
	if img == nil {
		return nil, &ValidationError{Param: "raster image", Reason: "image is nil"}
	}
	bounds := img.Bounds()
	r, err := NewRaster(bounds.Dx(), bounds.Dy(), sector)
	if err != nil {
		return nil, err
	}
	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) {
		copy(r.img.Pix, rgba.Pix)
		return r, nil
	}
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r.img.Set(x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return r, nil
}

// Width returns the raster width in pixels, or 0 if disposed.
func (r *Raster) Width() int {
	if r.img == nil {
		return 0
	}
	return r.img.Rect.Dx()
}

// Height returns the raster height in pixels, or 0 if disposed.
func (r *Raster) Height() int {
	if r.img == nil {
		return 0
	}
	return r.img.Rect.Dy()
}

// Sector returns the raster's geographic extent.
func (r *Raster) Sector() Sector { return r.sector }

// Size returns the pixel buffer size in bytes, or 0 if disposed.
func (r *Raster) Size() int64 {
	if r.img == nil {
		return 0
	}
	return int64(len(r.img.Pix))
}

// Image returns the underlying pixel buffer, or nil if disposed.
func (r *Raster) Image() *image.RGBA { return r.img }

// Disposed reports whether the pixel buffer has been released.
func (r *Raster) Disposed() bool { return r.img == nil }

// Dispose releases the pixel buffer. Safe to call more than once.
func (r *Raster) Dispose() {
	r.img = nil
}

// At returns the pixel color at (x, y), or transparent black when out of
// bounds or disposed.
func (r *Raster) At(x, y int) color.RGBA {
	if r.img == nil {
		return color.RGBA{}
	}
	b := r.img.Rect
	if x < 0 || y < 0 || x >= b.Dx() || y >= b.Dy() {
		return color.RGBA{}
	}
	return r.img.RGBAAt(x, y)
}

// SubRaster extracts the portion of the raster covering the given sector as
// a new, independently owned raster. The sector is clipped to the raster's
// extent; ErrNoIntersection is returned when there is no overlap and
// ErrDisposed when the buffer is gone.
func (r *Raster) SubRaster(sector Sector) (*Raster, error) {
	if r.img == nil {
		return nil, ErrDisposed
	}
	clipped, ok := r.sector.Intersection(sector)
	if !ok {
		return nil, ErrNoIntersection
	}

	w, h := r.Width(), r.Height()
	x0 := int((clipped.MinLon - r.sector.MinLon) / r.sector.DeltaLon() * float64(w))
	x1 := int((clipped.MaxLon - r.sector.MinLon) / r.sector.DeltaLon() * float64(w))
	y0 := int((r.sector.MaxLat - clipped.MaxLat) / r.sector.DeltaLat() * float64(h))
	y1 := int((r.sector.MaxLat - clipped.MinLat) / r.sector.DeltaLat() * float64(h))
	x0, x1 = clampInt(x0, 0, w), clampInt(x1, 0, w)
	y0, y1 = clampInt(y0, 0, h), clampInt(y1, 0, h)
	if x1 <= x0 || y1 <= y0 {
		return nil, ErrNoIntersection
	}

	sub, err := NewRaster(x1-x0, y1-y0, clipped)
	if err != nil {
		return nil, err
	}
	for y := y0; y < y1; y++ {
		srcOff := r.img.PixOffset(x0, y)
		dstOff := sub.img.PixOffset(0, y-y0)
		copy(sub.img.Pix[dstOff:dstOff+(x1-x0)*4], r.img.Pix[srcOff:srcOff+(x1-x0)*4])
	}
	return sub, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
