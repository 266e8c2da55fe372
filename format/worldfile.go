package format

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/terratile/pyramid"
)

// ErrRotatedWorldFile is returned when a world file carries rotation terms;
// only axis-aligned rasters are supported.
var ErrRotatedWorldFile = errors.New("format: rotated world files not supported")

// WorldFile is the six-parameter affine georeferencing sidecar used by most
// GIS tools: pixel sizes, rotation terms, and the map coordinates of the
// center of the upper-left pixel. The y pixel size is negative because
// raster rows grow south.
type WorldFile struct {
	XScale float64 // A: pixel width in degrees of longitude
	YRot   float64 // D: rotation (must be 0)
	XRot   float64 // B: rotation (must be 0)
	YScale float64 // E: pixel height, negative
	X      float64 // C: longitude of the upper-left pixel center
	Y      float64 // F: latitude of the upper-left pixel center
}

// worldExtensions maps an image extension to its conventional world-file
// extension. The generic ".wld" is always tried as a fallback.
var worldExtensions = map[string]string{
	".png":  ".pgw",
	".jpg":  ".jgw",
	".jpeg": ".jgw",
	".tif":  ".tfw",
	".tiff": ".tfw",
	".bmp":  ".bpw",
}

// WorldFilePath returns the path of the world file accompanying an image
// path, or ok=false when no sidecar exists.
func WorldFilePath(imagePath string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(imagePath))
	base := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
	if wext, ok := worldExtensions[ext]; ok {
		if p := base + wext; fileExists(p) {
			return p, true
		}
	}
	if p := base + ".wld"; fileExists(p) {
		return p, true
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadWorldFile parses the six-line affine sidecar.
func ReadWorldFile(path string) (*WorldFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("format: read world file: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 6 {
		return nil, fmt.Errorf("format: world file %q: want 6 values, got %d", path, len(fields))
	}
	vals := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("format: world file %q line %d: %w", path, i+1, err)
		}
		vals[i] = v
	}
	return &WorldFile{
		XScale: vals[0], YRot: vals[1], XRot: vals[2],
		YScale: vals[3], X: vals[4], Y: vals[5],
	}, nil
}

// Sector derives the geographic extent of a width x height raster
// georeferenced by the world file.
func (w *WorldFile) Sector(width, height int) (pyramid.Sector, error) {
	if w.XRot != 0 || w.YRot != 0 {
		return pyramid.Sector{}, ErrRotatedWorldFile
	}
	if w.XScale <= 0 || w.YScale >= 0 {
		return pyramid.Sector{}, fmt.Errorf("format: world file scales out of range (%g, %g)", w.XScale, w.YScale)
	}
	// X/Y reference the center of the upper-left pixel; edges sit half a
	// pixel out.
	minLon := w.X - w.XScale/2
	maxLat := w.Y - w.YScale/2
	return pyramid.Sector{
		MinLat: maxLat + w.YScale*float64(height),
		MaxLat: maxLat,
		MinLon: minLon,
		MaxLon: minLon + w.XScale*float64(width),
	}, nil
}

// WriteWorldFile writes the sidecar for a raster's sector and dimensions
// next to the given image path.
func WriteWorldFile(imagePath string, sector pyramid.Sector, width, height int) error {
	ext := strings.ToLower(filepath.Ext(imagePath))
	wext, ok := worldExtensions[ext]
	if !ok {
		wext = ".wld"
	}
	path := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + wext

	xScale := sector.DeltaLon() / float64(width)
	yScale := -sector.DeltaLat() / float64(height)
	content := fmt.Sprintf("%.12f\n0.0\n0.0\n%.12f\n%.12f\n%.12f\n",
		xScale, yScale, sector.MinLon+xScale/2, sector.MaxLat+yScale/2)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("format: write world file: %w", err)
	}
	return nil
}
