package format

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Register decoders with the image package.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/terratile/pyramid"
)

// imageExtensions are the file extensions the stock reader accepts.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".tif": true, ".tiff": true, ".bmp": true,
}

// ImageReader decodes PNG, JPEG, TIFF and BMP sources. The source's sector
// comes from its parameters when set, otherwise from a world file sidecar.
type ImageReader struct{}

// NewImageReader creates the stock image reader.
func NewImageReader() *ImageReader { return &ImageReader{} }

// CanRead accepts sources with a known image extension. Declining a source
// is not an error.
func (r *ImageReader) CanRead(src *pyramid.DataSource) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(src.Path))]
}

// ReadMetadata fills the source's dimensions from the image header and its
// sector from the world file sidecar, without a full decode. Fields already
// set are kept.
func (r *ImageReader) ReadMetadata(src *pyramid.DataSource) error {
	p := &src.Params

	if p.Width == 0 || p.Height == 0 {
		f, err := os.Open(src.Path)
		if err != nil {
			return fmt.Errorf("format: open %q: %w", src.Path, err)
		}
		cfg, _, err := image.DecodeConfig(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("format: decode header %q: %w", src.Path, err)
		}
		p.Width = cfg.Width
		p.Height = cfg.Height
	}

	if p.Sector == nil {
		wfPath, ok := WorldFilePath(src.Path)
		if !ok {
			return fmt.Errorf("format: %q has no sector and no world file", src.Path)
		}
		wf, err := ReadWorldFile(wfPath)
		if err != nil {
			return err
		}
		sector, err := wf.Sector(p.Width, p.Height)
		if err != nil {
			return err
		}
		p.Sector = &sector
	}

	if p.PixelFormat == "" {
		p.PixelFormat = "RGBA"
	}
	return nil
}

// Read fully decodes the source into a single raster covering its sector.
func (r *ImageReader) Read(src *pyramid.DataSource) ([]*pyramid.Raster, error) {
	if src.Params.Sector == nil {
		if err := r.ReadMetadata(src); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("format: open %q: %w", src.Path, err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("format: decode %q: %w", src.Path, err)
	}
	raster, err := pyramid.FromImage(img, *src.Params.Sector)
	if err != nil {
		return nil, err
	}
	return []*pyramid.Raster{raster}, nil
}

// Readers returns the stock reader list for builder registration.
func Readers() []pyramid.Reader {
	return []pyramid.Reader{NewImageReader()}
}
