package format

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/terratile/pyramid"
)

// jpegQuality is the encode quality for JPEG tiles.
const jpegQuality = 85

// encodeFunc encodes an image to a stream in one concrete format.
type encodeFunc func(w io.Writer, img image.Image) error

// ImageWriter persists tiles in one image format, selected by file suffix.
type ImageWriter struct {
	suffixes map[string]bool
	encode   encodeFunc
}

// CanWrite accepts undisposed rasters whose format suffix matches.
func (w *ImageWriter) CanWrite(r *pyramid.Raster, suffix string) bool {
	return !r.Disposed() && w.suffixes[suffix]
}

// Write encodes the raster to the destination path. Failures are per-tile:
// the temp-free single-file write either fully succeeds or leaves an error
// for the caller to log and skip.
func (w *ImageWriter) Write(r *pyramid.Raster, suffix, dest string) error {
	if r.Disposed() {
		return pyramid.ErrDisposed
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("format: create %q: %w", dest, err)
	}
	if err := w.encode(f, r.Image()); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("format: encode %q: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("format: close %q: %w", dest, err)
	}
	return nil
}

// NewPNGWriter writes "png" tiles.
func NewPNGWriter() *ImageWriter {
	return &ImageWriter{
		suffixes: map[string]bool{"png": true},
		encode:   func(w io.Writer, img image.Image) error { return png.Encode(w, img) },
	}
}

// NewJPEGWriter writes "jpg"/"jpeg" tiles. Alpha is dropped on encode.
func NewJPEGWriter() *ImageWriter {
	return &ImageWriter{
		suffixes: map[string]bool{"jpg": true, "jpeg": true},
		encode: func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
		},
	}
}

// NewTIFFWriter writes "tif"/"tiff" tiles with deflate compression.
func NewTIFFWriter() *ImageWriter {
	return &ImageWriter{
		suffixes: map[string]bool{"tif": true, "tiff": true},
		encode: func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		},
	}
}

// NewBMPWriter writes "bmp" tiles.
func NewBMPWriter() *ImageWriter {
	return &ImageWriter{
		suffixes: map[string]bool{"bmp": true},
		encode:   func(w io.Writer, img image.Image) error { return bmp.Encode(w, img) },
	}
}

// Writers returns the stock writer list for builder registration.
func Writers() []pyramid.Writer {
	return []pyramid.Writer{NewPNGWriter(), NewJPEGWriter(), NewTIFFWriter(), NewBMPWriter()}
}
