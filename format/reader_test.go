package format

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/terratile/pyramid"
)

func writePNG(t *testing.T, path string, w, h int, fill color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Encode: %v", err)
	}
}

func TestImageReaderCanRead(t *testing.T) {
	r := NewImageReader()
	for _, path := range []string{"a.png", "b.JPG", "c.tiff", "d.bmp"} {
		if !r.CanRead(&pyramid.DataSource{Path: path}) {
			t.Errorf("expected %s accepted", path)
		}
	}
	for _, path := range []string{"a.txt", "b.xml", "c"} {
		if r.CanRead(&pyramid.DataSource{Path: path}) {
			t.Errorf("expected %s declined", path)
		}
	}
}

func TestImageReaderMetadataFromWorldFile(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "scene.png")
	writePNG(t, img, 40, 20, color.RGBA{R: 255, A: 255})
	// 40x20 pixels at 0.25°/pixel anchored at lon 10, lat 25.
	writeFile(t, filepath.Join(dir, "scene.pgw"), "0.25\n0\n0\n-0.25\n10.125\n24.875\n")

	src := &pyramid.DataSource{Path: img}
	r := NewImageReader()
	if err := r.ReadMetadata(src); err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if src.Params.Width != 40 || src.Params.Height != 20 {
		t.Errorf("expected 40x20, got %dx%d", src.Params.Width, src.Params.Height)
	}
	want := pyramid.Sector{MinLat: 20, MaxLat: 25, MinLon: 10, MaxLon: 20}
	if src.Params.Sector == nil || *src.Params.Sector != want {
		t.Errorf("expected sector %v, got %v", want, src.Params.Sector)
	}
	if src.Params.PixelFormat != "RGBA" {
		t.Errorf("expected RGBA default, got %q", src.Params.PixelFormat)
	}
}

func TestImageReaderMetadataKeepsExplicitSector(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "scene.png")
	writePNG(t, img, 8, 8, color.RGBA{A: 255})

	explicit := pyramid.Sector{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}
	src := &pyramid.DataSource{Path: img, Params: pyramid.SourceParams{Sector: &explicit}}
	if err := NewImageReader().ReadMetadata(src); err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if *src.Params.Sector != explicit {
		t.Errorf("expected explicit sector kept, got %v", *src.Params.Sector)
	}
}

func TestImageReaderMetadataMissingWorldFile(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "scene.png")
	writePNG(t, img, 8, 8, color.RGBA{A: 255})
	if err := NewImageReader().ReadMetadata(&pyramid.DataSource{Path: img}); err == nil {
		t.Error("expected error without sector or world file")
	}
}

func TestImageReaderRead(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "scene.png")
	fill := color.RGBA{R: 30, G: 90, B: 210, A: 255}
	writePNG(t, img, 16, 16, fill)

	sec := pyramid.Sector{MinLat: 0, MaxLat: 4, MinLon: 0, MaxLon: 4}
	src := &pyramid.DataSource{Path: img, Params: pyramid.SourceParams{Sector: &sec, Width: 16, Height: 16}}
	rasters, err := NewImageReader().Read(src)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rasters) != 1 {
		t.Fatalf("expected 1 raster, got %d", len(rasters))
	}
	r := rasters[0]
	if r.Width() != 16 || r.Height() != 16 || r.Sector() != sec {
		t.Errorf("unexpected raster %dx%d %v", r.Width(), r.Height(), r.Sector())
	}
	if got := r.At(8, 8); got != fill {
		t.Errorf("expected %v, got %v", fill, got)
	}
}

func TestImageReaderReadMissingFile(t *testing.T) {
	sec := pyramid.FullSphere
	src := &pyramid.DataSource{
		Path:   filepath.Join(t.TempDir(), "absent.png"),
		Params: pyramid.SourceParams{Sector: &sec, Width: 1, Height: 1},
	}
	if _, err := NewImageReader().Read(src); err == nil {
		t.Error("expected error for missing file")
	}
}
