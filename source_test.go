package pyramid

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
	"testing"
)

// fakeReader serves rasters from memory and counts decode passes.
type fakeReader struct {
	sector       Sector
	width        int
	height       int
	fill         color.RGBA
	readErr      error
	metadataErr  error
	reads        int
	metadataRuns int
}

func (f *fakeReader) CanRead(src *DataSource) bool {
	return strings.HasSuffix(src.Path, ".fake")
}

func (f *fakeReader) ReadMetadata(src *DataSource) error {
	f.metadataRuns++
	if f.metadataErr != nil {
		return f.metadataErr
	}
	p := &src.Params
	if p.Sector == nil {
		sec := f.sector
		p.Sector = &sec
	}
	if p.Width == 0 {
		p.Width = f.width
	}
	if p.Height == 0 {
		p.Height = f.height
	}
	return nil
}

func (f *fakeReader) Read(src *DataSource) ([]*Raster, error) {
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	r, err := NewRaster(f.width, f.height, f.sector)
	if err != nil {
		return nil, err
	}
	img := r.Image()
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			img.SetRGBA(x, y, f.fill)
		}
	}
	return []*Raster{r}, nil
}

func fakeSource(path string) *DataSource {
	return &DataSource{Path: path}
}

func TestCachedSourceFillsMetadata(t *testing.T) {
	reader := &fakeReader{
		sector: Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8},
		width:  64, height: 64,
	}
	src := fakeSource("input.fake")
	cs, err := newCachedSource(src, reader, NewRasterCache(0))
	if err != nil {
		t.Fatalf("newCachedSource: %v", err)
	}
	if reader.metadataRuns != 1 {
		t.Errorf("expected 1 metadata pass, got %d", reader.metadataRuns)
	}
	if cs.Sector() != reader.sector {
		t.Errorf("expected sector %v, got %v", reader.sector, cs.Sector())
	}
	want := LatLon{Lat: 0.125, Lon: 0.125}
	if got := cs.PixelDelta(); got != want {
		t.Errorf("expected pixel delta %v, got %v", want, got)
	}
}

func TestCachedSourceSkipsMetadataWhenComplete(t *testing.T) {
	reader := &fakeReader{width: 64, height: 64}
	sec := Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8}
	src := &DataSource{Path: "input.fake", Params: SourceParams{Sector: &sec, Width: 64, Height: 64}}
	if _, err := newCachedSource(src, reader, NewRasterCache(0)); err != nil {
		t.Fatalf("newCachedSource: %v", err)
	}
	if reader.metadataRuns != 0 {
		t.Errorf("expected no metadata pass, got %d", reader.metadataRuns)
	}
}

func TestCachedSourceIncompleteMetadata(t *testing.T) {
	// Reader that fills nothing useful.
	reader := &fakeReader{sector: Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8}}
	_, err := newCachedSource(fakeSource("input.fake"), reader, NewRasterCache(0))
	if !errors.Is(err, ErrIncompleteMetadata) {
		t.Fatalf("expected ErrIncompleteMetadata, got %v", err)
	}
	var aerr *AssemblyError
	if !errors.As(err, &aerr) || aerr.Source != "input.fake" {
		t.Errorf("expected AssemblyError naming the source, got %v", err)
	}
}

func TestCachedSourceMetadataError(t *testing.T) {
	reader := &fakeReader{metadataErr: fmt.Errorf("corrupt header")}
	_, err := newCachedSource(fakeSource("input.fake"), reader, NewRasterCache(0))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var aerr *AssemblyError
	if !errors.As(err, &aerr) {
		t.Errorf("expected AssemblyError, got %T", err)
	}
}

func TestMaterializeDecodesOnce(t *testing.T) {
	reader := &fakeReader{
		sector: Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8},
		width:  16, height: 16,
		fill: color.RGBA{R: 255, A: 255},
	}
	rc := NewRasterCache(0)
	cs, err := newCachedSource(fakeSource("input.fake"), reader, rc)
	if err != nil {
		t.Fatalf("newCachedSource: %v", err)
	}

	first, err := cs.materialize()
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	second, err := cs.materialize()
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if reader.reads != 1 {
		t.Errorf("expected 1 decode, got %d", reader.reads)
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Error("expected the identical cached raster slice")
	}
	if rc.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", rc.Len())
	}
	if rc.Used() != 16*16*4 {
		t.Errorf("expected %d cached bytes, got %d", 16*16*4, rc.Used())
	}
}

func TestMaterializeRecordsFailureOnce(t *testing.T) {
	reader := &fakeReader{
		sector: Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8},
		width:  16, height: 16,
		readErr: fmt.Errorf("truncated file"),
	}
	rc := NewRasterCache(0)
	cs, err := newCachedSource(fakeSource("bad.fake"), reader, rc)
	if err != nil {
		t.Fatalf("newCachedSource: %v", err)
	}

	if _, err := cs.materialize(); err == nil {
		t.Fatal("expected decode error, got nil")
	}
	if _, err := cs.materialize(); err == nil {
		t.Fatal("expected recorded failure, got nil")
	}
	if reader.reads != 1 {
		t.Errorf("expected failing source decoded once, got %d reads", reader.reads)
	}
}

func TestRasterCacheBudgetExceeded(t *testing.T) {
	rc := NewRasterCache(64) // far below one 16x16 raster
	reader := &fakeReader{
		sector: Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8},
		width:  16, height: 16,
	}
	cs, err := newCachedSource(fakeSource("input.fake"), reader, rc)
	if err != nil {
		t.Fatalf("newCachedSource: %v", err)
	}
	_, err = cs.materialize()
	if !errors.Is(err, ErrMemoryBudget) {
		t.Fatalf("expected ErrMemoryBudget, got %v", err)
	}
	if rc.Len() != 0 {
		t.Errorf("expected empty cache after rejection, got %d entries", rc.Len())
	}
}

func TestRasterCacheEvictsForNewSource(t *testing.T) {
	budget := int64(16 * 16 * 4)
	rc := NewRasterCache(budget)
	mk := func(path string) *cachedSource {
		reader := &fakeReader{
			sector: Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8},
			width:  16, height: 16,
		}
		cs, err := newCachedSource(fakeSource(path), reader, rc)
		if err != nil {
			t.Fatalf("newCachedSource: %v", err)
		}
		return cs
	}
	a, b := mk("a.fake"), mk("b.fake")
	if _, err := a.materialize(); err != nil {
		t.Fatalf("materialize a: %v", err)
	}
	// b fills the whole budget too: a is evicted, b admitted.
	if _, err := b.materialize(); err != nil {
		t.Fatalf("materialize b: %v", err)
	}
	if rc.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", rc.Len())
	}
	if _, ok := rc.Get("b.fake"); !ok {
		t.Error("expected b.fake cached")
	}
}

func TestCacheClearDisposesRasters(t *testing.T) {
	reader := &fakeReader{
		sector: Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8},
		width:  8, height: 8,
	}
	rc := NewRasterCache(0)
	cs, err := newCachedSource(fakeSource("input.fake"), reader, rc)
	if err != nil {
		t.Fatalf("newCachedSource: %v", err)
	}
	rasters, err := cs.materialize()
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	rc.Clear()
	if !rasters[0].Disposed() {
		t.Error("expected cached raster disposed on Clear")
	}
	if rc.Len() != 0 || rc.Used() != 0 {
		t.Errorf("expected empty cache, got len %d used %d", rc.Len(), rc.Used())
	}
}

func TestCachedSourceSubRaster(t *testing.T) {
	reader := &fakeReader{
		sector: Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8},
		width:  16, height: 16,
		fill: color.RGBA{B: 255, A: 255},
	}
	cs, err := newCachedSource(fakeSource("input.fake"), reader, NewRasterCache(0))
	if err != nil {
		t.Fatalf("newCachedSource: %v", err)
	}
	sub, err := cs.SubRaster(Sector{MinLat: 0, MaxLat: 4, MinLon: 0, MaxLon: 4})
	if err != nil {
		t.Fatalf("SubRaster: %v", err)
	}
	if sub.Width() != 8 || sub.Height() != 8 {
		t.Errorf("expected 8x8 sub raster, got %dx%d", sub.Width(), sub.Height())
	}

	_, err = cs.SubRaster(Sector{MinLat: 50, MaxLat: 60, MinLon: 50, MaxLon: 60})
	if !errors.Is(err, ErrNoIntersection) {
		t.Errorf("expected ErrNoIntersection, got %v", err)
	}
}

func TestMemorySource(t *testing.T) {
	sec := Sector{MinLat: 0, MaxLat: 4, MinLon: 0, MaxLon: 4}
	r, err := NewRaster(8, 8, sec)
	if err != nil {
		t.Fatalf("NewRaster: %v", err)
	}
	img := r.Image()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	ms := &memorySource{raster: r}
	if ms.Sector() != sec {
		t.Errorf("expected sector %v, got %v", sec, ms.Sector())
	}
	if got := ms.PixelDelta(); got != (LatLon{Lat: 0.5, Lon: 0.5}) {
		t.Errorf("expected pixel delta 0.5, got %v", got)
	}
	canvas, err := NewRaster(8, 8, sec)
	if err != nil {
		t.Fatalf("NewRaster: %v", err)
	}
	ms.ComposeOnto(canvas)
	if got := canvas.At(4, 4); got.A != 255 {
		t.Errorf("expected canvas painted, got %v", got)
	}
}

func TestFindReaderAndWriter(t *testing.T) {
	accepting := &fakeReader{sector: FullSphere, width: 1, height: 1}
	if _, ok := FindReader([]Reader{accepting}, fakeSource("x.fake")); !ok {
		t.Error("expected reader found")
	}
	if _, ok := FindReader([]Reader{accepting}, fakeSource("x.unknown")); ok {
		t.Error("expected no reader for unknown suffix")
	}
	if _, ok := FindWriter(nil, nil, "png"); ok {
		t.Error("expected no writer from empty list")
	}
}
