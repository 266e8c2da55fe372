package pyramid

import (
	"fmt"

	"github.com/terratile/pyramid/cache"
)

// SourceParams carries the metadata a reader needs to place and decode a
// source. Fields a reader can discover itself may be left zero; the
// production pipeline invokes ReadMetadata once to fill the gaps. Extra is a
// narrow side-map for format-specific passthrough values.
type SourceParams struct {
	Sector      *Sector
	Width       int
	Height      int
	PixelFormat string
	DataType    string
	ByteOrder   string
	Extra       map[string]string
}

// DataSource is an opaque source handle plus its parameters. Sources are
// registered before production starts and are immutable once production
// begins.
type DataSource struct {
	Path   string
	Params SourceParams
}

// Key returns the source's identity, used as its cache key.
func (s *DataSource) Key() string { return s.Path }

// Reader decodes a class of raster sources.
//
// CanRead is a cheap acceptance test; declining a source is a boolean
// result, not an error. ReadMetadata fills missing SourceParams fields in
// place without a full decode. Read performs the full decode; a source may
// decode to more than one raster.
type Reader interface {
	CanRead(src *DataSource) bool
	ReadMetadata(src *DataSource) error
	Read(src *DataSource) ([]*Raster, error)
}

// Writer persists a raster in a concrete format.
//
// CanWrite reports whether the writer handles the raster and format suffix.
// Write encodes the raster to the destination path and may fail per tile.
type Writer interface {
	CanWrite(r *Raster, suffix string) bool
	Write(r *Raster, suffix, dest string) error
}

// FindReader returns the first reader in the list whose CanRead accepts the
// source.
func FindReader(readers []Reader, src *DataSource) (Reader, bool) {
	for _, r := range readers {
		if r.CanRead(src) {
			return r, true
		}
	}
	return nil, false
}

// FindWriter returns the first writer accepting the raster and suffix.
func FindWriter(writers []Writer, r *Raster, suffix string) (Writer, bool) {
	for _, w := range writers {
		if w.CanWrite(r, suffix) {
			return w, true
		}
	}
	return nil, false
}

// RasterCache holds decoded source rasters keyed by source identity, bounded
// by a byte budget. A decode result is stored even when empty, so a failing
// source is decoded at most once. Departing entries have their rasters
// disposed exactly once; a panicking disposal is logged, never propagated.
type RasterCache struct {
	mem *cache.Memory[string, []*Raster]
}

// NewRasterCache creates a raster cache with the given byte budget.
// A budget of 0 means unlimited.
func NewRasterCache(budget int64) *RasterCache {
	rc := &RasterCache{}
	rc.mem = cache.NewMemory[string, []*Raster](budget,
		cache.WithRelease[string, []*Raster](releaseRasters))
	return rc
}

func releaseRasters(key string, rasters []*Raster) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("raster disposal panicked", "source", key, "panic", r)
		}
	}()
	for _, r := range rasters {
		r.Dispose()
	}
}

// Get returns the cached decode result for a source key.
func (rc *RasterCache) Get(key string) ([]*Raster, bool) { return rc.mem.Get(key) }

// Clear disposes and drops every cached entry, failure records included.
func (rc *RasterCache) Clear() { rc.mem.Clear() }

// Len returns the number of cached sources.
func (rc *RasterCache) Len() int { return rc.mem.Len() }

// Used returns the cached bytes currently held.
func (rc *RasterCache) Used() int64 { return rc.mem.Used() }

// add admits a decode result, evicting least-recently-used entries as
// needed. When the entry alone exceeds the whole budget the cache is cleared
// and admission retried exactly once before ErrMemoryBudget propagates.
func (rc *RasterCache) add(key string, rasters []*Raster, size int64) error {
	err := rc.mem.Add(key, rasters, size)
	if err == nil {
		return nil
	}
	Logger().Warn("raster cache budget exceeded, clearing and retrying once",
		"source", key, "size", size, "budget", rc.mem.Capacity())
	rc.mem.Clear()
	if err := rc.mem.Add(key, rasters, size); err != nil {
		return fmt.Errorf("%w: %d bytes against %d budget", ErrMemoryBudget, size, rc.mem.Capacity())
	}
	return nil
}

// buildSource is one assembled input to tile composition: either a lazily
// decoded, cached source or a raster already in memory.
type buildSource interface {
	// Sector returns the source's geographic extent.
	Sector() Sector
	// PixelDelta returns the source's pixel size in degrees.
	PixelDelta() LatLon
	// ComposeOnto blends the source onto the canvas. Failures on this path
	// are logged no-ops; a missing base tile must not abort the pyramid.
	ComposeOnto(canvas *Raster)
}

// cachedSource lazily decodes a DataSource through its reader, holding the
// result in the shared raster cache.
type cachedSource struct {
	src    *DataSource
	reader Reader
	cache  *RasterCache
}

// newCachedSource wires a source to its reader and ensures metadata is
// complete, invoking the reader's metadata pass once if needed.
func newCachedSource(src *DataSource, reader Reader, rc *RasterCache) (*cachedSource, error) {
	p := &src.Params
	if p.Sector == nil || p.Width == 0 || p.Height == 0 {
		if err := reader.ReadMetadata(src); err != nil {
			return nil, &AssemblyError{Source: src.Key(), Err: err}
		}
	}
	if p.Sector == nil || !p.Sector.IsValid() || p.Width <= 0 || p.Height <= 0 {
		return nil, &AssemblyError{Source: src.Key(), Err: ErrIncompleteMetadata}
	}
	return &cachedSource{src: src, reader: reader, cache: rc}, nil
}

func (cs *cachedSource) Sector() Sector { return *cs.src.Params.Sector }

func (cs *cachedSource) PixelDelta() LatLon {
	s := cs.Sector()
	return LatLon{
		Lat: s.DeltaLat() / float64(cs.src.Params.Height),
		Lon: s.DeltaLon() / float64(cs.src.Params.Width),
	}
}

// materialize returns the decoded rasters for the source, decoding on first
// use. An empty cached result records an earlier failed decode and is not
// retried.
func (cs *cachedSource) materialize() ([]*Raster, error) {
	key := cs.src.Key()
	if rasters, ok := cs.cache.Get(key); ok {
		if len(rasters) == 0 {
			return nil, &AssemblyError{Source: key, Err: fmt.Errorf("decode previously failed")}
		}
		return rasters, nil
	}

	rasters, err := cs.reader.Read(cs.src)
	if err != nil {
		// Record the failure (empty, zero-sized entry) so the decode is
		// never repeated.
		_ = cs.cache.add(key, nil, 0)
		return nil, &AssemblyError{Source: key, Err: err}
	}

	// Recorded size is the larger of the reader-reported raster size and
	// the observed pixel bytes.
	reported := int64(cs.src.Params.Width) * int64(cs.src.Params.Height) * 4
	var observed int64
	for _, r := range rasters {
		observed += r.Size()
	}
	size := reported
	if observed > size {
		size = observed
	}

	if err := cs.cache.add(key, rasters, size); err != nil {
		releaseRasters(key, rasters)
		return nil, &AssemblyError{Source: key, Err: err}
	}
	return rasters, nil
}

// ComposeOnto blends every decoded raster intersecting the canvas onto it.
// Any failure here is logged and treated as a no-op.
func (cs *cachedSource) ComposeOnto(canvas *Raster) {
	rasters, err := cs.materialize()
	if err != nil {
		Logger().Warn("skipping source in composition", "source", cs.src.Key(), "err", err)
		return
	}
	for _, r := range rasters {
		if !r.Sector().Intersects(canvas.Sector()) {
			continue
		}
		if err := r.Compose(canvas); err != nil {
			Logger().Warn("compose failed", "source", cs.src.Key(), "err", err)
		}
	}
}

// SubRaster extracts the requested sector from the first decoded raster that
// intersects it. Unlike the compose path, failures here propagate typed.
func (cs *cachedSource) SubRaster(sector Sector) (*Raster, error) {
	rasters, err := cs.materialize()
	if err != nil {
		return nil, err
	}
	for _, r := range rasters {
		if r.Sector().Intersects(sector) {
			sub, err := r.SubRaster(sector)
			if err != nil {
				return nil, &AssemblyError{Source: cs.src.Key(), Err: err}
			}
			return sub, nil
		}
	}
	return nil, &AssemblyError{Source: cs.src.Key(), Err: ErrNoIntersection}
}

// memorySource passes a raster already in memory through unchanged.
type memorySource struct {
	raster *Raster
}

func (ms *memorySource) Sector() Sector { return ms.raster.Sector() }

func (ms *memorySource) PixelDelta() LatLon {
	s := ms.raster.Sector()
	return LatLon{
		Lat: s.DeltaLat() / float64(ms.raster.Height()),
		Lon: s.DeltaLon() / float64(ms.raster.Width()),
	}
}

func (ms *memorySource) ComposeOnto(canvas *Raster) {
	if err := ms.raster.Compose(canvas); err != nil {
		Logger().Warn("compose failed", "source", "memory raster", "err", err)
	}
}
