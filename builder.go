package pyramid

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/terratile/pyramid/internal/install"
)

// desiredLevelZeroDelta caps the derived level-zero tile delta, in degrees.
const desiredLevelZeroDelta = 36.0

// BuilderOption configures a Builder during creation.
type BuilderOption func(*builderOptions)

// builderOptions holds optional configuration for Builder creation.
type builderOptions struct {
	readers     []Reader
	writers     []Writer
	workers     int
	cacheBudget int64
	progress    func(float64)
	manifest    ManifestWriter
}

func defaultBuilderOptions() builderOptions {
	return builderOptions{
		workers:  install.DefaultWorkers,
		manifest: xmlManifestWriter{},
	}
}

// WithReaders registers the readers used to decode raw sources. Each raw
// source is matched to the first reader whose CanRead accepts it.
func WithReaders(readers ...Reader) BuilderOption {
	return func(o *builderOptions) { o.readers = append(o.readers, readers...) }
}

// WithWriters registers the writers used to persist tiles. Each tile is
// matched to the first writer accepting its raster and format suffix.
func WithWriters(writers ...Writer) BuilderOption {
	return func(o *builderOptions) { o.writers = append(o.writers, writers...) }
}

// WithInstallWorkers sets the tile write pool size (default 2). The pool
// size also bounds how many finished tiles are held in memory awaiting
// their disk write.
func WithInstallWorkers(n int) BuilderOption {
	return func(o *builderOptions) { o.workers = n }
}

// WithCacheBudget bounds the decoded-source raster cache to the given
// number of bytes. Zero (the default) means unlimited.
func WithCacheBudget(bytes int64) BuilderOption {
	return func(o *builderOptions) { o.cacheBudget = bytes }
}

// WithProgressFunc registers a callback invoked with the run's fractional
// progress in [0, 1] each time a tile address completes. The callback runs
// on the build goroutine; keep it fast.
func WithProgressFunc(fn func(float64)) BuilderOption {
	return func(o *builderOptions) { o.progress = fn }
}

// WithProgress emits fractional progress to the channel. Sends never block:
// when the channel is full, intermediate values are dropped.
func WithProgress(ch chan<- float64) BuilderOption {
	return WithProgressFunc(func(f float64) {
		select {
		case ch <- f:
		default:
		}
	})
}

// WithManifestWriter substitutes the manifest serializer (default: XML).
func WithManifestWriter(w ManifestWriter) BuilderOption {
	return func(o *builderOptions) { o.manifest = w }
}

// Builder orchestrates one pyramid production run: it derives the level set
// from the registered sources, walks the quad-tree composing tiles, streams
// finished tiles through the write pool, and emits the manifest.
//
// Sources are registered before production starts and are immutable once
// Build has been called. A Builder is good for a single run.
type Builder struct {
	params     ProductionParams
	opts       builderOptions
	rawSources []*DataSource
	memRasters []*Raster
	cache      *RasterCache
	started    atomic.Bool
	state      *ProductionState
}

// NewBuilder creates a Builder for the given production parameters.
func NewBuilder(params ProductionParams, opts ...BuilderOption) (*Builder, error) {
	o := defaultBuilderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := &Builder{
		params: params.withDefaults(),
		opts:   o,
		cache:  NewRasterCache(o.cacheBudget),
	}
	return b, nil
}

// AddSource registers a raw data source. It fails once production has
// started.
func (b *Builder) AddSource(src *DataSource) error {
	if b.started.Load() {
		return &ValidationError{Param: "source", Reason: "production already started"}
	}
	b.rawSources = append(b.rawSources, src)
	return nil
}

// AddRaster registers a raster already in memory; it is passed through to
// composition unchanged. It fails once production has started.
func (b *Builder) AddRaster(r *Raster) error {
	if b.started.Load() {
		return &ValidationError{Param: "source", Reason: "production already started"}
	}
	if r == nil || r.Disposed() {
		return &ValidationError{Param: "source", Reason: "raster is nil or disposed"}
	}
	b.memRasters = append(b.memRasters, r)
	return nil
}

// State returns the run's progress counters, or nil before Build starts.
func (b *Builder) State() *ProductionState { return b.state }

// Build runs the production pipeline:
//
//  1. validate required parameters (fails before any I/O)
//  2. assemble sources into lazy cached rasters
//  3. derive the level set from source sectors and pixel sizes
//  4. walk the quad-tree, composing tiles and scheduling writes
//  5. drain the write pool
//  6. clear the raster cache
//  7. emit the manifest
//
// Cancellation is cooperative: the walk stops scheduling new tiles, but
// writes already handed to the pool run to completion. Only parameter
// validation and the manifest write can fail the run; everything else
// degrades locally and is logged.
func (b *Builder) Build(ctx context.Context) error {
	if err := b.params.Validate(); err != nil {
		return err
	}
	b.started.Store(true)

	if err := ctx.Err(); err != nil {
		return err
	}
	sources, err := b.assembleSources()
	if err != nil {
		return err
	}

	cfg, err := b.deriveLevelSetConfig(sources)
	if err != nil {
		return err
	}
	ls, err := NewLevelSet(cfg)
	if err != nil {
		return err
	}
	if ls.OutOfBounds() {
		cfg = b.alignToGlobe(cfg, sources)
		if ls, err = NewLevelSet(cfg); err != nil {
			return err
		}
	}
	Logger().Info("level set derived",
		"sector", ls.Sector().String(),
		"levels", ls.NumLevels(),
		"levelZeroDelta", ls.LevelZeroDelta(),
		"origin", ls.Origin())

	var total int64
	for n := 0; n < ls.NumLevels(); n++ {
		total += ls.TileCount(n, ls.Sector())
	}
	b.state = newProductionState(total, b.opts.progress)

	if err := ctx.Err(); err != nil {
		return err
	}
	pool := install.New(b.opts.workers)
	b.walk(ctx, ls, sources, pool)

	pool.Close()
	if err := pool.Wait(ctx); err != nil {
		Logger().Warn("cancelled while draining write pool", "err", err)
	}

	b.cache.Clear()

	if err := ctx.Err(); err != nil {
		return err
	}
	cacheDir := filepath.Join(b.params.StoreLocation, b.params.CacheName)
	if err := pool.MkdirAll(cacheDir, 0o755); err != nil {
		return &ManifestError{Path: cacheDir, Err: err}
	}
	if err := b.opts.manifest.WriteManifest(cacheDir, newManifest(b.params.DatasetName, b.params.FormatSuffix, ls)); err != nil {
		return err
	}
	Logger().Info("production finished",
		"dataset", b.params.DatasetName,
		"tiles", b.state.Completed())
	return nil
}

// assembleSources wraps each raw source through the reader lookup into a
// lazy cached raster and passes in-memory rasters through unchanged.
func (b *Builder) assembleSources() ([]buildSource, error) {
	sources := make([]buildSource, 0, len(b.rawSources)+len(b.memRasters))
	for _, raw := range b.rawSources {
		reader, ok := FindReader(b.opts.readers, raw)
		if !ok {
			return nil, &AssemblyError{Source: raw.Key(), Err: ErrNoReader}
		}
		cs, err := newCachedSource(raw, reader, b.cache)
		if err != nil {
			return nil, err
		}
		sources = append(sources, cs)
	}
	for _, r := range b.memRasters {
		sources = append(sources, &memorySource{raster: r})
	}
	if len(sources) == 0 {
		return nil, &ValidationError{Param: "sources", Reason: "no data sources registered"}
	}
	return sources, nil
}

// deriveLevelSetConfig computes the level-set parameters for the run: the
// union of source sectors, the final tile delta from the smallest source
// pixel size, the level count, and from it the level-zero delta.
func (b *Builder) deriveLevelSetConfig(sources []buildSource) (LevelSetConfig, error) {
	var sector Sector
	if b.params.Sector != nil {
		sector = *b.params.Sector
	} else {
		sector = sources[0].Sector()
		for _, s := range sources[1:] {
			sector = sector.Union(s.Sector())
		}
	}
	sector = sector.Clamp()
	if !sector.IsValid() {
		return LevelSetConfig{}, &ValidationError{Param: "Sector", Reason: "dataset sector has no extent"}
	}

	tileW, tileH := b.params.TileWidth, b.params.TileHeight
	final := finalTileDelta(sources, tileW, tileH)

	// The level-zero delta anchors on the finest level of the full pyramid,
	// so a level limit truncates the fine levels rather than refining the
	// coarse ones. A caller-supplied delta is the anchor instead: the level
	// count then grows from it until the finest level reaches the source
	// resolution.
	var levelZero LatLon
	numLevels := b.params.NumLevels
	if b.params.LevelZeroDelta != nil {
		levelZero = *b.params.LevelZeroDelta
		if numLevels <= 0 {
			numLevels = NumLevels(levelZero, final)
		}
	} else {
		if numLevels <= 0 {
			desired := LatLon{
				Lat: minFloat(sector.DeltaLat(), desiredLevelZeroDelta),
				Lon: minFloat(sector.DeltaLon(), desiredLevelZeroDelta),
			}
			numLevels = NumLevels(desired, final)
		}
		levelZero = LatLon{
			Lat: final.Lat * float64(int64(1)<<uint(numLevels-1)),
			Lon: final.Lon * float64(int64(1)<<uint(numLevels-1)),
		}
	}
	numLevels = ResolveLevelLimit(b.params.LevelLimit, numLevels-1) + 1

	origin := sector.LowerLeft()
	if b.params.TileOrigin != nil {
		origin = *b.params.TileOrigin
	}

	return LevelSetConfig{
		Sector:         sector,
		Origin:         origin,
		LevelZeroDelta: levelZero,
		NumLevels:      numLevels,
		NumEmptyLevels: b.params.NumEmptyLevels,
		TileWidth:      tileW,
		TileHeight:     tileH,
	}, nil
}

// alignToGlobe recomputes the level set with an integral level-zero delta (a
// power-of-two divisor of 180°) and the (-90,-180) origin, used when the
// derived addressing would place tiles outside the valid lat/lon range.
func (b *Builder) alignToGlobe(cfg LevelSetConfig, sources []buildSource) LevelSetConfig {
	final := finalTileDelta(sources, cfg.TileWidth, cfg.TileHeight)

	delta := 180.0
	for delta > cfg.LevelZeroDelta.Lat || delta > cfg.LevelZeroDelta.Lon {
		delta /= 2
	}
	levelZero := LatLon{Lat: delta, Lon: delta}

	numLevels := NumLevels(levelZero, final)
	numLevels = ResolveLevelLimit(b.params.LevelLimit, numLevels-1) + 1

	Logger().Warn("level set out of bounds, realigning to globe",
		"levelZeroDelta", levelZero, "levels", numLevels)

	cfg.Origin = LatLon{Lat: -90, Lon: -180}
	cfg.LevelZeroDelta = levelZero
	cfg.NumLevels = numLevels
	return cfg
}

// walk visits the level-zero footprint intersected with the dataset sector
// in row-major order, building each root tile's subtree and scheduling the
// produced level-zero rasters for write. A labeled break exits both loops
// immediately on cancellation.
func (b *Builder) walk(ctx context.Context, ls *LevelSet, sources []buildSource, pool *install.Pool) {
	minRow, maxRow, minCol, maxCol := ls.TileRange(0, ls.Sector())
rows:
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			if ctx.Err() != nil {
				break rows
			}
			root := Tile{Level: 0, Row: row, Col: col, Sector: ls.TileSector(0, row, col)}
			raster := b.buildTile(ctx, ls, root, sources, pool)
			if raster != nil {
				b.scheduleWrite(ctx, pool, root, raster)
			}
		}
	}
}

// tileResult pairs a completed tile address with the raster it produced,
// which may be nil for content-less tiles.
type tileResult struct {
	tile   Tile
	raster *Raster
}

// buildFrame is one suspended quad-tree node on the explicit post-order
// stack: its children, the index of the next child to evaluate, and the
// results of the children evaluated so far.
type buildFrame struct {
	tile     Tile
	children []Tile
	next     int
	results  []tileResult
}

// buildTile evaluates one quad-tree subtree in post order using an explicit
// frame stack. At the final level a tile is composed directly from the
// intersecting sources; at every other level it is composed from its
// children, downsampled, after which each non-nil child raster is scheduled
// for an asynchronous write. The progress counter advances exactly once per
// visited address, raster or not.
//
// Returns the root tile's raster, or nil when the subtree produced no
// content or the context was cancelled. Rasters already handed to the write
// pool are unaffected by cancellation.
func (b *Builder) buildTile(ctx context.Context, ls *LevelSet, root Tile, sources []buildSource, pool *install.Pool) *Raster {
	stack := []*buildFrame{{tile: root}}

	// pop delivers a finished tile's raster to its parent frame; for the
	// root it is the subtree's result.
	pop := func(raster *Raster) *Raster {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b.state.tileCompleted()
		if len(stack) == 0 {
			return raster
		}
		parent := stack[len(stack)-1]
		parent.results = append(parent.results, tileResult{tile: f.tile, raster: raster})
		return nil
	}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			// Unwind without composing; dispose rasters not yet handed to
			// the write pool.
			for _, f := range stack {
				for _, res := range f.results {
					if res.raster != nil {
						res.raster.Dispose()
					}
				}
			}
			return nil
		}

		f := stack[len(stack)-1]

		if ls.IsFinalLevel(f.tile.Level) {
			if r := pop(b.composeLeaf(ls, f.tile, sources)); r != nil {
				return r
			}
			continue
		}

		if f.children == nil {
			f.children = intersectingChildren(f.tile, ls.Sector())
			f.results = make([]tileResult, 0, len(f.children))
		}
		if f.next < len(f.children) {
			child := f.children[f.next]
			f.next++
			stack = append(stack, &buildFrame{tile: child})
			continue
		}

		// All children evaluated: compose this tile from them, then hand
		// every child raster to the write pool. The composition therefore
		// always happens-before the children's writes, without any
		// coordination with the writer goroutines.
		raster := b.composeParent(ls, f.tile, f.results)
		for _, res := range f.results {
			if res.raster != nil {
				b.scheduleWrite(ctx, pool, res.tile, res.raster)
			}
		}
		if r := pop(raster); r != nil {
			return r
		}
	}
	return nil
}

// intersectingChildren returns the tile's quad children whose sectors
// intersect the level set's sector.
func intersectingChildren(t Tile, sector Sector) []Tile {
	all := t.Children()
	children := make([]Tile, 0, 4)
	for _, c := range all {
		if c.Sector.Intersects(sector) {
			children = append(children, c)
		}
	}
	return children
}

// composeLeaf builds a final-level tile by sequentially composing every
// source intersecting both the tile's sector and the level set's sector, in
// source-list order (later sources overwrite earlier via alpha-over). A tile
// with no intersecting content, or at an empty level, legitimately yields no
// raster; that is not an error.
func (b *Builder) composeLeaf(ls *LevelSet, t Tile, sources []buildSource) *Raster {
	level := ls.Level(t.Level)
	var hits []buildSource
	for _, s := range sources {
		if s.Sector().Intersects(t.Sector) && s.Sector().Intersects(ls.Sector()) {
			hits = append(hits, s)
		}
	}
	if len(hits) == 0 || level.Empty {
		return nil
	}

	canvas, err := NewRaster(level.TileWidth, level.TileHeight, t.Sector)
	if err != nil {
		Logger().Warn("tile allocation failed", "tile", t.String(), "err", err)
		return nil
	}
	for _, s := range hits {
		s.ComposeOnto(canvas)
	}
	return canvas
}

// composeParent builds a non-final tile by downsampling its children onto a
// fresh canvas. Returns nil when no child produced a raster or the level is
// empty.
func (b *Builder) composeParent(ls *LevelSet, t Tile, results []tileResult) *Raster {
	level := ls.Level(t.Level)
	any := false
	for _, res := range results {
		if res.raster != nil {
			any = true
			break
		}
	}
	if !any || level.Empty {
		return nil
	}

	canvas, err := NewRaster(level.TileWidth, level.TileHeight, t.Sector)
	if err != nil {
		Logger().Warn("tile allocation failed", "tile", t.String(), "err", err)
		return nil
	}
	for _, res := range results {
		if res.raster == nil {
			continue
		}
		if err := res.raster.Compose(canvas); err != nil {
			Logger().Warn("child compose failed", "tile", res.tile.String(), "err", err)
		}
	}
	return canvas
}

// scheduleWrite hands a finished tile to the write pool. The task finds a
// matching writer, creates the tile's directory under the pool's shared
// lock, writes, and disposes the raster — success or failure. Per-tile write
// failures are logged and never abort sibling writes or the run. If
// scheduling itself fails (cancellation), the raster is disposed here.
func (b *Builder) scheduleWrite(ctx context.Context, pool *install.Pool, t Tile, raster *Raster) {
	suffix := b.params.FormatSuffix
	dest := filepath.Join(b.params.StoreLocation, b.params.CacheName, t.Path(suffix))

	task := func() {
		defer raster.Dispose()
		w, ok := FindWriter(b.opts.writers, raster, suffix)
		if !ok {
			Logger().Warn("skipping tile write", "tile", t.String(),
				"err", fmt.Errorf("%w: %q", ErrNoWriter, suffix))
			return
		}
		if err := pool.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			Logger().Warn("skipping tile write", "tile", t.String(), "err", err)
			return
		}
		if err := w.Write(raster, suffix, dest); err != nil {
			Logger().Warn("tile write failed", "tile", t.String(), "dest", dest, "err", err)
			return
		}
		Logger().Debug("tile written", "tile", t.String(), "dest", dest)
	}

	if err := pool.Schedule(ctx, task); err != nil {
		raster.Dispose()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			Logger().Warn("tile scheduling failed", "tile", t.String(), "err", err)
		}
	}
}

// finalTileDelta returns the finest tile delta the sources support: the
// smallest source pixel size on each axis scaled by the tile dimensions.
func finalTileDelta(sources []buildSource, tileW, tileH int) LatLon {
	pixel := sources[0].PixelDelta()
	for _, s := range sources[1:] {
		d := s.PixelDelta()
		if d.Lat < pixel.Lat {
			pixel.Lat = d.Lat
		}
		if d.Lon < pixel.Lon {
			pixel.Lon = d.Lon
		}
	}
	return LatLon{
		Lat: pixel.Lat * float64(tileH),
		Lon: pixel.Lon * float64(tileW),
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
