// Package pyramid converts arbitrary-resolution geospatial raster sources
// into a persisted multi-resolution quad-tree of fixed-size tiles.
//
// # Quick Start
//
//	import (
//	    "github.com/terratile/pyramid"
//	    "github.com/terratile/pyramid/format"
//	)
//
//	params := pyramid.ProductionParams{
//	    StoreLocation: "/data/tiles",
//	    CacheName:     "Earth/BlueMarble",
//	    DatasetName:   "BlueMarble",
//	}
//	b, err := pyramid.NewBuilder(params,
//	    pyramid.WithReaders(format.Readers()...),
//	    pyramid.WithWriters(format.Writers()...),
//	)
//	if err != nil {
//	    // handle error
//	}
//	b.AddSource(&pyramid.DataSource{Path: "input.tif"})
//	if err := b.Build(ctx); err != nil {
//	    // handle error
//	}
//
// # Pipeline
//
// The builder derives a LevelSet from the aggregated source sectors and the
// smallest source pixel size, walks the quad-tree from the level-zero
// footprint down to the finest level, composes each tile from the sources
// (or from its four children, downsampled), and schedules finished tiles for
// asynchronous disk writes through a bounded worker pool. Tiles land at
// {storeLocation}/{cacheName}/{level}/{row}_{col}.{suffix}, alongside a
// single XML manifest describing the pyramid.
//
// Decoded source rasters are held in a byte-budget cache (see the cache
// package); a decode that cannot be admitted evicts least-recently-used
// entries, and as a last resort clears the cache and retries once.
//
// # Logging
//
// By default the package produces no log output. Call SetLogger to enable
// structured logging via log/slog.
package pyramid
