package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/terratile/pyramid"
)

// hclConfig is the top-level structure of a production config file:
//
//	store_location = "/data/tiles"
//	cache_name     = "Earth/BlueMarble"
//	dataset_name   = "BlueMarble"
//	format         = "png"
//	level_limit    = "Auto"
//
//	sector {
//	  min_lat = -90
//	  max_lat = 90
//	  min_lon = -180
//	  max_lon = 180
//	}
//
//	source "bmng-east.tif" {}
//	source "bmng-west.tif" {}
//
// Expressions may reference environment variables through the env object,
// e.g. store_location = "${env.HOME}/tiles".
type hclConfig struct {
	StoreLocation  string       `hcl:"store_location"`
	CacheName      string       `hcl:"cache_name"`
	DatasetName    string       `hcl:"dataset_name"`
	TileWidth      *int         `hcl:"tile_width"`
	TileHeight     *int         `hcl:"tile_height"`
	NumLevels      *int         `hcl:"num_levels"`
	NumEmptyLevels *int         `hcl:"num_empty_levels"`
	LevelLimit     *string      `hcl:"level_limit"`
	Format         *string      `hcl:"format"`
	CacheBudgetMB  *int64       `hcl:"cache_budget_mb"`
	WriteWorkers   *int         `hcl:"write_workers"`
	Sector         *hclSector   `hcl:"sector,block"`
	Origin         *hclLatLon   `hcl:"tile_origin,block"`
	LevelZeroDelta *hclLatLon   `hcl:"level_zero_delta,block"`
	Sources        []*hclSource `hcl:"source,block"`
}

type hclSector struct {
	MinLat float64 `hcl:"min_lat"`
	MaxLat float64 `hcl:"max_lat"`
	MinLon float64 `hcl:"min_lon"`
	MaxLon float64 `hcl:"max_lon"`
}

type hclLatLon struct {
	Lat float64 `hcl:"lat"`
	Lon float64 `hcl:"lon"`
}

type hclSource struct {
	Path   string     `hcl:"path,label"`
	Sector *hclSector `hcl:"sector,block"`
}

// loadConfig parses an HCL production config into builder inputs.
func loadConfig(path string) (pyramid.ProductionParams, []*pyramid.DataSource, runOptions, error) {
	var opts runOptions

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return pyramid.ProductionParams{}, nil, opts, fmt.Errorf("parse %s: %w", path, diags)
	}
	var cfg hclConfig
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &cfg); diags.HasErrors() {
		return pyramid.ProductionParams{}, nil, opts, fmt.Errorf("decode %s: %w", path, diags)
	}

	params := pyramid.ProductionParams{
		StoreLocation: cfg.StoreLocation,
		CacheName:     cfg.CacheName,
		DatasetName:   cfg.DatasetName,
	}
	if cfg.TileWidth != nil {
		params.TileWidth = *cfg.TileWidth
	}
	if cfg.TileHeight != nil {
		params.TileHeight = *cfg.TileHeight
	}
	if cfg.NumLevels != nil {
		params.NumLevels = *cfg.NumLevels
	}
	if cfg.NumEmptyLevels != nil {
		params.NumEmptyLevels = *cfg.NumEmptyLevels
	}
	if cfg.LevelLimit != nil {
		params.LevelLimit = *cfg.LevelLimit
	}
	if cfg.Format != nil {
		params.FormatSuffix = *cfg.Format
	}
	if cfg.Sector != nil {
		s := cfg.Sector.sector()
		params.Sector = &s
	}
	if cfg.Origin != nil {
		params.TileOrigin = &pyramid.LatLon{Lat: cfg.Origin.Lat, Lon: cfg.Origin.Lon}
	}
	if cfg.LevelZeroDelta != nil {
		params.LevelZeroDelta = &pyramid.LatLon{Lat: cfg.LevelZeroDelta.Lat, Lon: cfg.LevelZeroDelta.Lon}
	}

	sources := make([]*pyramid.DataSource, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		src := &pyramid.DataSource{Path: s.Path}
		if s.Sector != nil {
			sec := s.Sector.sector()
			src.Params.Sector = &sec
		}
		sources = append(sources, src)
	}

	if cfg.CacheBudgetMB != nil {
		opts.cacheBudget = *cfg.CacheBudgetMB << 20
	}
	if cfg.WriteWorkers != nil {
		opts.writeWorkers = *cfg.WriteWorkers
	}
	return params, sources, opts, nil
}

// runOptions carries config values that tune the run rather than the
// pyramid.
type runOptions struct {
	cacheBudget  int64
	writeWorkers int
}

func (s *hclSector) sector() pyramid.Sector {
	return pyramid.NewSector(s.MinLat, s.MinLon, s.MaxLat, s.MaxLon)
}

// evalContext exposes the process environment to config expressions as the
// env object.
func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}
