package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/terratile/pyramid"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "production.hcl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
store_location   = "/data/tiles"
cache_name       = "Earth/BlueMarble"
dataset_name     = "BlueMarble"
tile_width       = 256
tile_height      = 256
num_empty_levels = 1
level_limit      = "Auto"
format           = "jpg"
cache_budget_mb  = 64
write_workers    = 4

sector {
  min_lat = -90
  max_lat = 90
  min_lon = -180
  max_lon = 180
}

tile_origin {
  lat = -90
  lon = -180
}

source "bmng-east.tif" {}

source "bmng-west.tif" {
  sector {
    min_lat = -90
    max_lat = 90
    min_lon = -180
    max_lon = 0
  }
}
`)
	params, sources, opts, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if params.StoreLocation != "/data/tiles" || params.CacheName != "Earth/BlueMarble" || params.DatasetName != "BlueMarble" {
		t.Errorf("unexpected identity params %+v", params)
	}
	if params.TileWidth != 256 || params.TileHeight != 256 {
		t.Errorf("expected 256x256 tiles, got %dx%d", params.TileWidth, params.TileHeight)
	}
	if params.NumEmptyLevels != 1 || params.LevelLimit != "Auto" || params.FormatSuffix != "jpg" {
		t.Errorf("unexpected level params %+v", params)
	}
	if params.Sector == nil || *params.Sector != pyramid.FullSphere {
		t.Errorf("expected full-sphere sector, got %v", params.Sector)
	}
	if params.TileOrigin == nil || params.TileOrigin.Lat != -90 || params.TileOrigin.Lon != -180 {
		t.Errorf("unexpected origin %v", params.TileOrigin)
	}

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Path != "bmng-east.tif" || sources[0].Params.Sector != nil {
		t.Errorf("unexpected first source %+v", sources[0])
	}
	if sources[1].Path != "bmng-west.tif" || sources[1].Params.Sector == nil {
		t.Fatalf("unexpected second source %+v", sources[1])
	}
	if sources[1].Params.Sector.MaxLon != 0 {
		t.Errorf("expected western hemisphere, got %v", sources[1].Params.Sector)
	}

	if opts.cacheBudget != 64<<20 {
		t.Errorf("expected 64 MiB budget, got %d", opts.cacheBudget)
	}
	if opts.writeWorkers != 4 {
		t.Errorf("expected 4 workers, got %d", opts.writeWorkers)
	}
}

func TestLoadConfigMinimal(t *testing.T) {
	path := writeConfig(t, `
store_location = "/data/tiles"
cache_name     = "Earth/Test"
dataset_name   = "Test"

source "scene.png" {}
`)
	params, sources, opts, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if params.TileWidth != 0 || params.FormatSuffix != "" {
		t.Error("expected unset optionals left zero for builder defaults")
	}
	if len(sources) != 1 {
		t.Errorf("expected 1 source, got %d", len(sources))
	}
	if opts.cacheBudget != 0 || opts.writeWorkers != 0 {
		t.Errorf("expected zero run options, got %+v", opts)
	}
}

func TestLoadConfigEnvInterpolation(t *testing.T) {
	t.Setenv("PYRAMID_STORE", "/mnt/tilestore")
	path := writeConfig(t, `
store_location = "${env.PYRAMID_STORE}/v1"
cache_name     = "Earth/Test"
dataset_name   = "Test"
`)
	params, _, _, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if params.StoreLocation != "/mnt/tilestore/v1" {
		t.Errorf("expected env interpolation, got %q", params.StoreLocation)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, _, _, err := loadConfig(filepath.Join(t.TempDir(), "absent.hcl")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := writeConfig(t, `store_location = `)
	if _, _, _, err := loadConfig(bad); err == nil {
		t.Error("expected parse error")
	}

	missing := writeConfig(t, `store_location = "/data"`)
	if _, _, _, err := loadConfig(missing); err == nil {
		t.Error("expected decode error for missing required attributes")
	}
}
