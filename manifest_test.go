package pyramid

import (
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManifest(t *testing.T) {
	ls := testLevelSet(t, LevelSetConfig{
		Sector:         Sector{MinLat: -10, MaxLat: 30, MinLon: 20, MaxLon: 60},
		Origin:         LatLon{Lat: -10, Lon: 20},
		LevelZeroDelta: LatLon{Lat: 40, Lon: 40},
		NumLevels:      3,
		NumEmptyLevels: 1,
		TileWidth:      512,
		TileHeight:     256,
	})
	m := newManifest("imagery", "jpg", ls)
	if m.DatasetName != "imagery" || m.FormatSuffix != "jpg" {
		t.Errorf("unexpected identity: %q %q", m.DatasetName, m.FormatSuffix)
	}
	if m.NumLevels != 3 || m.NumEmptyLevels != 1 {
		t.Errorf("expected 3 levels 1 empty, got %d/%d", m.NumLevels, m.NumEmptyLevels)
	}
	if m.TileWidth != 512 || m.TileHeight != 256 {
		t.Errorf("expected 512x256 tiles, got %dx%d", m.TileWidth, m.TileHeight)
	}
	if m.Sector.MinLat != -10 || m.Sector.MaxLon != 60 {
		t.Errorf("unexpected sector %+v", m.Sector)
	}
	if m.TileOrigin.Lat != -10 || m.TileOrigin.Lon != 20 {
		t.Errorf("unexpected origin %+v", m.TileOrigin)
	}
	if m.LevelZeroDelta.Lat != 40 || m.LevelZeroDelta.Lon != 40 {
		t.Errorf("unexpected level-zero delta %+v", m.LevelZeroDelta)
	}
}

func TestXMLManifestWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ls := testLevelSet(t, LevelSetConfig{
		Sector:         Sector{MinLat: 0, MaxLat: 8, MinLon: 0, MaxLon: 8},
		Origin:         LatLon{Lat: 0, Lon: 0},
		LevelZeroDelta: LatLon{Lat: 8, Lon: 8},
		NumLevels:      2,
		TileWidth:      32,
		TileHeight:     32,
	})
	m := newManifest("test-set", "png", ls)
	if err := (xmlManifestWriter{}).WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "test-set.xml"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "<?xml") {
		t.Error("expected XML header")
	}

	var got Manifest
	if err := xml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got.XMLName = m.XMLName
	if got != *m {
		t.Errorf("expected %+v, got %+v", *m, got)
	}
}

func TestXMLManifestWriterBadDir(t *testing.T) {
	m := &Manifest{DatasetName: "x"}
	err := (xmlManifestWriter{}).WriteManifest(filepath.Join(t.TempDir(), "missing"), m)
	if err == nil {
		t.Fatal("expected error writing into a missing directory, got nil")
	}
	var merr *ManifestError
	if !errors.As(err, &merr) {
		t.Errorf("expected ManifestError, got %T", err)
	}
}
