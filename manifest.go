package pyramid

import (
	"encoding/xml"
	"os"
	"path/filepath"
)

// Manifest is the top-level pyramid descriptor persisted beside the tiles.
// It summarizes the dataset sector, the level set, and the tile format —
// everything a tile server needs to address the pyramid. The serialization
// schema is owned by the consumers of the store; this is its required
// content.
type Manifest struct {
	XMLName        xml.Name       `xml:"TileCache"`
	DatasetName    string         `xml:"DatasetName"`
	FormatSuffix   string         `xml:"FormatSuffix"`
	Sector         manifestSector `xml:"Sector"`
	TileOrigin     manifestLatLon `xml:"TileOrigin"`
	LevelZeroDelta manifestLatLon `xml:"LevelZeroTileDelta"`
	NumLevels      int            `xml:"NumLevels"`
	NumEmptyLevels int            `xml:"NumEmptyLevels"`
	TileWidth      int            `xml:"TileWidth"`
	TileHeight     int            `xml:"TileHeight"`
}

type manifestSector struct {
	MinLat float64 `xml:"MinLat"`
	MaxLat float64 `xml:"MaxLat"`
	MinLon float64 `xml:"MinLon"`
	MaxLon float64 `xml:"MaxLon"`
}

type manifestLatLon struct {
	Lat float64 `xml:"Lat"`
	Lon float64 `xml:"Lon"`
}

// newManifest assembles the descriptor for a produced level set.
func newManifest(datasetName, suffix string, ls *LevelSet) *Manifest {
	s := ls.Sector()
	level0 := ls.Level(0)
	return &Manifest{
		DatasetName:  datasetName,
		FormatSuffix: suffix,
		Sector: manifestSector{
			MinLat: s.MinLat, MaxLat: s.MaxLat,
			MinLon: s.MinLon, MaxLon: s.MaxLon,
		},
		TileOrigin:     manifestLatLon{Lat: ls.Origin().Lat, Lon: ls.Origin().Lon},
		LevelZeroDelta: manifestLatLon{Lat: ls.LevelZeroDelta().Lat, Lon: ls.LevelZeroDelta().Lon},
		NumLevels:      ls.NumLevels(),
		NumEmptyLevels: ls.NumEmptyLevels(),
		TileWidth:      level0.TileWidth,
		TileHeight:     level0.TileHeight,
	}
}

// ManifestWriter persists the pyramid descriptor. The default implementation
// writes XML; callers may substitute their own via WithManifestWriter.
type ManifestWriter interface {
	WriteManifest(dir string, m *Manifest) error
}

// xmlManifestWriter writes the manifest as {dir}/{dataset}.xml.
type xmlManifestWriter struct{}

func (xmlManifestWriter) WriteManifest(dir string, m *Manifest) error {
	path := filepath.Join(dir, m.DatasetName+".xml")
	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return &ManifestError{Path: path, Err: err}
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &ManifestError{Path: path, Err: err}
	}
	return nil
}
