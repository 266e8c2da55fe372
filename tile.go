package pyramid

import "fmt"

// Tile is one quad-tree node at a specific (level, row, col) address. The
// address is globally unique within a level set and derives the tile's
// storage path. Tile values are transient: created per build step and
// discarded once the step completes.
type Tile struct {
	Level  int
	Row    int
	Col    int
	Sector Sector
}

// Children returns the four sub-tiles at the next level, splitting the
// sector at its latitude/longitude midpoints. Row addresses grow north and
// column addresses grow east, so the order is SW, SE, NE, NW:
// (2r,2c), (2r,2c+1), (2r+1,2c+1), (2r+1,2c). The child sectors exactly
// partition the parent's sector.
func (t Tile) Children() [4]Tile {
	midLat := t.Sector.MinLat + t.Sector.DeltaLat()/2
	midLon := t.Sector.MinLon + t.Sector.DeltaLon()/2
	level := t.Level + 1
	row, col := 2*t.Row, 2*t.Col
	return [4]Tile{
		{Level: level, Row: row, Col: col, Sector: Sector{
			MinLat: t.Sector.MinLat, MaxLat: midLat, MinLon: t.Sector.MinLon, MaxLon: midLon}},
		{Level: level, Row: row, Col: col + 1, Sector: Sector{
			MinLat: t.Sector.MinLat, MaxLat: midLat, MinLon: midLon, MaxLon: t.Sector.MaxLon}},
		{Level: level, Row: row + 1, Col: col + 1, Sector: Sector{
			MinLat: midLat, MaxLat: t.Sector.MaxLat, MinLon: midLon, MaxLon: t.Sector.MaxLon}},
		{Level: level, Row: row + 1, Col: col, Sector: Sector{
			MinLat: midLat, MaxLat: t.Sector.MaxLat, MinLon: t.Sector.MinLon, MaxLon: midLon}},
	}
}

// Path returns the tile's storage path relative to the cache root:
// {level}/{row}_{col}.{suffix}.
func (t Tile) Path(suffix string) string {
	return fmt.Sprintf("%d/%d_%d.%s", t.Level, t.Row, t.Col, suffix)
}

func (t Tile) String() string {
	return fmt.Sprintf("tile %d/%d/%d %v", t.Level, t.Row, t.Col, t.Sector)
}
