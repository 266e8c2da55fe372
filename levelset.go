package pyramid

import "math"

// LevelSetConfig holds the parameters a LevelSet is built from once per run.
type LevelSetConfig struct {
	Sector         Sector
	Origin         LatLon
	LevelZeroDelta LatLon
	NumLevels      int
	NumEmptyLevels int
	TileWidth      int
	TileHeight     int
}

// LevelSet is the complete multi-resolution addressing scheme for a dataset:
// a tile origin, a level-zero tile delta that halves per level, and an
// ordered list of levels. Tile (level, row, col) addresses are measured from
// the origin in tile-delta units.
type LevelSet struct {
	sector         Sector
	origin         LatLon
	levelZeroDelta LatLon
	levels         []Level
	numEmpty       int
}

// NewLevelSet validates the configuration and builds the level list.
func NewLevelSet(cfg LevelSetConfig) (*LevelSet, error) {
	if !cfg.Sector.IsValid() {
		return nil, &ValidationError{Param: "sector", Reason: "sector has no extent"}
	}
	if cfg.LevelZeroDelta.Lat <= 0 || cfg.LevelZeroDelta.Lon <= 0 {
		return nil, &ValidationError{Param: "levelZeroDelta", Reason: "tile delta must be positive"}
	}
	if cfg.NumLevels < 1 {
		return nil, &ValidationError{Param: "numLevels", Reason: "at least one level required"}
	}
	if cfg.TileWidth <= 0 || cfg.TileHeight <= 0 {
		return nil, &ValidationError{Param: "tileSize", Reason: "tile dimensions must be positive"}
	}
	if cfg.NumEmptyLevels < 0 || cfg.NumEmptyLevels >= cfg.NumLevels {
		return nil, &ValidationError{Param: "numEmptyLevels", Reason: "empty levels must be fewer than total levels"}
	}

	ls := &LevelSet{
		sector:         cfg.Sector,
		origin:         cfg.Origin,
		levelZeroDelta: cfg.LevelZeroDelta,
		levels:         make([]Level, cfg.NumLevels),
		numEmpty:       cfg.NumEmptyLevels,
	}
	delta := cfg.LevelZeroDelta
	for i := range ls.levels {
		ls.levels[i] = Level{
			Number:     i,
			TileWidth:  cfg.TileWidth,
			TileHeight: cfg.TileHeight,
			TileDelta:  delta,
			Empty:      i < cfg.NumEmptyLevels,
		}
		delta.Lat /= 2
		delta.Lon /= 2
	}
	return ls, nil
}

// Sector returns the overall sector the level set covers.
func (ls *LevelSet) Sector() Sector { return ls.sector }

// Origin returns the tile origin (the corner tile (0,0) grows from).
func (ls *LevelSet) Origin() LatLon { return ls.origin }

// LevelZeroDelta returns the tile delta of the coarsest level.
func (ls *LevelSet) LevelZeroDelta() LatLon { return ls.levelZeroDelta }

// NumLevels returns the number of levels, empty levels included.
func (ls *LevelSet) NumLevels() int { return len(ls.levels) }

// NumEmptyLevels returns how many leading levels are addressable only.
func (ls *LevelSet) NumEmptyLevels() int { return ls.numEmpty }

// Level returns the level with the given number.
func (ls *LevelSet) Level(n int) *Level { return &ls.levels[n] }

// LastLevel returns the finest level.
func (ls *LevelSet) LastLevel() *Level { return &ls.levels[len(ls.levels)-1] }

// IsFinalLevel reports whether level n is the last materialized level.
func (ls *LevelSet) IsFinalLevel(n int) bool { return n == len(ls.levels)-1 }

// TileRow returns the row of the tile containing the latitude at a level.
func (ls *LevelSet) TileRow(level int, lat float64) int {
	return int(math.Floor((lat - ls.origin.Lat) / ls.levels[level].TileDelta.Lat))
}

// TileCol returns the column of the tile containing the longitude at a level.
func (ls *LevelSet) TileCol(level int, lon float64) int {
	return int(math.Floor((lon - ls.origin.Lon) / ls.levels[level].TileDelta.Lon))
}

// TileSector recovers the sector of tile (level, row, col) by multiplying
// the address back through the level's tile delta.
func (ls *LevelSet) TileSector(level, row, col int) Sector {
	d := ls.levels[level].TileDelta
	return Sector{
		MinLat: ls.origin.Lat + float64(row)*d.Lat,
		MaxLat: ls.origin.Lat + float64(row+1)*d.Lat,
		MinLon: ls.origin.Lon + float64(col)*d.Lon,
		MaxLon: ls.origin.Lon + float64(col+1)*d.Lon,
	}
}

// TileAt returns the tile containing the point at the given level.
func (ls *LevelSet) TileAt(level int, lat, lon float64) Tile {
	row := ls.TileRow(level, lat)
	col := ls.TileCol(level, lon)
	return Tile{Level: level, Row: row, Col: col, Sector: ls.TileSector(level, row, col)}
}

// TileRange returns the inclusive row and column range of tiles at a level
// whose sectors intersect the given sector.
func (ls *LevelSet) TileRange(level int, sector Sector) (minRow, maxRow, minCol, maxCol int) {
	d := ls.levels[level].TileDelta
	minRow = ls.TileRow(level, sector.MinLat)
	minCol = ls.TileCol(level, sector.MinLon)
	// Upper edges landing exactly on a tile boundary belong to the tile
	// below/left of the boundary.
	maxRow = int(math.Ceil((sector.MaxLat-ls.origin.Lat)/d.Lat)) - 1
	maxCol = int(math.Ceil((sector.MaxLon-ls.origin.Lon)/d.Lon)) - 1
	if maxRow < minRow {
		maxRow = minRow
	}
	if maxCol < minCol {
		maxCol = minCol
	}
	return minRow, maxRow, minCol, maxCol
}

// TileCount returns the number of tile addresses at a level intersecting the
// sector.
func (ls *LevelSet) TileCount(level int, sector Sector) int64 {
	minRow, maxRow, minCol, maxCol := ls.TileRange(level, sector)
	return int64(maxRow-minRow+1) * int64(maxCol-minCol+1)
}

// OutOfBounds reports whether any addressed tile in the level set's footprint
// would extend past the valid latitude/longitude range. Production recomputes
// the level set with an integral delta and a (-90,-180) origin when this
// happens.
func (ls *LevelSet) OutOfBounds() bool {
	minRow, maxRow, minCol, maxCol := ls.TileRange(0, ls.sector)
	first := ls.TileSector(0, minRow, minCol)
	last := ls.TileSector(0, maxRow, maxCol)
	const eps = 1e-9
	return first.MinLat < FullSphere.MinLat-eps || first.MinLon < FullSphere.MinLon-eps ||
		last.MaxLat > FullSphere.MaxLat+eps || last.MaxLon > FullSphere.MaxLon+eps
}
