package pyramid

// DefaultFormatSuffix is the tile format used when the production
// parameters do not specify one.
const DefaultFormatSuffix = "png"

// ProductionParams configures one pyramid production run. StoreLocation,
// CacheName and DatasetName are required; everything else has a derived or
// fixed default. Parameters are read once when Build starts and must not be
// mutated afterwards.
type ProductionParams struct {
	// StoreLocation is the file-store root the pyramid is written under.
	StoreLocation string
	// CacheName is the pyramid's directory path relative to StoreLocation.
	CacheName string
	// DatasetName names the dataset in the manifest.
	DatasetName string

	// Sector constrains the dataset sector. When nil, the union of the
	// source sectors is used.
	Sector *Sector
	// TileWidth and TileHeight are the tile dimensions in pixels
	// (default 512x512).
	TileWidth  int
	TileHeight int
	// NumLevels forces the level count instead of deriving it from the
	// smallest source pixel size. Zero means derive.
	NumLevels int
	// NumEmptyLevels marks that many leading levels addressable but not
	// materialized.
	NumEmptyLevels int
	// LevelZeroDelta forces the coarsest tile delta. Nil means derive.
	LevelZeroDelta *LatLon
	// TileOrigin anchors tile (0,0). Nil means the sector's lower-left
	// corner.
	TileOrigin *LatLon
	// LevelLimit caps the final level: a literal integer (clamped), "Auto"
	// (50% of max), or "NN%". Empty means no limit.
	LevelLimit string
	// FormatSuffix selects the tile format by file suffix (default "png").
	FormatSuffix string
}

// Validate checks the required parameters. It runs before any I/O, so a
// failure guarantees nothing was written.
func (p *ProductionParams) Validate() error {
	if p.StoreLocation == "" {
		return &ValidationError{Param: "StoreLocation", Reason: "required"}
	}
	if p.CacheName == "" {
		return &ValidationError{Param: "CacheName", Reason: "required"}
	}
	if p.DatasetName == "" {
		return &ValidationError{Param: "DatasetName", Reason: "required"}
	}
	if p.TileWidth < 0 || p.TileHeight < 0 {
		return &ValidationError{Param: "TileWidth/TileHeight", Reason: "must not be negative"}
	}
	if p.NumLevels < 0 {
		return &ValidationError{Param: "NumLevels", Reason: "must not be negative"}
	}
	if p.NumEmptyLevels < 0 {
		return &ValidationError{Param: "NumEmptyLevels", Reason: "must not be negative"}
	}
	if p.Sector != nil && !p.Sector.IsValid() {
		return &ValidationError{Param: "Sector", Reason: "sector has no extent"}
	}
	return nil
}

// withDefaults returns a copy with fixed defaults applied.
func (p ProductionParams) withDefaults() ProductionParams {
	if p.TileWidth == 0 {
		p.TileWidth = DefaultTileSize
	}
	if p.TileHeight == 0 {
		p.TileHeight = DefaultTileSize
	}
	if p.FormatSuffix == "" {
		p.FormatSuffix = DefaultFormatSuffix
	}
	return p
}
