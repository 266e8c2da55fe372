package pyramid

import (
	"strconv"
	"strings"
)

// DefaultTileSize is the tile edge length, in pixels, used when the
// production parameters do not specify one.
const DefaultTileSize = 512

// maxLevelCount bounds level derivation against degenerate pixel sizes.
const maxLevelCount = 32

// Level is one resolution tier of a pyramid. Level 0 is coarsest; each
// subsequent level halves the tile delta on both axes. An empty level is
// addressable but deliberately not materialized.
type Level struct {
	Number     int
	TileWidth  int
	TileHeight int
	TileDelta  LatLon
	Empty      bool
}

// NumLevels returns the smallest level count n >= 1 such that
// levelZero / 2^(n-1) <= final on both axes. A non-positive final delta on
// either axis yields the maximum supported count.
func NumLevels(levelZero, final LatLon) int {
	if final.Lat <= 0 || final.Lon <= 0 {
		return maxLevelCount
	}
	n := 1
	dLat, dLon := levelZero.Lat, levelZero.Lon
	// Small relative slack absorbs float noise when the ratio is an exact
	// power of two.
	const slack = 1 + 1e-9
	for (dLat > final.Lat*slack || dLon > final.Lon*slack) && n < maxLevelCount {
		dLat /= 2
		dLon /= 2
		n++
	}
	return n
}

// ResolveLevelLimit interprets a caller-specified final-level limit against
// the maximum level number of a pyramid. Accepted forms:
//
//   - a literal integer, clamped to [0, max]
//   - "Auto" (case-insensitive): 50% of max, floored
//   - "NN%": floor(NN/100 * max)
//
// An empty string means no limit and returns max. Any other malformed value
// falls back to max with a logged warning.
func ResolveLevelLimit(limit string, max int) int {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return max
	}
	if strings.EqualFold(limit, "auto") {
		return max / 2
	}
	if strings.HasSuffix(limit, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(limit, "%"))
		if err != nil || pct < 0 {
			Logger().Warn("malformed level limit, using maximum", "limit", limit, "max", max)
			return max
		}
		n := pct * max / 100
		if n > max {
			n = max
		}
		return n
	}
	n, err := strconv.Atoi(limit)
	if err != nil {
		Logger().Warn("malformed level limit, using maximum", "limit", limit, "max", max)
		return max
	}
	return clampInt(n, 0, max)
}
