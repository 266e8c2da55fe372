package pyramid

import (
	"fmt"
	"math"
)

// LatLon is a geographic coordinate pair in degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// Sector is a geographic bounding rectangle in degrees. Latitude grows
// north, longitude grows east. Sectors never wrap the antimeridian; a
// dataset straddling ±180° must be supplied as two sources.
type Sector struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// FullSphere is the complete valid latitude/longitude range.
var FullSphere = Sector{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}

// NewSector creates a sector from two corners, normalizing the min/max order.
func NewSector(lat0, lon0, lat1, lon1 float64) Sector {
	return Sector{
		MinLat: math.Min(lat0, lat1),
		MaxLat: math.Max(lat0, lat1),
		MinLon: math.Min(lon0, lon1),
		MaxLon: math.Max(lon0, lon1),
	}
}

// DeltaLat returns the latitude extent in degrees.
func (s Sector) DeltaLat() float64 { return s.MaxLat - s.MinLat }

// DeltaLon returns the longitude extent in degrees.
func (s Sector) DeltaLon() float64 { return s.MaxLon - s.MinLon }

// IsValid reports whether the sector has positive extent on both axes.
func (s Sector) IsValid() bool {
	return s.DeltaLat() > 0 && s.DeltaLon() > 0
}

// Contains reports whether the point lies within the sector, inclusive of
// all edges.
func (s Sector) Contains(lat, lon float64) bool {
	return lat >= s.MinLat && lat <= s.MaxLat && lon >= s.MinLon && lon <= s.MaxLon
}

// Intersects reports whether the two sectors share any area. Sectors that
// touch only at an edge or corner do not intersect.
func (s Sector) Intersects(other Sector) bool {
	return s.MinLat < other.MaxLat && s.MaxLat > other.MinLat &&
		s.MinLon < other.MaxLon && s.MaxLon > other.MinLon
}

// Intersection returns the overlapping sector. ok is false when the sectors
// do not intersect.
func (s Sector) Intersection(other Sector) (Sector, bool) {
	if !s.Intersects(other) {
		return Sector{}, false
	}
	return Sector{
		MinLat: math.Max(s.MinLat, other.MinLat),
		MaxLat: math.Min(s.MaxLat, other.MaxLat),
		MinLon: math.Max(s.MinLon, other.MinLon),
		MaxLon: math.Min(s.MaxLon, other.MaxLon),
	}, true
}

// Union returns the smallest sector containing both sectors.
func (s Sector) Union(other Sector) Sector {
	return Sector{
		MinLat: math.Min(s.MinLat, other.MinLat),
		MaxLat: math.Max(s.MaxLat, other.MaxLat),
		MinLon: math.Min(s.MinLon, other.MinLon),
		MaxLon: math.Max(s.MaxLon, other.MaxLon),
	}
}

// Clamp constrains the sector to the full valid latitude/longitude range.
func (s Sector) Clamp() Sector {
	return Sector{
		MinLat: math.Max(s.MinLat, FullSphere.MinLat),
		MaxLat: math.Min(s.MaxLat, FullSphere.MaxLat),
		MinLon: math.Max(s.MinLon, FullSphere.MinLon),
		MaxLon: math.Min(s.MaxLon, FullSphere.MaxLon),
	}
}

// LowerLeft returns the sector's south-west corner.
func (s Sector) LowerLeft() LatLon {
	return LatLon{Lat: s.MinLat, Lon: s.MinLon}
}

func (s Sector) String() string {
	return fmt.Sprintf("(%.6f, %.6f) - (%.6f, %.6f)", s.MinLat, s.MinLon, s.MaxLat, s.MaxLon)
}
