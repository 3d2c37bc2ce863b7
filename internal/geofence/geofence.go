package geofence

import "math"

// Box is a rectangular geographic region in degrees.
type Box struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// Contains reports whether the coordinate pair lies inside the box.
// NaN and infinite coordinates are always rejected.
func (b Box) Contains(lat, lon float64) bool {
	if !finite(lat) || !finite(lon) {
		return false
	}
	return lat >= b.LatMin && lat <= b.LatMax &&
		lon >= b.LonMin && lon <= b.LonMax
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
