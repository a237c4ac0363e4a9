package geo

import (
	"fmt"
	"math"
)

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000.0

// Distance returns the haversine great-circle distance in meters between two
// coordinates. It fails when any input or the result is not finite.
func Distance(lat1, lon1, lat2, lon2 float64) (float64, error) {
	for _, v := range [...]float64{lat1, lon1, lat2, lon2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite coordinate in (%v, %v) -> (%v, %v)", lat1, lon1, lat2, lon2)
		}
	}
	if lat1 == lat2 && lon1 == lon2 {
		return 0, nil
	}

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	d := EarthRadius * c
	if math.IsNaN(d) {
		return 0, fmt.Errorf("distance is not a number for (%v, %v) -> (%v, %v)", lat1, lon1, lat2, lon2)
	}
	return d, nil
}

// FixDistance returns the distance in meters between two fixes.
func FixDistance(a, b Fix) (float64, error) {
	return Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}
