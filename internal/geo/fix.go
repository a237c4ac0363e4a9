// Package geo holds the pure geometry behind route synchronisation:
// great-circle distance, location clustering, segment keys and GPX tracks.
package geo

import (
	"math"
	"time"
)

// Fix is a single GPS sample. TimeStamp is unix milliseconds.
type Fix struct {
	Latitude  float64
	Longitude float64
	TimeStamp int64
	Accuracy  float64
}

// Time returns the sample time in UTC.
func (f Fix) Time() time.Time { return time.UnixMilli(f.TimeStamp).UTC() }

// Valid reports whether the coordinates are finite and inside WGS84 bounds.
func (f Fix) Valid() bool {
	if math.IsNaN(f.Latitude) || math.IsNaN(f.Longitude) ||
		math.IsInf(f.Latitude, 0) || math.IsInf(f.Longitude, 0) {
		return false
	}
	return f.Latitude >= -90 && f.Latitude <= 90 && f.Longitude >= -180 && f.Longitude <= 180
}

// FilterAccurate returns the fixes whose accuracy is strictly below threshold,
// preserving order.
func FilterAccurate(fixes []Fix, threshold float64) []Fix {
	out := make([]Fix, 0, len(fixes))
	for _, f := range fixes {
		if f.Accuracy < threshold {
			out = append(out, f)
		}
	}
	return out
}
