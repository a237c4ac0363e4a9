package geo

import (
	"fmt"
	"math"
)

// NormalizeDegrees maps an angle in degrees into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// Direction returns the compass label for an azimuth in degrees.
func Direction(deg float64) string {
	switch {
	case deg >= 350 || deg <= 10:
		return "N"
	case deg > 280:
		return "NW"
	case deg > 260:
		return "W"
	case deg > 190:
		return "SW"
	case deg > 170:
		return "S"
	case deg > 100:
		return "SE"
	case deg > 80:
		return "E"
	default:
		return "NE"
	}
}

// AngleWithDirection formats an azimuth in radians as "<degrees> <label>",
// degrees rounded to two places.
func AngleWithDirection(azimuthRad float64) string {
	deg := NormalizeDegrees(azimuthRad * 180 / math.Pi)
	rounded := math.Round(deg*100) / 100
	return fmt.Sprintf("%s %s", formatCoord(rounded), Direction(deg))
}
