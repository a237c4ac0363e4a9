package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SegmentKey builds the canonical key for the travel edge between two route
// coordinates given as [lon, lat]. The point with the larger latitude goes
// last so both directions of travel map to the same key.
func SegmentKey(from, to []float64) (string, error) {
	if len(from) < 2 || len(to) < 2 {
		return "", fmt.Errorf("route coordinate needs [lon, lat], got %v and %v", from, to)
	}
	fromLon, fromLat := from[0], from[len(from)-1]
	toLon, toLat := to[0], to[len(to)-1]
	for _, v := range [...]float64{fromLon, fromLat, toLon, toLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("non-finite route coordinate in %v -> %v", from, to)
		}
	}

	if toLat > fromLat {
		return joinKey(fromLat, fromLon, toLat, toLon), nil
	}
	return joinKey(toLat, toLon, fromLat, fromLon), nil
}

func joinKey(lat1, lon1, lat2, lon2 float64) string {
	return formatCoord(lat1) + "," + formatCoord(lon1) + "," + formatCoord(lat2) + "," + formatCoord(lon2)
}

// formatCoord writes v the way the capture app's keys spell doubles, so keys
// from both sources aggregate on the server: shortest round-trip digits,
// always with a fraction ("75.0"), and "d.dE-n" notation outside
// [1e-3, 1e7).
func formatCoord(v float64) string {
	abs := math.Abs(v)
	if abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	mant, exp, _ := strings.Cut(strconv.FormatFloat(v, 'E', -1, 64), "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	n, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(n)
}
