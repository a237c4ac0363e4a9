package sensor

import "math"

// MagneticHeading returns a tilt-compensated compass heading in radians from
// a gravity vector and a magnetic field vector, after subtracting a
// hard-iron bias from the field. It returns NaN when the vectors are
// degenerate.
func MagneticHeading(gravity, field, bias [3]float64) float64 {
	var corrected [3]float64
	for i := range field {
		corrected[i] = field[i] - bias[i]
	}
	r, ok := RotationMatrix(gravity, corrected)
	if !ok {
		return math.NaN()
	}
	azimuth, _, _ := Orientation(r)
	return azimuth
}
