// Package sensor fuses raw motion sensor readings into device orientation.
package sensor

import "fmt"

// Kind identifies the sensor an Event came from.
type Kind int

const (
	Accelerometer Kind = iota + 1
	LinearAcceleration
	Gyroscope
	GyroscopeUncalibrated
	MagneticField
	Gravity
)

var kindNames = map[Kind]string{
	Accelerometer:         "accelerometer",
	LinearAcceleration:    "linear_acceleration",
	Gyroscope:             "gyroscope",
	GyroscopeUncalibrated: "gyroscope_uncalibrated",
	MagneticField:         "magnetic_field",
	Gravity:               "gravity",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown sensor kind %q", s)
}

// Event is one reading. Timestamp is nanoseconds on a monotonic clock.
type Event struct {
	Kind      Kind
	Timestamp int64
	Values    [3]float64
}

// Meta is the fused motion state published to subscribers.
// Angles are radians unless the field name says otherwise.
type Meta struct {
	Accelerometer       [3]float64
	LinearAcceleration  [3]float64
	MagneticField       [3]float64
	GyroscopeCalibrated [3]float64
	AngularVelocity     [3]float64 // integrated delta orientation of the last gyro sample
	GyroHeadingDegrees  float64
	UncalibratedHeading float64 // degrees, bias-corrected integration of the raw gyro
	MagHeading          float64
	Azimuth             float64
	Pitch               float64
	Roll                float64
	AngleWithDirection  string
	RotationMatrix      [9]float64
	Timestamp           int64
}
