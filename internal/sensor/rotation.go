package sensor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// minFieldNorm rejects rotation matrices when the device is in free fall or
// the magnetic field is close to parallel with gravity.
const minFieldNorm = 0.1

// RotationMatrix computes the device-to-world rotation from a gravity vector
// and a geomagnetic vector. Rows are east, north and up expressed in device
// coordinates. It returns false when the inputs are degenerate.
func RotationMatrix(gravity, geomagnetic [3]float64) (*mat.Dense, bool) {
	a := mat.NewVecDense(3, gravity[:])
	e := mat.NewVecDense(3, geomagnetic[:])

	normA := mat.Norm(a, 2)
	if math.IsNaN(normA) || normA == 0 {
		return nil, false
	}

	h := cross(e, a)
	normH := mat.Norm(h, 2)
	if math.IsNaN(normH) || normH < minFieldNorm {
		return nil, false
	}
	h.ScaleVec(1/normH, h)

	up := mat.NewVecDense(3, nil)
	up.ScaleVec(1/normA, a)
	north := cross(up, h)

	r := mat.NewDense(3, 3, nil)
	r.SetRow(0, h.RawVector().Data)
	r.SetRow(1, north.RawVector().Data)
	r.SetRow(2, up.RawVector().Data)
	return r, true
}

// Orientation returns azimuth, pitch and roll in radians for a rotation matrix.
func Orientation(r mat.Matrix) (azimuth, pitch, roll float64) {
	azimuth = math.Atan2(r.At(0, 1), r.At(1, 1))
	pitch = math.Asin(-r.At(2, 1))
	roll = math.Atan2(-r.At(2, 0), r.At(2, 2))
	return azimuth, pitch, roll
}

func cross(u, v mat.Vector) *mat.VecDense {
	return mat.NewVecDense(3, []float64{
		u.AtVec(1)*v.AtVec(2) - u.AtVec(2)*v.AtVec(1),
		u.AtVec(2)*v.AtVec(0) - u.AtVec(0)*v.AtVec(2),
		u.AtVec(0)*v.AtVec(1) - u.AtVec(1)*v.AtVec(0),
	})
}

func flatten(r *mat.Dense) [9]float64 {
	var out [9]float64
	copy(out[:], r.RawMatrix().Data)
	return out
}
