package spatialmath

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// ErrZeroQuaternion is returned when a rotation is requested from a quaternion of zero norm.
var ErrZeroQuaternion = errors.New("quaternion has zero norm")

// Quaternion is an Orientation backed by a gonum quaternion. It is not required to be of unit
// norm; every conversion normalizes it first.
type Quaternion quat.Number

// NewQuaternionXYZW builds a Quaternion from the scalar-last component order used by calibration
// files and parameter vectors.
func NewQuaternionXYZW(xyzw [4]float64) *Quaternion {
	return &Quaternion{Imag: xyzw[0], Jmag: xyzw[1], Kmag: xyzw[2], Real: xyzw[3]}
}

// XYZW returns the components in scalar-last order.
func (q *Quaternion) XYZW() [4]float64 {
	return [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}

// Quaternion returns the unit quaternion. A zero quaternion yields the identity.
func (q *Quaternion) Quaternion() quat.Number {
	n, err := normalize(quat.Number(*q))
	if err != nil {
		return quat.Number{Real: 1}
	}
	return n
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (q *Quaternion) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(q.Quaternion())
}

// AxisAngles returns the orientation in axis angle representation.
func (q *Quaternion) AxisAngles() *R4AA {
	return QuatToR4AA(q.Quaternion())
}

// NormalizeQuat scales q to unit norm. It fails on a zero quaternion.
func NormalizeQuat(q quat.Number) (quat.Number, error) {
	return normalize(q)
}

func normalize(q quat.Number) (quat.Number, error) {
	norm := quat.Abs(q)
	if norm == 0 || math.IsNaN(norm) {
		return q, ErrZeroQuaternion
	}
	return quat.Scale(1/norm, q), nil
}

// Canonicalize returns q or -q, whichever has a non-negative real part. Both encode the same rotation.
func Canonicalize(q quat.Number) quat.Number {
	if q.Real < 0 {
		return quat.Scale(-1, q)
	}
	return q
}

// QuatToRotationMatrix converts a quaternion to a rotation matrix, normalizing it first.
// A zero quaternion yields the identity.
func QuatToRotationMatrix(q quat.Number) *RotationMatrix {
	q, err := normalize(q)
	if err != nil {
		q = quat.Number{Real: 1}
	}
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{mat: [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	}}
}
