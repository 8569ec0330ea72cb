// Package spatialmath defines the rotation representations used for camera poses and the
// conversions between them.
package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of a camera
// orientation. All implementations convert through a unit quaternion.
type Orientation interface {
	Quaternion() quat.Number
	RotationMatrix() *RotationMatrix
	AxisAngles() *R4AA
}

// OrientationAlmostEqual returns true if the two orientations describe the same rotation within
// the given angular tolerance in radians.
func OrientationAlmostEqual(o1, o2 Orientation, tolerance float64) bool {
	return QuatAngleBetween(o1.Quaternion(), o2.Quaternion()) <= tolerance
}

// QuatAngleBetween returns the angle in radians of the rotation taking q1 onto q2.
func QuatAngleBetween(q1, q2 quat.Number) float64 {
	q1, _ = normalize(q1)
	q2, _ = normalize(q2)
	r := quat.Mul(quat.Conj(q1), q2)
	return 2 * math.Atan2(math.Sqrt(r.Imag*r.Imag+r.Jmag*r.Jmag+r.Kmag*r.Kmag), math.Abs(r.Real))
}
