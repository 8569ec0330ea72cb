package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/surroundview/utils"
)

// ExtrinsicZXZ is a rotation given as three extrinsic Euler angles in degrees: Z1 about the fixed
// z axis, then X about the fixed x axis, then Z2 about the fixed z axis again, so that
// R = Rz(Z2)·Rx(X)·Rz(Z1).
type ExtrinsicZXZ struct {
	Z1 float64 `json:"rot_z1"`
	X  float64 `json:"rot_x"`
	Z2 float64 `json:"rot_z2"`
}

// Quaternion returns orientation in quaternion representation.
func (e *ExtrinsicZXZ) Quaternion() quat.Number {
	// mgl64 composes its arguments as intrinsic rotations: AnglesToQuat(a, b, c, ZXZ) = Rz(a)·Rx(b)·Rz(c).
	q := mgl64.AnglesToQuat(utils.DegToRad(e.Z2), utils.DegToRad(e.X), utils.DegToRad(e.Z1), mgl64.ZXZ)
	return quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]}
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (e *ExtrinsicZXZ) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(e.Quaternion())
}

// AxisAngles returns the orientation in axis angle representation.
func (e *ExtrinsicZXZ) AxisAngles() *R4AA {
	return QuatToR4AA(e.Quaternion())
}

// NewExtrinsicZXZFromRotationMatrix recovers the angles of a rotation, with X in [0, 180]. When X is
// 0 or 180 only the sum or difference of the z angles is defined and Z1 is reported as 0.
func NewExtrinsicZXZFromRotationMatrix(rm *RotationMatrix) *ExtrinsicZXZ {
	cosX := utils.Clamp(rm.At(2, 2), -1, 1)
	x := math.Acos(cosX)
	if math.Abs(math.Sin(x)) < 1e-9 {
		return &ExtrinsicZXZ{X: utils.RadToDeg(x), Z2: utils.RadToDeg(math.Atan2(rm.At(1, 0), rm.At(0, 0)))}
	}
	return &ExtrinsicZXZ{
		Z1: utils.RadToDeg(math.Atan2(rm.At(2, 0), rm.At(2, 1))),
		X:  utils.RadToDeg(x),
		Z2: utils.RadToDeg(math.Atan2(rm.At(0, 2), -rm.At(1, 2))),
	}
}
