package calibration

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/surroundview/rimage/transform"
	"go.viam.com/surroundview/spatialmath"
)

const (
	// ParametersPerCamera is the number of entries each camera takes in a ParameterVector.
	ParametersPerCamera = 6
	// ParameterCount is the length of a ParameterVector.
	ParameterCount = 4 * ParametersPerCamera
)

// ParameterVector is the flat optimization state: for front, left, right and rear in turn,
// [x, y, qx, qy, qz, qw]. Camera heights are carried separately and never optimized.
type ParameterVector []float64

// EncodeParameters flattens the rig's poses into a ParameterVector. Quaternions are unit length
// with a non-negative scalar part.
func EncodeParameters(rig *Rig) ParameterVector {
	vec := make(ParameterVector, ParameterCount)
	for i, pose := range rig.Poses() {
		q := pose.Rotation.Quaternion()
		copy(vec[i*ParametersPerCamera:], []float64{
			pose.Translation.X, pose.Translation.Y,
			q.Imag, q.Jmag, q.Kmag, q.Real,
		})
	}
	return vec
}

// Camera returns the slice of the vector belonging to one camera.
func (pv ParameterVector) Camera(id CameraID) []float64 {
	start := int(id) * ParametersPerCamera
	return pv[start : start+ParametersPerCamera]
}

// Quaternion returns one camera's quaternion as stored, without normalization.
func (pv ParameterVector) Quaternion(id CameraID) quat.Number {
	c := pv.Camera(id)
	return quat.Number{Imag: c[2], Jmag: c[3], Kmag: c[4], Real: c[5]}
}

// Normalized returns a copy whose quaternions are unit length with a non-negative scalar part.
// Positions are unchanged. It fails if any quaternion is zero.
func (pv ParameterVector) Normalized() (ParameterVector, error) {
	if len(pv) != ParameterCount {
		return nil, errors.Errorf("parameter vector has %d entries, expected %d", len(pv), ParameterCount)
	}
	out := make(ParameterVector, ParameterCount)
	copy(out, pv)
	for _, id := range CameraIDs {
		q, err := spatialmath.NormalizeQuat(pv.Quaternion(id))
		if err != nil {
			return nil, errors.Wrapf(err, "%s camera", id)
		}
		q = spatialmath.Canonicalize(q)
		c := out.Camera(id)
		c[2], c[3], c[4], c[5] = q.Imag, q.Jmag, q.Kmag, q.Real
	}
	return out, nil
}

// DecodeParameters turns a ParameterVector and the fixed camera heights back into poses.
// Quaternions are normalized before conversion, so any non-zero scale of a quaternion describes
// the same rotation.
func DecodeParameters(pv ParameterVector, heights [4]float64) ([4]transform.CamPose, error) {
	var poses [4]transform.CamPose
	if len(pv) != ParameterCount {
		return poses, errors.Errorf("parameter vector has %d entries, expected %d", len(pv), ParameterCount)
	}
	for _, id := range CameraIDs {
		q, err := spatialmath.NormalizeQuat(pv.Quaternion(id))
		if err != nil {
			return poses, errors.Wrapf(err, "%s camera", id)
		}
		c := pv.Camera(id)
		poses[id] = transform.CamPose{
			Rotation:    spatialmath.QuatToRotationMatrix(q),
			Translation: r3.Vector{X: c[0], Y: c[1], Z: heights[id]},
		}
	}
	return poses, nil
}

// ApplyParameters returns a new rig at the poses encoded by pv, keeping the rig's camera heights.
func ApplyParameters(rig *Rig, pv ParameterVector) (*Rig, error) {
	poses, err := DecodeParameters(pv, rig.Heights())
	if err != nil {
		return nil, err
	}
	return rig.WithPoses(poses), nil
}
