package bev

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/surroundview/calibration"
	"go.viam.com/surroundview/rimage/transform"
	"go.viam.com/surroundview/spatialmath"
	"go.viam.com/surroundview/utils"
)

// Override is a manually entered camera pose: ground position and extrinsic ZXZ Euler angles in
// degrees. Z keeps the camera's current height when nil.
type Override struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Z     *float64 `json:"z,omitempty"`
	RotZ1 float64  `json:"rot_z1"`
	RotX  float64  `json:"rot_x"`
	RotZ2 float64  `json:"rot_z2"`
}

// Validate checks that every value is finite.
func (o *Override) Validate(path string) error {
	values := []float64{o.X, o.Y, o.RotZ1, o.RotX, o.RotZ2}
	if o.Z != nil {
		values = append(values, *o.Z)
	}
	if !utils.IsFinite(values...) {
		return utils.NewConfigValidationError(path, errors.New("pose override values must be finite"))
	}
	return nil
}

// Euler returns the override's rotation.
func (o *Override) Euler() *spatialmath.ExtrinsicZXZ {
	return &spatialmath.ExtrinsicZXZ{Z1: o.RotZ1, X: o.RotX, Z2: o.RotZ2}
}

// Pose returns the override as a pose, taking the height from fallbackZ unless Z is set.
func (o *Override) Pose(fallbackZ float64) transform.CamPose {
	z := fallbackZ
	if o.Z != nil {
		z = *o.Z
	}
	return transform.NewCamPose(r3.Vector{X: o.X, Y: o.Y, Z: z}, o.Euler())
}

// DefaultOverrides is the nominal hand-measured pose of each camera on the reference vehicle, in
// front, left, right, rear order. It is a starting guess for tuning and optimization.
func DefaultOverrides() [4]Override {
	return [4]Override{
		{X: 3.7, Y: 0, RotZ1: 180, RotX: 90, RotZ2: 90},
		{X: 2, Y: 1, RotZ1: 180, RotX: 180, RotZ2: -180},
		{X: 2, Y: -1, RotZ1: -180, RotX: 180, RotZ2: 0},
		{X: -1, Y: 0, RotZ1: 180, RotX: 90, RotZ2: -90},
	}
}

// ApplyOverrides returns a new rig with the given cameras moved to their override poses. Cameras
// without an override keep their pose.
func ApplyOverrides(rig *calibration.Rig, overrides map[calibration.CameraID]Override) (*calibration.Rig, error) {
	poses := rig.Poses()
	for id, o := range overrides {
		if id < calibration.Front || id > calibration.Rear {
			return nil, errors.Errorf("unknown camera %v", id)
		}
		if err := o.Validate(id.String()); err != nil {
			return nil, err
		}
		poses[id] = o.Pose(poses[id].Translation.Z)
	}
	return rig.WithPoses(poses), nil
}

// AllOverrides wraps a full set of overrides, indexed by camera, for ApplyOverrides.
func AllOverrides(overrides [4]Override) map[calibration.CameraID]Override {
	out := make(map[calibration.CameraID]Override, len(overrides))
	for i, o := range overrides {
		out[calibration.CameraID(i)] = o
	}
	return out
}
