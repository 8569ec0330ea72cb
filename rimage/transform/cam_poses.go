package transform

import (
	"github.com/golang/geo/r3"

	"go.viam.com/surroundview/spatialmath"
)

// CamPose is the extrinsic pose of a camera: Rotation maps camera-frame directions into the world
// frame and Translation is the camera centre in world coordinates. A world point p has camera
// coordinates Rotationᵀ(p - Translation).
type CamPose struct {
	Rotation    *spatialmath.RotationMatrix
	Translation r3.Vector
}

// NewCamPose creates a pose from any orientation representation.
func NewCamPose(translation r3.Vector, orientation spatialmath.Orientation) CamPose {
	return CamPose{Rotation: orientation.RotationMatrix(), Translation: translation}
}

// WorldToCamera converts a world point into the camera frame.
func (cp CamPose) WorldToCamera(p r3.Vector) r3.Vector {
	return cp.Rotation.TransposeMul(p.Sub(cp.Translation))
}
