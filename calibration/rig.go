// Package calibration refines the extrinsic poses of a four-camera fisheye surround-view rig from
// pixel correspondences between adjacent cameras.
package calibration

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/surroundview/rimage/transform"
)

// CameraID names a camera of the rig.
type CameraID int

// The four cameras, in parameter vector order.
const (
	Front CameraID = iota
	Left
	Right
	Rear
)

// CameraIDs lists every camera in parameter vector order.
var CameraIDs = [4]CameraID{Front, Left, Right, Rear}

var cameraNames = [4]string{"front", "left", "right", "rear"}

func (id CameraID) String() string {
	if id < Front || id > Rear {
		return fmt.Sprintf("camera(%d)", int(id))
	}
	return cameraNames[id]
}

// CameraIDFromString parses a camera name.
func CameraIDFromString(name string) (CameraID, error) {
	for i, n := range cameraNames {
		if strings.EqualFold(n, name) {
			return CameraID(i), nil
		}
	}
	return 0, errors.Errorf("unknown camera %q, expected one of %s", name, strings.Join(cameraNames[:], ", "))
}

// Rig is the set of four fisheye cameras. A Rig is never mutated once built; pose changes produce
// a new Rig sharing nothing mutable with the old one.
type Rig struct {
	cameras [4]*transform.FisheyeCamera
}

// NewRig builds a rig from cameras in front, left, right, rear order.
func NewRig(cameras [4]*transform.FisheyeCamera) (*Rig, error) {
	for i, cam := range cameras {
		if cam == nil {
			return nil, errors.Errorf("rig is missing the %s camera", CameraID(i))
		}
	}
	rig := &Rig{}
	for i, cam := range cameras {
		rig.cameras[i] = cam.WithPose(cam.Pose())
	}
	return rig, nil
}

// NewRigFromJSONFiles loads one calibration file per camera, in front, left, right, rear order.
func NewRigFromJSONFiles(paths [4]string) (*Rig, error) {
	var cameras [4]*transform.FisheyeCamera
	var errs error
	for i, path := range paths {
		cam, err := transform.NewFisheyeCameraFromJSONFile(path)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "%s camera", CameraID(i)))
			continue
		}
		cameras[i] = cam
	}
	if errs != nil {
		return nil, errs
	}
	return NewRig(cameras)
}

// Camera returns a copy of one camera.
func (r *Rig) Camera(id CameraID) *transform.FisheyeCamera {
	cam := r.cameras[id]
	return cam.WithPose(cam.Pose())
}

// Poses returns every camera pose.
func (r *Rig) Poses() [4]transform.CamPose {
	var poses [4]transform.CamPose
	for i, cam := range r.cameras {
		poses[i] = cam.Pose()
	}
	return poses
}

// Heights returns the z coordinate of every camera. Heights are not refined by the optimizer.
func (r *Rig) Heights() [4]float64 {
	var heights [4]float64
	for i, cam := range r.cameras {
		heights[i] = cam.Pose().Translation.Z
	}
	return heights
}

// WithPoses returns a new rig with the same intrinsics at different poses.
func (r *Rig) WithPoses(poses [4]transform.CamPose) *Rig {
	next := &Rig{}
	for i, cam := range r.cameras {
		next.cameras[i] = cam.WithPose(poses[i])
	}
	return next
}

// WriteJSONFiles saves one calibration file per camera, in front, left, right, rear order.
func (r *Rig) WriteJSONFiles(paths [4]string) error {
	for i, path := range paths {
		if err := transform.WriteFisheyeCameraToJSONFile(r.cameras[i], path); err != nil {
			return errors.Wrapf(err, "%s camera", CameraID(i))
		}
	}
	return nil
}
