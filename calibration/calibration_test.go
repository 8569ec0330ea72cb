package calibration

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/surroundview/rimage/transform"
	"go.viam.com/surroundview/spatialmath"
	"go.viam.com/surroundview/testutils"
)

func nominalRig(t *testing.T) *Rig {
	t.Helper()
	rig, err := NewRig(testutils.NominalCameras(t))
	test.That(t, err, test.ShouldBeNil)
	return rig
}

func syntheticCorrespondences(t *testing.T, rig *Rig) *Correspondences {
	t.Helper()
	corr, err := SyntheticCorrespondences(rig, testutils.OverlapGroundPoints())
	test.That(t, err, test.ShouldBeNil)
	for _, set := range corr.Sets {
		test.That(t, len(set.First), test.ShouldBeGreaterThanOrEqualTo, 5)
	}
	return corr
}

// perturbRig shifts and tilts every camera except skip by a small fixed amount.
func perturbRig(rig *Rig, skip CameraID) *Rig {
	poses := rig.Poses()
	for _, id := range CameraIDs {
		if id == skip {
			continue
		}
		sign := float64(int(id)%2)*2 - 1
		delta := spatialmath.R3ToR4(r3.Vector{X: 0.01 * sign, Y: -0.015, Z: 0.02 * sign}).ToQuat()
		q := quat.Mul(delta, poses[id].Rotation.Quaternion())
		poses[id] = transform.CamPose{
			Rotation:    spatialmath.QuatToRotationMatrix(q),
			Translation: poses[id].Translation.Add(r3.Vector{X: 0.05 * sign, Y: -0.03}),
		}
	}
	return rig.WithPoses(poses)
}

func TestCameraID(t *testing.T) {
	for _, id := range CameraIDs {
		parsed, err := CameraIDFromString(id.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, id)
	}
	parsed, err := CameraIDFromString("REAR")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldEqual, Rear)

	_, err = CameraIDFromString("roof")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "roof")
}

func TestNewRig(t *testing.T) {
	cams := testutils.NominalCameras(t)
	cams[Right] = nil
	_, err := NewRig(cams)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "right")

	rig := nominalRig(t)
	test.That(t, rig.Heights(), test.ShouldResemble, [4]float64{0.6, 1.0, 1.0, 0.9})

	// the rig keeps its own copies
	front := rig.Camera(Front)
	front.UpdateExtrinsics(r3.Vector{}, spatialmath.IdentityRotation())
	test.That(t, rig.Camera(Front).Pose().Translation, test.ShouldResemble, r3.Vector{X: 3.7, Y: 0, Z: 0.6})
}

func TestRigJSONFiles(t *testing.T) {
	dir := t.TempDir()
	var paths [4]string
	for i, id := range CameraIDs {
		paths[i] = dir + "/" + id.String() + ".json"
	}
	rig := nominalRig(t)
	test.That(t, rig.WriteJSONFiles(paths), test.ShouldBeNil)

	loaded, err := NewRigFromJSONFiles(paths)
	test.That(t, err, test.ShouldBeNil)
	for _, id := range CameraIDs {
		want, got := rig.Camera(id).Pose(), loaded.Camera(id).Pose()
		test.That(t, got.Translation.Sub(want.Translation).Norm(), test.ShouldBeLessThan, 1e-12)
		test.That(t, spatialmath.OrientationAlmostEqual(got.Rotation, want.Rotation, 1e-9), test.ShouldBeTrue)
	}

	paths[Rear] = dir + "/missing.json"
	_, err = NewRigFromJSONFiles(paths)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rear camera")
}
