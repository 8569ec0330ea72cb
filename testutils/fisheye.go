// Package testutils provides fixtures shared by tests: a realistic fisheye lens and a nominal
// four-camera surround-view rig.
package testutils

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/surroundview/rimage/transform"
	"go.viam.com/surroundview/spatialmath"
)

// FisheyeIntrinsics returns the lens of a typical 1280x966 automotive fisheye camera.
func FisheyeIntrinsics() transform.FisheyeIntrinsics {
	return transform.FisheyeIntrinsics{
		K1:          339.749,
		K2:          -31.988,
		K3:          48.275,
		K4:          -7.201,
		Width:       1280,
		Height:      966,
		CxOffset:    3.942,
		CyOffset:    -3.093,
		AspectRatio: 1.0,
	}
}

// RigPose is the nominal pose of one camera of the test rig.
type RigPose struct {
	Translation r3.Vector
	Euler       spatialmath.ExtrinsicZXZ
}

// NominalRigPoses returns front, left, right and rear poses of a car-like rig: the front and rear
// cameras look horizontally along +x and -x, the mirror cameras look down.
func NominalRigPoses() [4]RigPose {
	return [4]RigPose{
		{r3.Vector{X: 3.7, Y: 0, Z: 0.6}, spatialmath.ExtrinsicZXZ{Z1: 180, X: 90, Z2: 90}},
		{r3.Vector{X: 2, Y: 1, Z: 1.0}, spatialmath.ExtrinsicZXZ{Z1: 180, X: 180, Z2: -180}},
		{r3.Vector{X: 2, Y: -1, Z: 1.0}, spatialmath.ExtrinsicZXZ{Z1: -180, X: 180, Z2: 0}},
		{r3.Vector{X: -1, Y: 0, Z: 0.9}, spatialmath.ExtrinsicZXZ{Z1: 180, X: 90, Z2: -90}},
	}
}

// NominalCameras builds the four cameras of the nominal rig in front, left, right, rear order.
func NominalCameras(tb testing.TB) [4]*transform.FisheyeCamera {
	tb.Helper()
	var cams [4]*transform.FisheyeCamera
	for i, rp := range NominalRigPoses() {
		euler := rp.Euler
		cam, err := transform.NewFisheyeCamera(FisheyeIntrinsics(), transform.NewCamPose(rp.Translation, &euler))
		test.That(tb, err, test.ShouldBeNil)
		cams[i] = cam
	}
	return cams
}

// OverlapGroundPoints returns ground points seen by both cameras of each adjacent pair, in
// front-left, front-right, rear-left, rear-right order.
func OverlapGroundPoints() [4][]r3.Vector {
	frontLeft := []r3.Vector{
		{X: 4.5, Y: 2.0}, {X: 5.0, Y: 3.0}, {X: 4.0, Y: 2.5}, {X: 6.0, Y: 2.0},
		{X: 3.5, Y: 3.0}, {X: 5.5, Y: 1.5}, {X: 4.2, Y: 1.8},
	}
	rearLeft := []r3.Vector{
		{X: -2.0, Y: 2.0}, {X: -1.5, Y: 3.0}, {X: -3.0, Y: 2.5}, {X: -2.5, Y: 1.5},
		{X: -1.0, Y: 2.5}, {X: -3.5, Y: 1.8}, {X: -2.2, Y: 3.2},
	}
	mirror := func(points []r3.Vector) []r3.Vector {
		out := make([]r3.Vector, len(points))
		for i, p := range points {
			out[i] = r3.Vector{X: p.X, Y: -p.Y}
		}
		return out
	}
	return [4][]r3.Vector{frontLeft, mirror(frontLeft), rearLeft, mirror(rearLeft)}
}

// WriteJSONFile marshals v into path and fails the test on error.
func WriteJSONFile(tb testing.TB, path string, v interface{}) {
	tb.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	test.That(tb, err, test.ShouldBeNil)
	test.That(tb, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
}
