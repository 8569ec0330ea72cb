package transform

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/surroundview/spatialmath"
)

const frontCalibration = `{
    "extrinsic": {
        "quaternion": [0.5, -0.5, 0.5, -0.5],
        "translation": [3.7, 0.0, 0.6]
    },
    "intrinsic": {
        "aspect_ratio": 1.0, "cx_offset": 3.942, "cy_offset": -3.093,
        "height": 966, "width": 1280,
        "k1": 339.749, "k2": -31.988, "k3": 48.275, "k4": -7.201
    }
}`

func TestReadCalibration(t *testing.T) {
	calib, err := ReadCalibration(strings.NewReader(frontCalibration))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calib.Intrinsic, test.ShouldResemble, testIntrinsics())

	cam, err := calib.Camera()
	test.That(t, err, test.ShouldBeNil)
	expected := frontCamera(t).Pose()
	test.That(t, cam.Pose().Translation, test.ShouldResemble, expected.Translation)
	test.That(t, spatialmath.OrientationAlmostEqual(cam.Pose().Rotation, expected.Rotation, 1e-9), test.ShouldBeTrue)

	_, err = ReadCalibration(strings.NewReader("{"))
	test.That(t, err, test.ShouldNotBeNil)

	bad := *calib
	bad.Extrinsic.Quaternion = [4]float64{}
	_, err = bad.Camera()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "quaternion")
}

func TestCalibrationFileRoundTrip(t *testing.T) {
	cam := frontCamera(t)
	path := filepath.Join(t.TempDir(), "optimized", "front.json")
	test.That(t, WriteFisheyeCameraToJSONFile(cam, path), test.ShouldBeNil)

	raw, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(raw), test.ShouldContainSubstring, "\n    \"extrinsic\"")
	var generic map[string]map[string]interface{}
	test.That(t, json.Unmarshal(raw, &generic), test.ShouldBeNil)
	test.That(t, generic["extrinsic"]["quaternion"], test.ShouldHaveLength, 4)
	test.That(t, generic["intrinsic"]["cx_offset"], test.ShouldEqual, 3.942)

	back, err := NewFisheyeCameraFromJSONFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Intrinsics(), test.ShouldResemble, cam.Intrinsics())
	test.That(t, back.Pose().Translation, test.ShouldResemble, cam.Pose().Translation)
	test.That(t, spatialmath.OrientationAlmostEqual(back.Pose().Rotation, cam.Pose().Rotation, 1e-12), test.ShouldBeTrue)

	q := NewCalibrationFile(cam).Extrinsic.Quaternion
	test.That(t, q[3], test.ShouldBeGreaterThanOrEqualTo, 0)

	_, err = NewFisheyeCameraFromJSONFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	var buf bytes.Buffer
	test.That(t, WriteCalibration(&buf, NewCalibrationFile(cam)), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, `"aspect_ratio": 1`)
}
