package bev

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/surroundview/calibration"
	"go.viam.com/surroundview/logging"
	"go.viam.com/surroundview/rimage"
	"go.viam.com/surroundview/testutils"
)

func cameraImages() [4]*image.NRGBA {
	intr := testutils.FisheyeIntrinsics()
	var images [4]*image.NRGBA
	for i := range images {
		images[i] = uniform(intr.Width, intr.Height, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	}
	return images
}

func TestRender(t *testing.T) {
	rig, err := calibration.NewRig(testutils.NominalCameras(t))
	test.That(t, err, test.ShouldBeNil)
	images := cameraImages()
	renderer := NewRenderer(logging.NewTestLogger(t))

	cfg := RenderConfig{Size: 96, Interpolation: rimage.Linear}
	out, err := renderer.Render(context.Background(), rig, images, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Bounds(), test.ShouldResemble, image.Rect(0, 0, 96, 96))
	// the ground just ahead of the front bumper is seen and stretched to full brightness
	row, col := CanvasPosition(DefaultRange, 96, 5, 0)
	test.That(t, out.NRGBAAt(int(col), int(row)).R, test.ShouldBeGreaterThan, 0)
	maxR := uint8(0)
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] > maxR {
			maxR = out.Pix[i]
		}
	}
	test.That(t, maxR, test.ShouldEqual, 255)

	// same poses hit the cache
	_, err = renderer.Render(context.Background(), rig, images, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, renderer.cache.Hits(), test.ShouldEqual, 4)

	// overriding with the nominal guess reproduces the nominal rig
	cfg.Overrides = map[string]Override{}
	for i, o := range DefaultOverrides() {
		cfg.Overrides[calibration.CameraID(i).String()] = o
	}
	overridden, err := renderer.Render(context.Background(), rig, images, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, overridden.Pix, test.ShouldResemble, out.Pix)

	cfg.Mode = FrontRearSeam
	cfg.Annotate = true
	annotated, err := Render(context.Background(), rig, images, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, annotated.Bounds(), test.ShouldResemble, out.Bounds())
}

func TestRenderRejects(t *testing.T) {
	rig, err := calibration.NewRig(testutils.NominalCameras(t))
	test.That(t, err, test.ShouldBeNil)
	images := cameraImages()

	_, err = Render(context.Background(), rig, images, RenderConfig{Mode: "quad"})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Render(context.Background(), rig, images, RenderConfig{Interpolation: "area"})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Render(context.Background(), rig, images, RenderConfig{Size: -1})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Render(context.Background(), rig, images, RenderConfig{Overrides: map[string]Override{"roof": {}}})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Render(context.Background(), rig, images, RenderConfig{Overrides: map[string]Override{"left": {X: math.NaN()}}})
	test.That(t, err, test.ShouldNotBeNil)

	images[calibration.Rear] = nil
	_, err = Render(context.Background(), rig, images, RenderConfig{Size: 16})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rear")
}

func TestOverrides(t *testing.T) {
	rig, err := calibration.NewRig(testutils.NominalCameras(t))
	test.That(t, err, test.ShouldBeNil)

	z := 1.4
	moved, err := ApplyOverrides(rig, map[calibration.CameraID]Override{
		calibration.Left: {X: 2.2, Y: 1.1, Z: &z, RotZ1: 180, RotX: 180, RotZ2: -180},
		calibration.Rear: {X: -1.2, Y: 0.1, RotZ1: 180, RotX: 90, RotZ2: -90},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moved.Camera(calibration.Left).Pose().Translation.Z, test.ShouldEqual, 1.4)
	test.That(t, moved.Camera(calibration.Rear).Pose().Translation.Z, test.ShouldEqual, 0.9)
	test.That(t, moved.Camera(calibration.Rear).Pose().Translation.X, test.ShouldEqual, -1.2)
	test.That(t, moved.Camera(calibration.Front).Pose(), test.ShouldResemble, rig.Camera(calibration.Front).Pose())
	test.That(t, rig.Camera(calibration.Left).Pose().Translation.Z, test.ShouldEqual, 1.0)

	_, err = ApplyOverrides(rig, map[calibration.CameraID]Override{calibration.CameraID(7): {}})
	test.That(t, err, test.ShouldNotBeNil)

	all, err := ApplyOverrides(rig, AllOverrides(DefaultOverrides()))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, all.Heights(), test.ShouldResemble, rig.Heights())
}
