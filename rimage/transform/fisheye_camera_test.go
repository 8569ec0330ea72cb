package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/surroundview/spatialmath"
)

func testIntrinsics() FisheyeIntrinsics {
	return FisheyeIntrinsics{
		K1: 339.749, K2: -31.988, K3: 48.275, K4: -7.201,
		Width: 1280, Height: 966,
		CxOffset: 3.942, CyOffset: -3.093,
		AspectRatio: 1.0,
	}
}

func frontCamera(t *testing.T) *FisheyeCamera {
	t.Helper()
	pose := NewCamPose(r3.Vector{X: 3.7, Y: 0, Z: 0.6}, &spatialmath.ExtrinsicZXZ{Z1: 180, X: 90, Z2: 90})
	cam, err := NewFisheyeCamera(testIntrinsics(), pose)
	test.That(t, err, test.ShouldBeNil)
	return cam
}

func TestOpticalAxisHitsPrincipalPoint(t *testing.T) {
	intr := testIntrinsics()
	cam, err := NewFisheyeCamera(intr, CamPose{Rotation: spatialmath.IdentityRotation()})
	test.That(t, err, test.ShouldBeNil)

	pp := intr.PrincipalPoint()
	test.That(t, pp.X, test.ShouldAlmostEqual, 640+3.942-0.5)
	test.That(t, pp.Y, test.ShouldAlmostEqual, 483-3.093-0.5)

	px := cam.PointToPixel(r3.Vector{Z: 5})
	test.That(t, px.X, test.ShouldAlmostEqual, pp.X)
	test.That(t, px.Y, test.ShouldAlmostEqual, pp.Y)

	// The front camera looks along +x, so a point straight ahead lands on the principal point too.
	front := frontCamera(t)
	px = front.PointToPixel(r3.Vector{X: 13.7, Y: 0, Z: 0.6})
	test.That(t, px.X, test.ShouldAlmostEqual, pp.X, 1e-9)
	test.That(t, px.Y, test.ShouldAlmostEqual, pp.Y, 1e-9)
}

func TestAspectRatioScalesRows(t *testing.T) {
	intr := testIntrinsics()
	intr.AspectRatio = 1.25
	cam, err := NewFisheyeCamera(intr, CamPose{Rotation: spatialmath.IdentityRotation()})
	test.That(t, err, test.ShouldBeNil)

	px := cam.PointToPixel(r3.Vector{X: 1, Y: 1, Z: 3})
	pp := intr.PrincipalPoint()
	test.That(t, px.Y-pp.Y, test.ShouldAlmostEqual, 1.25*(px.X-pp.X), 1e-9)

	lens := intr.PixelToLens(px)
	test.That(t, lens.X, test.ShouldAlmostEqual, lens.Y, 1e-9)
}

func TestGroundRoundTrip(t *testing.T) {
	cams := map[string]*FisheyeCamera{"front": frontCamera(t)}
	left, err := NewFisheyeCamera(testIntrinsics(),
		NewCamPose(r3.Vector{X: 2, Y: 1, Z: 1}, &spatialmath.ExtrinsicZXZ{Z1: 180, X: 180, Z2: -180}))
	test.That(t, err, test.ShouldBeNil)
	cams["left"] = left

	ground := []r3.Vector{{X: 6, Y: 1}, {X: 4.5, Y: 2}, {X: 5, Y: -2.5}, {X: 3, Y: 3}, {X: 2.5, Y: 1.2}}
	for name, cam := range cams {
		t.Run(name, func(t *testing.T) {
			pixels := cam.Project3DTo2D(ground)
			back := cam.Project2DTo3DGround(pixels)
			test.That(t, back, test.ShouldHaveLength, len(ground))
			for i, p := range back {
				test.That(t, p.X, test.ShouldAlmostEqual, ground[i].X, 1e-6)
				test.That(t, p.Y, test.ShouldAlmostEqual, ground[i].Y, 1e-6)
				test.That(t, p.Z, test.ShouldEqual, 0)
			}
		})
	}
}

func TestDegenerateProjections(t *testing.T) {
	cam := frontCamera(t)

	// A point above the camera images above the horizon; its ray never reaches the ground.
	sky := cam.PointToPixel(r3.Vector{X: 10, Y: 0, Z: 3})
	test.That(t, math.IsNaN(sky.X), test.ShouldBeFalse)
	p := cam.PixelToGround(sky)
	test.That(t, math.IsNaN(p.X), test.ShouldBeTrue)
	test.That(t, math.IsNaN(p.Y), test.ShouldBeTrue)
	test.That(t, math.IsNaN(p.Z), test.ShouldBeTrue)

	// The principal point of a horizontal camera is a ray parallel to the ground.
	p = cam.PixelToGround(cam.Intrinsics().PrincipalPoint())
	test.That(t, math.IsNaN(p.X), test.ShouldBeTrue)

	// The camera centre itself has no image.
	px := cam.PointToPixel(cam.Pose().Translation)
	test.That(t, math.IsNaN(px.X), test.ShouldBeTrue)

	// A radius the lens can never produce.
	p = cam.PixelToGround(r2.Point{X: 1e7, Y: 1e7})
	test.That(t, math.IsNaN(p.X), test.ShouldBeTrue)
}

func TestCameraBelowGroundHasNoGroundPoints(t *testing.T) {
	intr := testIntrinsics()
	// Looking straight up from under the plane, every off-axis ray would cross z = 0.
	under, err := NewFisheyeCamera(intr, CamPose{Rotation: spatialmath.IdentityRotation(), Translation: r3.Vector{Z: -1}})
	test.That(t, err, test.ShouldBeNil)
	pp := intr.PrincipalPoint()
	for _, px := range []r2.Point{{X: pp.X + 50, Y: pp.Y}, {X: pp.X, Y: pp.Y - 120}} {
		p := under.PixelToGround(px)
		test.That(t, math.IsNaN(p.X), test.ShouldBeTrue)
		test.That(t, math.IsNaN(p.Y), test.ShouldBeTrue)
		test.That(t, math.IsNaN(p.Z), test.ShouldBeTrue)
	}

	// On the plane is degenerate too.
	on := under.WithPose(CamPose{Rotation: spatialmath.IdentityRotation()})
	p := on.PixelToGround(r2.Point{X: pp.X + 50, Y: pp.Y})
	test.That(t, math.IsNaN(p.X), test.ShouldBeTrue)

	// The same ray from above, looking down, does reach the ground.
	down := &spatialmath.ExtrinsicZXZ{X: 180}
	above := under.WithPose(NewCamPose(r3.Vector{Z: 1}, down))
	p = above.PixelToGround(r2.Point{X: pp.X + 50, Y: pp.Y})
	test.That(t, math.IsNaN(p.X), test.ShouldBeFalse)
	test.That(t, p.Z, test.ShouldEqual, 0)
}

func TestUpdateExtrinsicsAndWithPose(t *testing.T) {
	cam := frontCamera(t)
	original := cam.Pose()

	moved := cam.WithPose(CamPose{Rotation: original.Rotation, Translation: r3.Vector{X: 1, Y: 2, Z: 3}})
	test.That(t, cam.Pose().Translation, test.ShouldResemble, original.Translation)
	test.That(t, moved.Pose().Translation, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, moved.Intrinsics(), test.ShouldResemble, cam.Intrinsics())

	rot := spatialmath.IdentityRotation()
	cam.UpdateExtrinsics(r3.Vector{Z: 2}, rot)
	test.That(t, cam.Pose().Translation, test.ShouldResemble, r3.Vector{Z: 2})
	test.That(t, cam.Pose().Rotation, test.ShouldEqual, rot)
}

func TestNewFisheyeCameraValidation(t *testing.T) {
	intr := testIntrinsics()
	intr.Width = 0
	_, err := NewFisheyeCamera(intr, CamPose{Rotation: spatialmath.IdentityRotation()})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Invalid size")

	intr = testIntrinsics()
	intr.AspectRatio = 0
	_, err = NewFisheyeCamera(intr, CamPose{Rotation: spatialmath.IdentityRotation()})
	test.That(t, err, test.ShouldNotBeNil)

	intr = testIntrinsics()
	intr.K1, intr.K2, intr.K3, intr.K4 = 0, 0, 0, 0
	_, err = NewFisheyeCamera(intr, CamPose{Rotation: spatialmath.IdentityRotation()})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "zero")

	_, err = NewFisheyeCamera(testIntrinsics(), CamPose{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCamPoseWorldToCamera(t *testing.T) {
	pose := NewCamPose(r3.Vector{X: 1, Y: -2, Z: 0.5}, &spatialmath.ExtrinsicZXZ{Z1: 10, X: 80, Z2: 45})
	p := r3.Vector{X: 3, Y: 1, Z: -1}
	c := pose.WorldToCamera(p)
	// Rotating back and adding the centre recovers the world point.
	back := pose.Rotation.Mul(c).Add(pose.Translation)
	test.That(t, back.Sub(p).Norm(), test.ShouldBeLessThan, 1e-12)
	test.That(t, pose.WorldToCamera(pose.Translation).Norm(), test.ShouldBeLessThan, 1e-15)
}
