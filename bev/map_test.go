package bev

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/surroundview/rimage/transform"
	"go.viam.com/surroundview/spatialmath"
	"go.viam.com/surroundview/testutils"
)

func TestWorldPoint(t *testing.T) {
	test.That(t, WorldPoint(25, 960, 480, 480), test.ShouldResemble, r3.Vector{})
	test.That(t, WorldPoint(25, 960, 0, 0), test.ShouldResemble, r3.Vector{X: 12.5, Y: 12.5})
	// rows run backwards along x, columns to the right along -y
	p := WorldPoint(25, 960, 480, 192)
	test.That(t, p.X, test.ShouldAlmostEqual, 7.5, 1e-12)
	test.That(t, p.Y, test.ShouldEqual, 0)
	p = WorldPoint(25, 960, 960, 480)
	test.That(t, p.Y, test.ShouldAlmostEqual, -12.5, 1e-12)

	row, col := CanvasPosition(25, 960, 3.7, -1)
	test.That(t, row, test.ShouldAlmostEqual, 337.92, 1e-9)
	test.That(t, col, test.ShouldAlmostEqual, 518.4, 1e-9)
	back := WorldPoint(25, 960, 518, 338)
	test.That(t, back.X, test.ShouldAlmostEqual, 3.7, 25.0/960)
}

func TestBuildMap(t *testing.T) {
	front := testutils.NominalCameras(t)[0]
	m, err := BuildMap(context.Background(), front, 25, 960)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.U, test.ShouldHaveLength, 960*960)
	test.That(t, m.Size, test.ShouldEqual, 960)

	want := front.PointToPixel(r3.Vector{X: 7.5})
	test.That(t, m.At(480, 192), test.ShouldResemble, want)
	// straight ahead on the ground lies on the image's vertical center line
	pp := front.Intrinsics()
	test.That(t, m.At(480, 192).X, test.ShouldAlmostEqual, pp.PrincipalPoint().X, 1e-9)

	// far behind the front camera is outside its image
	behind := m.At(480, 900)
	test.That(t, math.IsNaN(behind.X), test.ShouldBeTrue)
	test.That(t, math.IsNaN(behind.Y), test.ShouldBeTrue)
}

func TestBuildMapRejects(t *testing.T) {
	cam := testutils.NominalCameras(t)[0]
	_, err := BuildMap(context.Background(), cam, 0, 960)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = BuildMap(context.Background(), cam, 25, 0)
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = BuildMap(ctx, cam, 25, 64)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestMapCache(t *testing.T) {
	cam := testutils.NominalCameras(t)[1]
	cache := NewMapCache()

	m1, err := cache.Get(context.Background(), 1, cam, 25, 64)
	test.That(t, err, test.ShouldBeNil)
	m2, err := cache.Get(context.Background(), 1, cam.WithPose(cam.Pose()), 25, 64)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m2, test.ShouldEqual, m1)
	test.That(t, cache.Hits(), test.ShouldEqual, 1)

	moved := cam.WithPose(transform.NewCamPose(r3.Vector{X: 2, Y: 1.1, Z: 1}, &spatialmath.ExtrinsicZXZ{Z1: 180, X: 180, Z2: -180}))
	m3, err := cache.Get(context.Background(), 1, moved, 25, 64)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m3, test.ShouldNotEqual, m1)

	m4, err := cache.Get(context.Background(), 1, moved, 25, 32)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m4.Size, test.ShouldEqual, 32)
	test.That(t, cache.Hits(), test.ShouldEqual, 1)
}
