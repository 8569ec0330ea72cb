package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/surroundview/spatialmath"
)

// FisheyeCamera is a fisheye camera with a radial polynomial lens placed in the world by an
// extrinsic pose. Values are cheap to copy; WithPose returns an independent camera.
type FisheyeCamera struct {
	intrinsics FisheyeIntrinsics
	lens       LensModel
	pose       CamPose
}

// NewFisheyeCamera validates the intrinsics and returns a camera at the given pose.
func NewFisheyeCamera(intrinsics FisheyeIntrinsics, pose CamPose) (*FisheyeCamera, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if pose.Rotation == nil {
		return nil, errors.New("camera pose has no rotation")
	}
	lens, err := intrinsics.LensModel()
	if err != nil {
		return nil, err
	}
	return &FisheyeCamera{intrinsics: intrinsics, lens: lens, pose: pose}, nil
}

// Intrinsics returns a copy of the camera intrinsics.
func (fc *FisheyeCamera) Intrinsics() FisheyeIntrinsics {
	return fc.intrinsics
}

// Pose returns the current extrinsic pose.
func (fc *FisheyeCamera) Pose() CamPose {
	return fc.pose
}

// UpdateExtrinsics replaces the pose in place. The rotation is not checked for orthonormality;
// callers are responsible for passing a proper rotation.
func (fc *FisheyeCamera) UpdateExtrinsics(translation r3.Vector, rotation *spatialmath.RotationMatrix) {
	fc.pose = CamPose{Rotation: rotation, Translation: translation}
}

// WithPose returns a copy of the camera at a different pose, leaving the receiver untouched.
func (fc *FisheyeCamera) WithPose(pose CamPose) *FisheyeCamera {
	return &FisheyeCamera{intrinsics: fc.intrinsics, lens: fc.lens, pose: pose}
}

// PointToPixel projects one world point to a (sub)pixel. A point at the camera centre has no
// defined image and yields NaN.
func (fc *FisheyeCamera) PointToPixel(p r3.Vector) r2.Point {
	c := fc.pose.WorldToCamera(p)
	chi := math.Hypot(c.X, c.Y)
	if chi == 0 {
		if c.Z == 0 {
			return r2.Point{X: math.NaN(), Y: math.NaN()}
		}
		return fc.intrinsics.PrincipalPoint()
	}
	theta := math.Pi/2 - math.Atan2(c.Z, chi)
	scale := fc.lens.Rho(theta) / chi
	return fc.intrinsics.LensToPixel(r2.Point{X: scale * c.X, Y: scale * c.Y})
}

// Project3DTo2D projects world points to pixels.
func (fc *FisheyeCamera) Project3DTo2D(points []r3.Vector) []r2.Point {
	pixels := make([]r2.Point, len(points))
	for i, p := range points {
		pixels[i] = fc.PointToPixel(p)
	}
	return pixels
}

// PixelToRay returns the unit direction, in world coordinates, of the ray seen at a pixel. The
// direction is NaN when the lens polynomial cannot be inverted for the pixel's radius.
func (fc *FisheyeCamera) PixelToRay(pixel r2.Point) r3.Vector {
	lens := fc.intrinsics.PixelToLens(pixel)
	rho := lens.Norm()
	theta := fc.lens.Theta(rho)
	if math.IsNaN(theta) {
		return r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	}
	sinTheta, cosTheta := math.Sincos(theta)
	dir := r3.Vector{Z: cosTheta}
	if rho != 0 {
		dir.X = sinTheta * lens.X / rho
		dir.Y = sinTheta * lens.Y / rho
	}
	return fc.pose.Rotation.Mul(dir)
}

// PixelToGround intersects the ray seen at a pixel with the ground plane z = 0. Cameras at or below
// the plane, and rays that are parallel to it, point away from it or cannot be computed, yield a NaN
// vector.
func (fc *FisheyeCamera) PixelToGround(pixel r2.Point) r3.Vector {
	nan := r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	dir := fc.PixelToRay(pixel)
	origin := fc.pose.Translation
	const parallelTolerance = 1e-12
	if !(origin.Z > 0) || math.IsNaN(dir.Z) || math.Abs(dir.Z) < parallelTolerance {
		return nan
	}
	s := -origin.Z / dir.Z
	if !(s > 0) || math.IsInf(s, 0) {
		return nan
	}
	return r3.Vector{X: origin.X + s*dir.X, Y: origin.Y + s*dir.Y, Z: 0}
}

// Project2DTo3DGround back-projects pixels onto the ground plane z = 0.
func (fc *FisheyeCamera) Project2DTo3DGround(pixels []r2.Point) []r3.Vector {
	points := make([]r3.Vector, len(pixels))
	for i, px := range pixels {
		points[i] = fc.PixelToGround(px)
	}
	return points
}
