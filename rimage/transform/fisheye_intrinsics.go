package transform

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// FisheyeIntrinsics holds the lens polynomial and sensor geometry of a fisheye camera.
// The field names follow the "intrinsic" object of a calibration file.
type FisheyeIntrinsics struct {
	K1          float64 `json:"k1"`
	K2          float64 `json:"k2"`
	K3          float64 `json:"k3"`
	K4          float64 `json:"k4"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	CxOffset    float64 `json:"cx_offset"`
	CyOffset    float64 `json:"cy_offset"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// CheckValid checks if the fields for FisheyeIntrinsics have valid inputs.
func (params *FisheyeIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.AspectRatio <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid aspect ratio = %#v", params.AspectRatio))
	}
	return params.Lens().CheckValid()
}

// Lens returns the radial polynomial of the intrinsics.
func (params FisheyeIntrinsics) Lens() *RadialPolynomial {
	return &RadialPolynomial{params.K1, params.K2, params.K3, params.K4}
}

// LensModel returns the lens as a LensModel.
func (params FisheyeIntrinsics) LensModel() (LensModel, error) {
	return NewLensModel(RadialPolynomialDistortionType, params.Lens().Parameters())
}

// PrincipalPoint returns the image position of the optical axis: the image centre shifted by the
// offsets, in pixel-centre coordinates.
func (params FisheyeIntrinsics) PrincipalPoint() r2.Point {
	return r2.Point{
		X: 0.5*float64(params.Width) + params.CxOffset - 0.5,
		Y: 0.5*float64(params.Height) + params.CyOffset - 0.5,
	}
}

// LensToPixel converts a lens-plane point to a pixel.
func (params FisheyeIntrinsics) LensToPixel(lens r2.Point) r2.Point {
	pp := params.PrincipalPoint()
	return r2.Point{X: lens.X + pp.X, Y: lens.Y*params.AspectRatio + pp.Y}
}

// PixelToLens converts a pixel to a lens-plane point.
func (params FisheyeIntrinsics) PixelToLens(pixel r2.Point) r2.Point {
	pp := params.PrincipalPoint()
	return r2.Point{X: pixel.X - pp.X, Y: (pixel.Y - pp.Y) / params.AspectRatio}
}

// InImage returns true if the pixel lies within [0, width-1] x [0, height-1].
func (params FisheyeIntrinsics) InImage(pixel r2.Point) bool {
	return pixel.X >= 0 && pixel.Y >= 0 && pixel.X <= float64(params.Width-1) && pixel.Y <= float64(params.Height-1)
}
