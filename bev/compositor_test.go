package bev

import (
	"context"
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"

	"go.viam.com/surroundview/calibration"
	"go.viam.com/surroundview/testutils"
)

func uniform(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pattern(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 25), G: uint8(y * 25), B: 255, A: 255})
		}
	}
	return img
}

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{AverageAll, FrontRearSeam, LeftRightSeam} {
		parsed, err := ParseMode(string(m))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, m)
	}
	_, err := ParseMode("lr")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "front-rear-seam")
}

func TestCompositeAverageIdentical(t *testing.T) {
	img := pattern(10, 10)
	out, err := Composite(context.Background(), [4]*image.NRGBA{img, img, img, img}, AverageAll, SeamLines{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Bounds(), test.ShouldResemble, img.Bounds())
	test.That(t, out.Pix, test.ShouldResemble, img.Pix)
}

func TestCompositeAverageStretches(t *testing.T) {
	dim := uniform(4, 4, color.NRGBA{R: 100, G: 50, A: 255})
	dark := uniform(4, 4, black)
	out, err := Composite(context.Background(), [4]*image.NRGBA{dim, dim, dark, dark}, AverageAll, SeamLines{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.NRGBAAt(2, 2), test.ShouldResemble, color.NRGBA{R: 255, G: 127, A: 255})

	out, err = Composite(context.Background(), [4]*image.NRGBA{dark, dark, dark, dark}, AverageAll, SeamLines{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Pix, test.ShouldResemble, dark.Pix)
}

func TestCompositeSeams(t *testing.T) {
	images := [4]*image.NRGBA{
		calibration.Front: uniform(10, 10, red),
		calibration.Left:  uniform(10, 10, green),
		calibration.Right: uniform(10, 10, blue),
		calibration.Rear:  uniform(10, 10, white),
	}
	seams := SeamLines{FrontRow: 3, RearRow: 6, LeftCol: 3, RightCol: 6}

	out, err := Composite(context.Background(), images, FrontRearSeam, seams)
	test.That(t, err, test.ShouldBeNil)
	for _, tc := range []struct {
		x, y int
		c    color.NRGBA
	}{
		{0, 0, red}, {9, 0, red}, {0, 5, green}, {9, 5, blue}, {5, 5, black},
		{0, 9, white}, {9, 9, white}, {5, 3, black}, {5, 6, black}, {3, 5, black},
	} {
		test.That(t, out.NRGBAAt(tc.x, tc.y), test.ShouldResemble, tc.c)
	}

	out, err = Composite(context.Background(), images, LeftRightSeam, seams)
	test.That(t, err, test.ShouldBeNil)
	for _, tc := range []struct {
		x, y int
		c    color.NRGBA
	}{
		{0, 0, green}, {9, 0, blue}, {5, 0, red}, {0, 9, green}, {9, 9, blue}, {5, 9, white}, {5, 5, black},
	} {
		test.That(t, out.NRGBAAt(tc.x, tc.y), test.ShouldResemble, tc.c)
	}

	// seams outside the canvas give empty bands
	out, err = Composite(context.Background(), images, FrontRearSeam, SeamLines{FrontRow: -5, RearRow: 20, LeftCol: -1, RightCol: 30})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Pix, test.ShouldResemble, uniform(10, 10, black).Pix)
}

func TestCompositeRejects(t *testing.T) {
	img := uniform(4, 4, red)
	_, err := Composite(context.Background(), [4]*image.NRGBA{img, img, img, uniform(4, 5, red)}, AverageAll, SeamLines{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rear")
	_, err = Composite(context.Background(), [4]*image.NRGBA{img, nil, img, img}, AverageAll, SeamLines{})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Composite(context.Background(), [4]*image.NRGBA{img, img, img, img}, "fr", SeamLines{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewSeamLines(t *testing.T) {
	rig, err := calibration.NewRig(testutils.NominalCameras(t))
	test.That(t, err, test.ShouldBeNil)
	seams := NewSeamLines(rig, 25, 960)
	test.That(t, seams, test.ShouldResemble, SeamLines{FrontRow: 338, RearRow: 518, LeftCol: 442, RightCol: 518})
}
