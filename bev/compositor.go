package bev

import (
	"context"
	"image"
	"math"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/surroundview/calibration"
)

// Mode selects how the four single-camera images are merged.
type Mode string

// Compositing modes.
const (
	// AverageAll averages all four images and stretches the result to full intensity.
	AverageAll Mode = "average-all"
	// FrontRearSeam gives each camera its band of the canvas; front and rear win where bands overlap.
	FrontRearSeam Mode = "front-rear-seam"
	// LeftRightSeam gives each camera its band of the canvas; left and right win where bands overlap.
	LeftRightSeam Mode = "left-right-seam"
)

// ParseMode parses a compositing mode name.
func ParseMode(name string) (Mode, error) {
	switch m := Mode(name); m {
	case AverageAll, FrontRearSeam, LeftRightSeam:
		return m, nil
	case "":
		return AverageAll, nil
	default:
		return "", errors.Errorf("unknown compositing mode %q, expected %s, %s or %s",
			name, AverageAll, FrontRearSeam, LeftRightSeam)
	}
}

// SeamLines are the canvas positions of the cameras used as band boundaries: the front band is
// the rows above FrontRow, the rear band the rows below RearRow, the left band the columns left of
// LeftCol and the right band the columns right of RightCol.
type SeamLines struct {
	FrontRow int
	RearRow  int
	LeftCol  int
	RightCol int
}

// NewSeamLines places the seams at the rig's camera positions on a canvas.
func NewSeamLines(rig *calibration.Rig, rangeM float64, size int) SeamLines {
	pos := func(id calibration.CameraID) (int, int) {
		t := rig.Camera(id).Pose().Translation
		row, col := CanvasPosition(rangeM, size, t.X, t.Y)
		return int(math.Round(row)), int(math.Round(col))
	}
	var sl SeamLines
	sl.FrontRow, _ = pos(calibration.Front)
	sl.RearRow, _ = pos(calibration.Rear)
	_, sl.LeftCol = pos(calibration.Left)
	_, sl.RightCol = pos(calibration.Right)
	return sl
}

// band is the canvas region owned by a camera in seam modes.
func (sl SeamLines) band(id calibration.CameraID, bounds image.Rectangle) image.Rectangle {
	switch id {
	case calibration.Front:
		return image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, sl.FrontRow).Intersect(bounds)
	case calibration.Rear:
		return image.Rect(bounds.Min.X, sl.RearRow+1, bounds.Max.X, bounds.Max.Y).Intersect(bounds)
	case calibration.Left:
		return image.Rect(bounds.Min.X, bounds.Min.Y, sl.LeftCol, bounds.Max.Y).Intersect(bounds)
	default:
		return image.Rect(sl.RightCol+1, bounds.Min.Y, bounds.Max.X, bounds.Max.Y).Intersect(bounds)
	}
}

func (m Mode) paintOrder() [4]calibration.CameraID {
	if m == LeftRightSeam {
		return [4]calibration.CameraID{calibration.Front, calibration.Rear, calibration.Left, calibration.Right}
	}
	return [4]calibration.CameraID{calibration.Left, calibration.Right, calibration.Front, calibration.Rear}
}

// Composite merges four same-sized images, indexed by camera, into one canvas of the same size.
// seams is only used by the seam modes.
func Composite(ctx context.Context, images [4]*image.NRGBA, mode Mode, seams SeamLines) (*image.NRGBA, error) {
	_, span := trace.StartSpan(ctx, "bev::Composite")
	defer span.End()

	for i, img := range images {
		if img == nil {
			return nil, errors.Errorf("missing %s image", calibration.CameraID(i))
		}
		if img.Bounds() != images[0].Bounds() {
			return nil, errors.Errorf("%s image is %v, expected %v",
				calibration.CameraID(i), img.Bounds().Size(), images[0].Bounds().Size())
		}
	}
	switch mode {
	case AverageAll:
		return average(images), nil
	case FrontRearSeam, LeftRightSeam:
		return paintBands(images, mode, seams), nil
	default:
		return nil, errors.Errorf("unknown compositing mode %q", mode)
	}
}

// average takes the per-channel mean and scales it so the brightest channel value is 255. Alpha
// is opaque.
func average(images [4]*image.NRGBA) *image.NRGBA {
	bounds := images[0].Bounds()
	out := image.NewNRGBA(bounds)
	sums := make([]float64, len(out.Pix))
	maxSum := 0.0
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			o := y*out.Stride + x*4
			for c := 0; c < 3; c++ {
				var s float64
				for _, img := range images {
					s += float64(img.Pix[y*img.Stride+x*4+c])
				}
				sums[o+c] = s
				maxSum = math.Max(maxSum, s)
			}
			out.Pix[o+3] = 255
		}
	}
	if maxSum == 0 {
		return out
	}
	// mean/max*255 equals sum*255/maxSum, which is exact when every input is the same image
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			o := y*out.Stride + x*4
			for c := 0; c < 3; c++ {
				out.Pix[o+c] = uint8(sums[o+c] * 255 / maxSum)
			}
		}
	}
	return out
}

func paintBands(images [4]*image.NRGBA, mode Mode, seams SeamLines) *image.NRGBA {
	bounds := images[0].Bounds()
	out := image.NewNRGBA(bounds)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	for _, id := range mode.paintOrder() {
		src := images[id]
		band := seams.band(id, bounds)
		for y := band.Min.Y; y < band.Max.Y; y++ {
			so := src.PixOffset(band.Min.X, y)
			do := out.PixOffset(band.Min.X, y)
			n := band.Dx() * 4
			copy(out.Pix[do:do+n], src.Pix[so:so+n])
		}
	}
	return out
}
