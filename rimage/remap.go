package rimage

import (
	"context"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/surroundview/utils"
)

// Interpolation selects how a fractional source pixel is sampled.
type Interpolation string

// Supported interpolations.
const (
	Nearest Interpolation = "nearest"
	Linear  Interpolation = "linear"
	Cubic   Interpolation = "cubic"
)

// ParseInterpolation parses an interpolation name. The empty string selects Cubic.
func ParseInterpolation(name string) (Interpolation, error) {
	switch Interpolation(strings.ToLower(name)) {
	case "", Cubic:
		return Cubic, nil
	case Linear, "bilinear":
		return Linear, nil
	case Nearest:
		return Nearest, nil
	default:
		return "", errors.Errorf("unknown interpolation %q, expected nearest, linear or cubic", name)
	}
}

// Remap builds a width x height image whose pixel (u, v) is sampled from src at
// (mapX[v*width+u], mapY[v*width+u]). Integer source coordinates are pixel centers. NaN lookups
// and lookups outside src give opaque black. Rows are filled concurrently.
func Remap(
	ctx context.Context,
	src *image.NRGBA,
	mapX, mapY []float64,
	width, height int,
	interp Interpolation,
) (*image.NRGBA, error) {
	ctx, span := trace.StartSpan(ctx, "rimage::Remap")
	defer span.End()

	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid remap size %dx%d", width, height)
	}
	if len(mapX) != width*height || len(mapY) != width*height {
		return nil, errors.Errorf("remap tables have %d and %d entries, expected %d", len(mapX), len(mapY), width*height)
	}
	sample, err := sampler(interp)
	if err != nil {
		return nil, err
	}
	src = ToNRGBA(src)
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	err = utils.ParallelForEachRow(ctx, height, func(v int) {
		for u := 0; u < width; u++ {
			i := v*width + u
			c := color.NRGBA{A: 255}
			if x, y := mapX[i], mapY[i]; inside(src, x, y) {
				c = sample(src, x, y)
			}
			dst.SetNRGBA(u, v, c)
		}
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

func sampler(interp Interpolation) (func(*image.NRGBA, float64, float64) color.NRGBA, error) {
	switch interp {
	case Nearest:
		return sampleNearest, nil
	case Linear:
		return sampleLinear, nil
	case Cubic, "":
		return sampleCubic, nil
	default:
		return nil, errors.Errorf("unknown interpolation %q", interp)
	}
}

func inside(img *image.NRGBA, x, y float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	b := img.Bounds()
	return x >= 0 && y >= 0 && x <= float64(b.Dx()-1) && y <= float64(b.Dy()-1)
}

// pixel returns the channels at (x, y), clamped to the image.
func pixel(img *image.NRGBA, x, y int) [4]float64 {
	b := img.Bounds()
	x = clampInt(x, 0, b.Dx()-1)
	y = clampInt(y, 0, b.Dy()-1)
	off := y*img.Stride + x*4
	p := img.Pix[off : off+4 : off+4]
	return [4]float64{float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toNRGBA(ch [4]float64) color.NRGBA {
	var out [4]uint8
	for i, v := range ch {
		out[i] = uint8(math.Round(utils.Clamp(v, 0, 255)))
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
}

func sampleNearest(img *image.NRGBA, x, y float64) color.NRGBA {
	return toNRGBA(pixel(img, int(math.Round(x)), int(math.Round(y))))
}

func sampleLinear(img *image.NRGBA, x, y float64) color.NRGBA {
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	var out [4]float64
	for dy := 0; dy < 2; dy++ {
		wy := 1 - fy
		if dy == 1 {
			wy = fy
		}
		for dx := 0; dx < 2; dx++ {
			wx := 1 - fx
			if dx == 1 {
				wx = fx
			}
			p := pixel(img, ix+dx, iy+dy)
			for c := range out {
				out[c] += wx * wy * p[c]
			}
		}
	}
	return toNRGBA(out)
}

// cubicWeights are the four tap weights of the a = -0.75 cubic convolution kernel at offset t.
func cubicWeights(t float64) [4]float64 {
	const a = -0.75
	w0 := ((a*(t+1)-5*a)*(t+1)+8*a)*(t+1) - 4*a
	w1 := ((a+2)*t-(a+3))*t*t + 1
	w2 := ((a+2)*(1-t)-(a+3))*(1-t)*(1-t) + 1
	return [4]float64{w0, w1, w2, 1 - w0 - w1 - w2}
}

func sampleCubic(img *image.NRGBA, x, y float64) color.NRGBA {
	x0, y0 := math.Floor(x), math.Floor(y)
	wx, wy := cubicWeights(x-x0), cubicWeights(y-y0)
	ix, iy := int(x0), int(y0)
	var out [4]float64
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			w := wx[i] * wy[j]
			if w == 0 {
				continue
			}
			p := pixel(img, ix+i-1, iy+j-1)
			for c := range out {
				out[c] += w * p[c]
			}
		}
	}
	return toNRGBA(out)
}
