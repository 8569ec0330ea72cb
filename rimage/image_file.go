// Package rimage holds the image helpers used by the surround view pipeline: reading and writing
// image files, lookup-table remapping and annotation drawing.
package rimage

import (
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ReadImageFromFile reads an image from a file. Files ending in .ppm are decoded as PPM; other
// formats (png, jpeg, gif, bmp, tiff) are detected from the content.
func ReadImageFromFile(path string) (*image.NRGBA, error) {
	if isPPM(path) {
		//nolint:gosec
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		img, err := ppm.Decode(f)
		if err = multierr.Combine(err, f.Close()); err != nil {
			return nil, errors.Wrapf(err, "error decoding %q", path)
		}
		return ToNRGBA(img), nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading image %q", path)
	}
	return ToNRGBA(img), nil
}

// WriteImageToFile writes an image to a file, choosing the encoder from the file extension.
func WriteImageToFile(path string, img image.Image) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".ppm", ".bmp", ".tif", ".tiff":
	default:
		return imaging.Save(img, path)
	}

	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	switch ext {
	case ".ppm":
		return ppm.Encode(f, opaqueRGBA(img))
	case ".bmp":
		return bmp.Encode(f, img)
	default:
		return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	}
}

// ToNRGBA returns img as an *image.NRGBA with bounds starting at the origin. NRGBA images
// already at the origin are returned as is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}
	if _, ok := img.(*image.NRGBA); !ok {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// opaqueRGBA copies the colour channels of img into an opaque *image.RGBA, the only layout the
// PPM encoder accepts. PPM has no alpha channel.
func opaqueRGBA(img image.Image) *image.RGBA {
	src := ToNRGBA(img)
	out := image.NewRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		copy(out.Pix[i:i+3], src.Pix[i:i+3])
		out.Pix[i+3] = 255
	}
	return out
}

func isPPM(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".ppm")
}
