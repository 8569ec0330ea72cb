package rimage

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// Colors used for annotations.
var (
	Red    = color.NRGBA{R: 255, A: 255}
	Green  = color.NRGBA{G: 255, A: 255}
	Yellow = color.NRGBA{R: 255, G: 255, A: 255}
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return font
}

// DrawString writes a string to the given context at a particular point.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, float64(dc.Width()), 1, 0)
}

// DrawMarker draws a filled circle with a label next to it.
func DrawMarker(dc *gg.Context, center image.Point, radius float64, label string, c color.Color) {
	dc.SetColor(c)
	dc.DrawCircle(float64(center.X), float64(center.Y), radius)
	dc.Fill()
	if label != "" {
		DrawString(dc, label, image.Point{X: center.X + int(radius) + 2, Y: center.Y - int(radius)}, c, 2*radius+4)
	}
}

// DrawLine draws a straight segment between two points.
func DrawLine(dc *gg.Context, from, to image.Point, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawLine(float64(from.X), float64(from.Y), float64(to.X), float64(to.Y))
	dc.Stroke()
}

// DrawRectangleEmpty draws the outline of the given rectangle into the context.
func DrawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	DrawLine(dc, r.Min, image.Point{X: r.Max.X, Y: r.Min.Y}, c, width)
	DrawLine(dc, r.Min, image.Point{X: r.Min.X, Y: r.Max.Y}, c, width)
	DrawLine(dc, image.Point{X: r.Max.X, Y: r.Min.Y}, r.Max, c, width)
	DrawLine(dc, image.Point{X: r.Min.X, Y: r.Max.Y}, r.Max, c, width)
}

// Annotate returns a copy of img with draw applied on top.
func Annotate(img image.Image, draw func(dc *gg.Context)) *image.NRGBA {
	dc := gg.NewContextForImage(img)
	draw(dc)
	return ToNRGBA(dc.Image())
}
