// Package bev synthesizes bird's-eye view images of the ground around the vehicle from the four
// fisheye cameras of a rig.
package bev

import (
	"context"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/surroundview/rimage/transform"
	"go.viam.com/surroundview/utils"
)

// Map is a lookup table from a size x size top-down canvas to source pixels of one camera.
// U and V are row-major; entry v*Size+u holds the source x and y for canvas column u and row v.
// Canvas pixels the camera cannot see hold NaN.
type Map struct {
	Size  int
	Range float64
	U     []float64
	V     []float64
}

// At returns the source pixel for canvas column u and row v.
func (m *Map) At(u, v int) r2.Point {
	i := v*m.Size + u
	return r2.Point{X: m.U[i], Y: m.V[i]}
}

// WorldPoint is the ground point shown at canvas column u and row v of a size x size canvas
// covering a rangeM x rangeM square centered on the world origin. Rows run along -x and columns
// along -y, so the vehicle's front is up and its left is to the left.
func WorldPoint(rangeM float64, size, u, v int) r3.Vector {
	return r3.Vector{
		X: rangeM/2 - float64(v)*rangeM/float64(size),
		Y: rangeM/2 - float64(u)*rangeM/float64(size),
	}
}

// CanvasPosition inverts WorldPoint, returning the fractional row and column of a ground point.
func CanvasPosition(rangeM float64, size int, worldX, worldY float64) (row, col float64) {
	scale := float64(size) / rangeM
	return (rangeM/2 - worldX) * scale, (rangeM/2 - worldY) * scale
}

func validateCanvas(rangeM float64, size int) error {
	if !(rangeM > 0) || math.IsInf(rangeM, 0) {
		return errors.Errorf("ground range must be positive, got %v", rangeM)
	}
	if size <= 0 {
		return errors.Errorf("canvas size must be positive, got %d", size)
	}
	return nil
}

// BuildMap projects the ground point under every canvas pixel into cam. Rows are computed
// concurrently into disjoint slots.
func BuildMap(ctx context.Context, cam *transform.FisheyeCamera, rangeM float64, size int) (*Map, error) {
	ctx, span := trace.StartSpan(ctx, "bev::BuildMap")
	defer span.End()

	if err := validateCanvas(rangeM, size); err != nil {
		return nil, err
	}
	intr := cam.Intrinsics()
	m := &Map{
		Size:  size,
		Range: rangeM,
		U:     make([]float64, size*size),
		V:     make([]float64, size*size),
	}
	err := utils.ParallelForEachRow(ctx, size, func(v int) {
		for u := 0; u < size; u++ {
			px := cam.PointToPixel(WorldPoint(rangeM, size, u, v))
			if !intr.InImage(px) {
				px = r2.Point{X: math.NaN(), Y: math.NaN()}
			}
			i := v*size + u
			m.U[i], m.V[i] = px.X, px.Y
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
