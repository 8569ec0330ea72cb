package calibration

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveConvergencePlot writes the cost history of a run to path. The image format follows the
// file extension (png, svg, pdf, ...). Non-positive costs are drawn at the smallest positive
// value so the logarithmic axis stays valid.
func SaveConvergencePlot(res *Result, path string) error {
	if len(res.History) == 0 {
		return errors.New("optimization result has no cost history")
	}
	floor := math.Inf(1)
	for _, c := range res.History {
		if c > 0 && c < floor {
			floor = c
		}
	}
	if math.IsInf(floor, 1) {
		floor = 1e-12
	}
	pts := make(plotter.XYs, len(res.History))
	for i, c := range res.History {
		pts[i].X = float64(i)
		pts[i].Y = math.Max(c, floor)
	}

	p := plot.New()
	p.Title.Text = "mean distance error, run " + res.ID.String()
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "cost"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
