package calibration

import (
	"context"
	"io"
	"math"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/surroundview/utils"
)

// PairReport summarizes the ground distances of one pair. Statistics are NaN for empty pairs.
type PairReport struct {
	Pair   string  `json:"pair"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`

	Distances []float64 `json:"-"`
}

// Report is the evaluation of a rig against a correspondence set.
type Report struct {
	MeanDistanceError float64       `json:"mean_distance_error"`
	Count             int           `json:"count"`
	Pairs             [4]PairReport `json:"pairs"`
}

// Evaluate scores the rig's current poses with the permissive cost and summarizes every pair.
func Evaluate(ctx context.Context, rig *Rig, corr *Correspondences) (*Report, error) {
	cost, err := RigMeanDistanceError(rig, corr, Permissive)
	if err != nil {
		return nil, err
	}
	distances, err := PairErrors(ctx, rig, corr)
	if err != nil {
		return nil, err
	}
	report := &Report{MeanDistanceError: cost, Count: corr.Count()}
	for i, d := range distances {
		report.Pairs[i] = summarizePair(corr.Sets[i].Pair.Name(), d)
	}
	return report, nil
}

func summarizePair(name string, d []float64) PairReport {
	pr := PairReport{
		Pair: name, Count: len(d), Mean: math.NaN(), Median: math.NaN(), P90: math.NaN(), Max: math.NaN(),
		Distances: d,
	}
	if len(d) == 0 {
		return pr
	}
	data := stats.Float64Data(d)
	// stats only errors on empty input, handled above.
	pr.Mean, _ = stats.Mean(data)
	pr.Median, _ = stats.Median(data)
	pr.P90, _ = stats.Percentile(data, 90)
	pr.Max, _ = stats.Max(data)
	return pr
}

// FprintHistogram writes a text histogram of the pair's finite distances using bins buckets and
// bars at most width characters wide.
func (pr PairReport) FprintHistogram(w io.Writer, bins, width int) error {
	if bins <= 0 || width <= 0 {
		return errors.Errorf("invalid histogram shape %d bins by %d", bins, width)
	}
	finite := lo.Filter(pr.Distances, func(d float64, _ int) bool {
		return utils.IsFinite(d)
	})
	if len(finite) == 0 {
		_, err := io.WriteString(w, "no finite distances\n")
		return err
	}
	return histogram.Fprint(w, histogram.Hist(bins, finite), histogram.Linear(width))
}
