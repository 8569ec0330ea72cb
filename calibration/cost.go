package calibration

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// CostMode selects how empty pairs are treated by the cost function.
type CostMode int

const (
	// Strict requires every pair to hold at least one correspondence. Used for optimization.
	Strict CostMode = iota
	// Permissive skips empty pairs. Used for evaluating a finished calibration.
	Permissive
)

func (m CostMode) String() string {
	if m == Permissive {
		return "permissive"
	}
	return "strict"
}

// MeanDistanceError decodes pv into poses at the given heights, back-projects every matched pixel
// of every pair onto the ground with both cameras of the pair, and returns the summed distance
// between the two ground points of each match divided by the total number of matches.
//
// rig is never modified. A degenerate back-projection makes the result NaN.
func MeanDistanceError(
	rig *Rig,
	pv ParameterVector,
	heights [4]float64,
	corr *Correspondences,
	mode CostMode,
) (float64, error) {
	if err := corr.Validate(mode); err != nil {
		return 0, err
	}
	poses, err := DecodeParameters(pv, heights)
	if err != nil {
		return 0, err
	}
	sums, err := pairDistanceSums(rig.WithPoses(poses), corr)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, s := range sums {
		total += s
	}
	return total / float64(corr.Count()), nil
}

// RigMeanDistanceError evaluates the rig's current poses.
func RigMeanDistanceError(rig *Rig, corr *Correspondences, mode CostMode) (float64, error) {
	return MeanDistanceError(rig, EncodeParameters(rig), rig.Heights(), corr, mode)
}

// pairDistanceSums projects the four pairs concurrently. Each pair writes its own slot so the
// caller can reduce in a fixed order.
func pairDistanceSums(rig *Rig, corr *Correspondences) ([4]float64, error) {
	var sums [4]float64
	var g errgroup.Group
	for i := range corr.Sets {
		i := i
		g.Go(func() error {
			for _, d := range pairDistances(rig, corr.Sets[i]) {
				sums[i] += d
			}
			return nil
		})
	}
	return sums, g.Wait()
}

func pairDistances(rig *Rig, set PairSet) []float64 {
	if set.Len() <= 0 {
		return nil
	}
	first := rig.cameras[set.Pair.First].Project2DTo3DGround(set.First)
	second := rig.cameras[set.Pair.Second].Project2DTo3DGround(set.Second)
	out := make([]float64, len(first))
	for j := range first {
		out[j] = first[j].Sub(second[j]).Norm()
	}
	return out
}

// PairErrors returns the per-match ground distance of every pair at the rig's current poses.
// Empty pairs give an empty slice. Projection runs under ctx so callers can cancel large sets.
func PairErrors(ctx context.Context, rig *Rig, corr *Correspondences) ([4][]float64, error) {
	var out [4][]float64
	if err := corr.Validate(Permissive); err != nil {
		return out, err
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := range corr.Sets {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = pairDistances(rig, corr.Sets[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, errors.Wrap(err, "error computing pair errors")
	}
	return out, nil
}
