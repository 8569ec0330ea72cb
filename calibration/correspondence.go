package calibration

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// ErrCorrespondenceMismatch is returned when a pair is empty or its two point lists differ in length.
var ErrCorrespondenceMismatch = errors.New("correspondence mismatch")

// Pair is an ordered pair of adjacent cameras sharing a ground overlap.
type Pair struct {
	First  CameraID
	Second CameraID
}

// Name is the pair's key in correspondence files, such as "front-left".
func (p Pair) Name() string {
	return p.First.String() + "-" + p.Second.String()
}

// Pairs lists the four adjacent pairs in evaluation order.
var Pairs = [4]Pair{
	{Front, Left},
	{Front, Right},
	{Rear, Left},
	{Rear, Right},
}

// PairSet holds matched pixels for one pair: First[i] in the first camera and Second[i] in the
// second camera show the same ground point.
type PairSet struct {
	Pair   Pair
	First  []r2.Point
	Second []r2.Point
}

// Len is the number of matched points, or -1 if the two lists differ in length.
func (ps PairSet) Len() int {
	if len(ps.First) != len(ps.Second) {
		return -1
	}
	return len(ps.First)
}

// Correspondences holds the matched pixels of all four pairs, in Pairs order.
type Correspondences struct {
	Sets [4]PairSet
}

// NewCorrespondences returns an empty set with the four pairs labeled.
func NewCorrespondences() *Correspondences {
	corr := &Correspondences{}
	for i, p := range Pairs {
		corr.Sets[i].Pair = p
	}
	return corr
}

// Count is the total number of matched points over all pairs, ignoring mismatched pairs.
func (c *Correspondences) Count() int {
	total := 0
	for _, set := range c.Sets {
		if n := set.Len(); n > 0 {
			total += n
		}
	}
	return total
}

// Validate checks the pairs for use with the given cost mode. Strict mode requires every pair to
// be non-empty; both modes require equal lengths and finite coordinates.
func (c *Correspondences) Validate(mode CostMode) error {
	var errs error
	for _, set := range c.Sets {
		n := set.Len()
		switch {
		case n < 0:
			errs = multierr.Append(errs, errors.Wrapf(ErrCorrespondenceMismatch,
				"%s has %d and %d points", set.Pair.Name(), len(set.First), len(set.Second)))
			continue
		case n == 0 && mode == Strict:
			errs = multierr.Append(errs, errors.Wrapf(ErrCorrespondenceMismatch, "%s has no points", set.Pair.Name()))
			continue
		}
		for i := range set.First {
			if !finitePoint(set.First[i]) || !finitePoint(set.Second[i]) {
				errs = multierr.Append(errs, errors.Errorf("%s point %d is not finite", set.Pair.Name(), i))
				break
			}
		}
	}
	if errs == nil && c.Count() == 0 {
		return errors.Wrap(ErrCorrespondenceMismatch, "no correspondences")
	}
	return errs
}

func finitePoint(p r2.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// correspondenceJSON is the file layout: {"front-left": {"front": [[x, y]...], "left": [[x, y]...]}}.
type correspondenceJSON map[string]map[string][][2]float64

// ReadCorrespondences parses a correspondence file. Unknown pair or camera keys are errors; pairs
// absent from the file are left empty.
func ReadCorrespondences(r io.Reader) (*Correspondences, error) {
	var raw correspondenceJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "error parsing correspondences")
	}
	corr := NewCorrespondences()
	index := map[string]int{}
	for i, p := range Pairs {
		index[p.Name()] = i
	}
	keys := lo.Keys(raw)
	sort.Strings(keys)
	for _, key := range keys {
		i, ok := index[key]
		if !ok {
			return nil, errors.Errorf("unknown camera pair %q", key)
		}
		cams := raw[key]
		pair := Pairs[i]
		for name := range cams {
			if name != pair.First.String() && name != pair.Second.String() {
				return nil, errors.Errorf("pair %q has unexpected camera %q", key, name)
			}
		}
		corr.Sets[i].First = toPoints(cams[pair.First.String()])
		corr.Sets[i].Second = toPoints(cams[pair.Second.String()])
	}
	return corr, nil
}

// ReadCorrespondencesFromJSONFile reads a correspondence file from disk.
func ReadCorrespondencesFromJSONFile(path string) (*Correspondences, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening correspondences %q", path)
	}
	corr, err := ReadCorrespondences(f)
	return corr, multierr.Combine(err, f.Close())
}

// WriteCorrespondences writes c in the file layout read by ReadCorrespondences.
func WriteCorrespondences(w io.Writer, c *Correspondences) error {
	raw := correspondenceJSON{}
	for _, set := range c.Sets {
		raw[set.Pair.Name()] = map[string][][2]float64{
			set.Pair.First.String():  fromPoints(set.First),
			set.Pair.Second.String(): fromPoints(set.Second),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(raw)
}

func toPoints(raw [][2]float64) []r2.Point {
	if len(raw) == 0 {
		return nil
	}
	return lo.Map(raw, func(p [2]float64, _ int) r2.Point {
		return r2.Point{X: p[0], Y: p[1]}
	})
}

func fromPoints(points []r2.Point) [][2]float64 {
	return lo.Map(points, func(p r2.Point, _ int) [2]float64 {
		return [2]float64{p.X, p.Y}
	})
}

// SyntheticCorrespondences projects known ground points into both cameras of each pair. ground is
// indexed like Pairs. Points that either camera cannot see are skipped.
func SyntheticCorrespondences(rig *Rig, ground [4][]r3.Vector) (*Correspondences, error) {
	corr := NewCorrespondences()
	for i, p := range Pairs {
		first, second := rig.cameras[p.First], rig.cameras[p.Second]
		firstIntr, secondIntr := first.Intrinsics(), second.Intrinsics()
		for _, g := range ground[i] {
			a := first.PointToPixel(g)
			b := second.PointToPixel(g)
			if !firstIntr.InImage(a) || !secondIntr.InImage(b) {
				continue
			}
			corr.Sets[i].First = append(corr.Sets[i].First, a)
			corr.Sets[i].Second = append(corr.Sets[i].Second, b)
		}
		if len(corr.Sets[i].First) == 0 {
			return nil, errors.Wrapf(ErrCorrespondenceMismatch, "no ground point of %s is visible to both cameras", p.Name())
		}
	}
	return corr, nil
}
