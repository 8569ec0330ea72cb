package calibration

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/optimize"

	"go.viam.com/surroundview/logging"
	"go.viam.com/surroundview/spatialmath"
	"go.viam.com/surroundview/utils"
)

// Method names a minimizer.
type Method string

// Supported minimizers.
const (
	MethodBFGS       Method = "bfgs"
	MethodLBFGS      Method = "lbfgs"
	MethodNelderMead Method = "nelder-mead"
)

// Parametrization selects how rotations are exposed to the minimizer.
type Parametrization string

const (
	// QuaternionParametrization optimizes the four quaternion components of each camera as free
	// reals. They are normalized whenever they are turned into a rotation.
	QuaternionParametrization Parametrization = "quaternion"
	// RotationVectorParametrization optimizes a three-component rotation vector per camera,
	// applied on top of the camera's starting rotation.
	RotationVectorParametrization Parametrization = "rotation-vector"
)

// Default optimizer settings.
const (
	DefaultMaxIterations     = 1000
	DefaultGradientStep      = 1e-6
	DefaultFunctionTolerance = 1e-10
	defaultConvergeWindow    = 20
)

// Settings configures an Optimizer. Zero values select defaults.
type Settings struct {
	Method             Method          `json:"method,omitempty"`
	Parametrization    Parametrization `json:"parametrization,omitempty"`
	Anchor             string          `json:"anchor,omitempty"`
	MaxIterations      int             `json:"max_iterations,omitempty"`
	MaxEvaluations     int             `json:"max_evaluations,omitempty"`
	GradientStep       float64         `json:"gradient_step,omitempty"`
	FunctionTolerance  float64         `json:"function_tolerance,omitempty"`
	ConcurrentGradient bool            `json:"concurrent_gradient,omitempty"`
}

// Validate checks the settings, reporting errors against path.
func (s *Settings) Validate(path string) error {
	switch s.Method {
	case "", MethodBFGS, MethodLBFGS, MethodNelderMead:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown method %q", s.Method))
	}
	switch s.Parametrization {
	case "", QuaternionParametrization, RotationVectorParametrization:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown parametrization %q", s.Parametrization))
	}
	if s.Anchor != "" {
		if _, err := CameraIDFromString(s.Anchor); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if s.MaxIterations < 0 || s.MaxEvaluations < 0 {
		return utils.NewConfigValidationError(path, errors.New("iteration and evaluation limits cannot be negative"))
	}
	if s.GradientStep < 0 || s.FunctionTolerance < 0 {
		return utils.NewConfigValidationError(path, errors.New("gradient step and function tolerance cannot be negative"))
	}
	return nil
}

func (s Settings) withDefaults() Settings {
	if s.Method == "" {
		s.Method = MethodBFGS
	}
	if s.Parametrization == "" {
		s.Parametrization = QuaternionParametrization
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	if s.GradientStep == 0 {
		s.GradientStep = DefaultGradientStep
	}
	if s.FunctionTolerance == 0 {
		s.FunctionTolerance = DefaultFunctionTolerance
	}
	return s
}

// Status summarizes how an optimization ended.
type Status string

const (
	// StatusConverged means the minimizer met its tolerance.
	StatusConverged Status = "converged"
	// StatusIterationLimited means an iteration, evaluation or runtime budget ran out first.
	StatusIterationLimited Status = "iteration-limited"
	// StatusFailed means the minimizer could not make further progress, typically a failed line
	// search on the non-smooth cost. The best parameters found are still returned.
	StatusFailed Status = "failed"
)

// Result is the outcome of one optimization run.
type Result struct {
	ID                uuid.UUID       `json:"id"`
	Started           time.Time       `json:"started"`
	Finished          time.Time       `json:"finished"`
	Settings          Settings        `json:"settings"`
	InitialParameters ParameterVector `json:"initial_parameters"`
	Parameters        ParameterVector `json:"parameters"`
	Heights           [4]float64      `json:"heights"`
	InitialCost       float64         `json:"initial_cost"`
	Cost              float64         `json:"cost"`
	Status            Status          `json:"status"`
	OptimizerStatus   string          `json:"optimizer_status"`
	OptimizerError    string          `json:"optimizer_error,omitempty"`
	Iterations        int             `json:"iterations"`
	Evaluations       int             `json:"evaluations"`
	Runtime           time.Duration   `json:"runtime"`
	History           []float64       `json:"history"`
}

// ApplyResult returns a new rig at the optimized poses.
func ApplyResult(rig *Rig, res *Result) (*Rig, error) {
	poses, err := DecodeParameters(res.Parameters, res.Heights)
	if err != nil {
		return nil, err
	}
	return rig.WithPoses(poses), nil
}

// Optimizer refines rig poses by minimizing the strict mean distance error.
type Optimizer struct {
	logger   logging.Logger
	settings Settings
	clock    clock.Clock
}

// NewOptimizer returns an optimizer using the given settings.
func NewOptimizer(settings Settings, logger logging.Logger) (*Optimizer, error) {
	if err := settings.Validate("optimizer"); err != nil {
		return nil, err
	}
	return &Optimizer{
		logger:   logger,
		settings: settings.withDefaults(),
		clock:    clock.New(),
	}, nil
}

// SetClock replaces the clock used for run timestamps.
func (o *Optimizer) SetClock(c clock.Clock) {
	o.clock = c
}

// Optimize searches for the poses minimizing the strict mean distance error, starting from the
// rig's current poses. Heights are held fixed. Running out of budget is not an error: the best
// parameters found are returned with Status set accordingly. Cancelling ctx aborts the run.
func (o *Optimizer) Optimize(ctx context.Context, rig *Rig, corr *Correspondences) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "calibration::Optimizer::Optimize")
	defer span.End()

	if err := corr.Validate(Strict); err != nil {
		return nil, err
	}
	res := &Result{
		ID:                uuid.New(),
		Started:           o.clock.Now(),
		Settings:          o.settings,
		InitialParameters: EncodeParameters(rig),
		Heights:           rig.Heights(),
	}
	space, err := newSearchSpace(res.InitialParameters, o.settings)
	if err != nil {
		return nil, err
	}

	objective := func(z []float64) float64 {
		cost, err := MeanDistanceError(rig, space.expand(z), res.Heights, corr, Strict)
		if err != nil || math.IsNaN(cost) {
			return math.Inf(1)
		}
		return cost
	}
	z0 := space.initial()
	res.InitialCost = objective(z0)
	if math.IsInf(res.InitialCost, 1) {
		return nil, errors.New("starting poses give a degenerate projection for at least one correspondence")
	}
	o.logger.Infow("starting optimization",
		"id", res.ID.String(),
		"method", o.settings.Method,
		"parametrization", o.settings.Parametrization,
		"dimension", len(z0),
		"initial_cost", res.InitialCost)

	problem := optimize.Problem{
		Func: objective,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	var method optimize.Method
	switch o.settings.Method {
	case MethodNelderMead:
		method = &optimize.NelderMead{}
	case MethodLBFGS:
		method = &optimize.LBFGS{}
	default:
		method = &optimize.BFGS{}
	}
	if o.settings.Method != MethodNelderMead {
		fdSettings := &fd.Settings{
			Formula:    fd.Central,
			Step:       o.settings.GradientStep,
			Concurrent: o.settings.ConcurrentGradient,
		}
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, objective, x, fdSettings)
		}
	}

	recorder := &historyRecorder{logger: o.logger}
	settings := &optimize.Settings{
		MajorIterations: o.settings.MaxIterations,
		FuncEvaluations: o.settings.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   o.settings.FunctionTolerance,
			Iterations: defaultConvergeWindow,
		},
		Recorder: recorder,
	}
	optRes, optErr := optimize.Minimize(problem, z0, settings, method)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if optRes == nil {
		return nil, errors.Wrap(optErr, "optimization failed")
	}

	best := optRes.X
	res.Cost = optRes.F
	if math.IsInf(optRes.F, 1) || optRes.F > res.InitialCost {
		best, res.Cost = z0, res.InitialCost
	}
	res.Parameters, err = space.expand(best).Normalized()
	if err != nil {
		return nil, err
	}
	res.Status = classifyStatus(optRes.Status, optErr)
	res.OptimizerStatus = optRes.Status.String()
	if optErr != nil {
		res.OptimizerError = optErr.Error()
	}
	res.Iterations = optRes.MajorIterations
	res.Evaluations = optRes.FuncEvaluations
	res.Runtime = optRes.Runtime
	res.History = recorder.history
	if n := len(res.History); n == 0 || res.History[n-1] != res.Cost {
		// the terminating iteration is not passed to the recorder
		res.History = append(res.History, res.Cost)
	}
	res.Finished = o.clock.Now()

	span.AddAttributes(
		trace.StringAttribute("status", string(res.Status)),
		trace.Float64Attribute("cost", res.Cost),
		trace.Int64Attribute("iterations", int64(res.Iterations)))
	if res.Status != StatusConverged {
		o.logger.Warnw("optimization did not converge",
			"id", res.ID.String(), "status", res.Status, "optimizer_status", res.OptimizerStatus, "error", optErr)
	}
	o.logger.Infow("finished optimization",
		"id", res.ID.String(),
		"cost", res.Cost,
		"iterations", res.Iterations,
		"evaluations", res.Evaluations)
	return res, nil
}

func classifyStatus(status optimize.Status, err error) Status {
	switch status {
	case optimize.Success, optimize.FunctionThreshold, optimize.FunctionConvergence,
		optimize.GradientThreshold, optimize.StepConvergence, optimize.MethodConverge:
		if err == nil {
			return StatusConverged
		}
	case optimize.IterationLimit, optimize.RuntimeLimit, optimize.FunctionEvaluationLimit,
		optimize.GradientEvaluationLimit, optimize.HessianEvaluationLimit:
		return StatusIterationLimited
	default:
	}
	return StatusFailed
}

// historyRecorder keeps the best cost after every major iteration.
type historyRecorder struct {
	logger  logging.Logger
	history []float64
}

func (hr *historyRecorder) Init() error {
	hr.history = hr.history[:0]
	return nil
}

func (hr *historyRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	hr.history = append(hr.history, loc.F)
	hr.logger.Debugw("iteration", "n", stats.MajorIterations, "cost", loc.F, "evaluations", stats.FuncEvaluations)
	return nil
}

// searchSpace maps the minimizer's free variables onto a full ParameterVector. The anchor camera,
// if any, contributes no variables.
type searchSpace struct {
	base     ParameterVector
	param    Parametrization
	cameras  []CameraID
	baseRots [4]quat.Number
}

func newSearchSpace(base ParameterVector, settings Settings) (*searchSpace, error) {
	normalized, err := base.Normalized()
	if err != nil {
		return nil, err
	}
	ss := &searchSpace{base: normalized, param: settings.Parametrization}
	anchor := CameraID(-1)
	if settings.Anchor != "" {
		anchor, err = CameraIDFromString(settings.Anchor)
		if err != nil {
			return nil, err
		}
	}
	for _, id := range CameraIDs {
		ss.baseRots[id] = normalized.Quaternion(id)
		if id != anchor {
			ss.cameras = append(ss.cameras, id)
		}
	}
	return ss, nil
}

func (ss *searchSpace) perCamera() int {
	if ss.param == RotationVectorParametrization {
		return 5
	}
	return ParametersPerCamera
}

func (ss *searchSpace) initial() []float64 {
	n := ss.perCamera()
	z := make([]float64, n*len(ss.cameras))
	for i, id := range ss.cameras {
		c := ss.base.Camera(id)
		if ss.param == RotationVectorParametrization {
			z[i*n], z[i*n+1] = c[0], c[1]
			continue
		}
		copy(z[i*n:], c)
	}
	return z
}

func (ss *searchSpace) expand(z []float64) ParameterVector {
	pv := make(ParameterVector, ParameterCount)
	copy(pv, ss.base)
	n := ss.perCamera()
	for i, id := range ss.cameras {
		vars := z[i*n : (i+1)*n]
		c := pv.Camera(id)
		if ss.param != RotationVectorParametrization {
			copy(c, vars)
			continue
		}
		c[0], c[1] = vars[0], vars[1]
		delta := spatialmath.R3ToR4(r3.Vector{X: vars[2], Y: vars[3], Z: vars[4]}).ToQuat()
		q := quat.Mul(delta, ss.baseRots[id])
		c[2], c[3], c[4], c[5] = q.Imag, q.Jmag, q.Kmag, q.Real
	}
	return pv
}

// ParameterDistance is the largest absolute difference between the positions of two parameter
// vectors and the largest rotation angle between their quaternions, in radians.
func ParameterDistance(a, b ParameterVector) (position, angle float64, err error) {
	na, err := a.Normalized()
	if err != nil {
		return 0, 0, err
	}
	nb, err := b.Normalized()
	if err != nil {
		return 0, 0, err
	}
	for _, id := range CameraIDs {
		ca, cb := na.Camera(id), nb.Camera(id)
		position = math.Max(position, floats.Distance(ca[:2], cb[:2], math.Inf(1)))
		angle = math.Max(angle, spatialmath.QuatAngleBetween(na.Quaternion(id), nb.Quaternion(id)))
	}
	return position, angle, nil
}
