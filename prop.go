package j2pert

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AdSpaceEngineeer/J2-pert-Earth-Molniya-Orbit/integrator"
	kitlog "github.com/go-kit/kit/log"
	"github.com/soniakeys/meeus/v3/julian"
)

const (
	// DefaultRelTol is the default relative tolerance of the adaptive integrator.
	DefaultRelTol = 1e-10
	// DefaultAbsTol is the default absolute tolerance of the adaptive integrator.
	DefaultAbsTol = 1e-12
	// DefaultMaxEvaluations is the default right hand side evaluation budget.
	DefaultMaxEvaluations = 20000000
	// DefaultRK4Step is the default step of the fixed step integrator.
	DefaultRK4Step = 30 * time.Second
	// J2000 is the Julian date of the default epoch.
	J2000 = 2451545.0
)

// Method is the numerical integration method.
type Method uint8

const (
	// DormandPrince is the adaptive embedded Runge-Kutta 5(4) method.
	DormandPrince Method = iota + 1
	// RK4 is the fixed step fourth order Runge-Kutta method.
	RK4
)

func (m Method) String() string {
	switch m {
	case DormandPrince:
		return "dopri"
	case RK4:
		return "rk4"
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// MethodFromString returns the method from its name.
func MethodFromString(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "dopri", "dormand-prince", "rk45":
		return DormandPrince, nil
	case "rk4":
		return RK4, nil
	default:
		return 0, fmt.Errorf("%w: unknown method '%s'", ErrInvalidConfig, name)
	}
}

// PropagatorConfig defines a propagation request.
// Exactly one of Samples and Interval must be set: Samples spreads that many instants
// uniformly over [0, Span] (both ends included), Interval samples every k·Interval ≤ Span.
type PropagatorConfig struct {
	Span     time.Duration
	Samples  int
	Interval time.Duration
	Method   Method
	RelTol   float64
	AbsTol   float64
	// InitialStep is the first adaptive step (zero selects it automatically) or the RK4 step.
	InitialStep    time.Duration
	MinStep        time.Duration
	MaxStep        time.Duration
	MaxEvaluations int       // Negative means unbounded.
	Epoch          time.Time // Defaults to J2000.
}

// withDefaults returns a copy with the zero values replaced by the defaults.
func (conf PropagatorConfig) withDefaults() PropagatorConfig {
	if conf.Method == 0 {
		conf.Method = DormandPrince
	}
	if conf.RelTol == 0 {
		conf.RelTol = DefaultRelTol
	}
	if conf.AbsTol == 0 {
		conf.AbsTol = DefaultAbsTol
	}
	if conf.MaxEvaluations == 0 {
		conf.MaxEvaluations = DefaultMaxEvaluations
	}
	if conf.Method == RK4 && conf.InitialStep == 0 {
		conf.InitialStep = DefaultRK4Step
	}
	if conf.Epoch.IsZero() {
		conf.Epoch = julian.JDToTime(J2000)
	}
	conf.Epoch = conf.Epoch.UTC()
	return conf
}

// Validate returns an error if this configuration cannot be propagated.
func (conf PropagatorConfig) Validate() error {
	if conf.Span <= 0 {
		return fmt.Errorf("%w: span must be positive (got %s)", ErrInvalidConfig, conf.Span)
	}
	switch {
	case conf.Samples != 0 && conf.Interval != 0:
		return fmt.Errorf("%w: samples and interval are mutually exclusive", ErrInvalidConfig)
	case conf.Samples == 0 && conf.Interval == 0:
		return fmt.Errorf("%w: one of samples or interval is required", ErrInvalidConfig)
	case conf.Interval == 0 && conf.Samples < 2:
		return fmt.Errorf("%w: at least two samples are required (got %d)", ErrInvalidConfig, conf.Samples)
	case conf.Samples == 0 && (conf.Interval < 0 || conf.Interval > conf.Span):
		return fmt.Errorf("%w: interval must be in (0, span] (got %s)", ErrInvalidConfig, conf.Interval)
	}
	if !(conf.RelTol >= 0) || !(conf.AbsTol >= 0) || conf.RelTol+conf.AbsTol == 0 {
		return fmt.Errorf("%w: tolerances must be non-negative and not both zero (rtol=%g atol=%g)", ErrInvalidConfig, conf.RelTol, conf.AbsTol)
	}
	if conf.Method != DormandPrince && conf.Method != RK4 {
		return fmt.Errorf("%w: unknown method %s", ErrInvalidConfig, conf.Method)
	}
	if conf.Method == RK4 && conf.InitialStep <= 0 {
		return fmt.Errorf("%w: RK4 requires a positive step", ErrInvalidConfig)
	}
	if conf.InitialStep < 0 || conf.MinStep < 0 || conf.MaxStep < 0 {
		return fmt.Errorf("%w: steps cannot be negative", ErrInvalidConfig)
	}
	if conf.MaxStep > 0 && conf.MinStep > conf.MaxStep {
		return fmt.Errorf("%w: min step %s exceeds max step %s", ErrInvalidConfig, conf.MinStep, conf.MaxStep)
	}
	return nil
}

// Grid returns the output instants in seconds past the epoch.
func (conf PropagatorConfig) Grid() []float64 {
	span := conf.Span.Seconds()
	if conf.Samples > 0 {
		ts := make([]float64, conf.Samples)
		last := float64(conf.Samples - 1)
		for i := range ts {
			ts[i] = span * float64(i) / last
		}
		ts[len(ts)-1] = span
		return ts
	}
	Δ := conf.Interval.Seconds()
	count := int(conf.Span/conf.Interval) + 1
	ts := make([]float64, count)
	for i := range ts {
		ts[i] = float64(i) * Δ
	}
	return ts
}

// Propagator integrates the J2 perturbed equations of motion over a fixed span.
// A Propagator is safe for concurrent use: every call builds its own solver.
type Propagator struct {
	conf      PropagatorConfig
	constants PhysicalConstants
	kepler    KeplerSolver
	logger    kitlog.Logger
	metrics   *Metrics
}

// NewPropagator returns a new Propagator. A nil logger discards everything.
func NewPropagator(conf PropagatorConfig, c PhysicalConstants, logger kitlog.Logger) (*Propagator, error) {
	conf = conf.withDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Propagator{conf: conf, constants: c, kepler: DefaultKeplerSolver, logger: logger}, nil
}

// WithMetrics sets the metrics updated by this propagator.
func (p *Propagator) WithMetrics(m *Metrics) *Propagator {
	p.metrics = m
	return p
}

// WithKeplerSolver sets the solver used to convert mean anomalies.
func (p *Propagator) WithKeplerSolver(k KeplerSolver) *Propagator {
	p.kepler = k
	return p
}

// Config returns the configuration after defaults are applied.
func (p *Propagator) Config() PropagatorConfig {
	return p.conf
}

// Constants returns the physical constants of this propagator.
func (p *Propagator) Constants() PhysicalConstants {
	return p.constants
}

// Propagate converts the elements to the epoch state and propagates it.
func (p *Propagator) Propagate(ctx context.Context, oe OrbitalElements) (*Trajectory, error) {
	s0, flags, err := StateFromElements(oe, p.constants, p.kepler)
	if err != nil {
		return nil, err
	}
	if flags.Has(FlagKeplerNotConverged) {
		p.logger.Log("level", "warning", "subsys", "kepler", "message", "Kepler's equation did not converge", "orbit", oe)
	}
	p.logger.Log("level", "info", "subsys", "prop", "orbit", oe, "state", s0)
	return p.PropagateState(ctx, s0)
}

// PropagateState propagates the provided epoch state. On failure no trajectory is returned
// and the error is an *IntegrationError.
func (p *Propagator) PropagateState(ctx context.Context, s0 StateVector) (*Trajectory, error) {
	ts := p.conf.Grid()
	solver := p.solver()
	dynamics := Dynamics{Constants: p.constants}

	p.logger.Log("level", "info", "subsys", "prop", "method", p.conf.Method, "epoch", p.conf.Epoch, "span", p.conf.Span, "samples", len(ts))
	start := time.Now()
	states, stats, err := solver.Solve(ctx, dynamics.Func, s0.Vector(), ts)
	run := RunStats{Stats: stats, Duration: time.Since(start), Method: p.conf.Method}
	p.metrics.observeRun(run, err)
	if err != nil {
		ierr := newIntegrationError(p.conf.Method, err, stats)
		p.logger.Log("level", "critical", "subsys", "prop", "status", "failed", "t", ierr.T, "h", ierr.H, "stats", stats, "err", ierr.Err)
		return nil, ierr
	}

	traj := &Trajectory{epoch: p.conf.Epoch, samples: make([]Sample, len(ts)), stats: run}
	for i, t := range ts {
		traj.samples[i] = Sample{T: t, DT: p.conf.Epoch.Add(seconds(t)), State: NewStateVector(states[i])}
	}
	p.logger.Log("level", "notice", "subsys", "prop", "status", "finished", "duration", run.Duration, "stats", stats)
	return traj, nil
}

func (p *Propagator) solver() integrator.Solver {
	budget := p.conf.MaxEvaluations
	if budget < 0 {
		budget = 0
	}
	switch p.conf.Method {
	case RK4:
		rk := integrator.NewRK4(p.conf.InitialStep.Seconds())
		rk.MaxEvaluations = budget
		return rk
	default:
		dp := integrator.NewDormandPrince(p.conf.RelTol, p.conf.AbsTol)
		dp.InitialStep = p.conf.InitialStep.Seconds()
		dp.MinStep = p.conf.MinStep.Seconds()
		dp.MaxStep = p.conf.MaxStep.Seconds()
		dp.MaxEvaluations = budget
		return dp
	}
}

// seconds converts a float number of seconds to a duration rounded to the nanosecond.
func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
