package integrator

import (
	"context"
	"errors"
	"math"

	"github.com/ChristopherRabotin/ode"
)

// RK4 is a fixed step fourth order Runge-Kutta solver backed by ode.RK4.
// Each output interval is split in the smallest number of equal steps no larger than Step.
type RK4 struct {
	Step           float64
	MaxEvaluations int // Zero means unbounded.
}

// NewRK4 returns a fixed step solver.
func NewRK4(step float64) *RK4 {
	return &RK4{Step: step}
}

// Solve implements the Solver interface.
func (r *RK4) Solve(ctx context.Context, f Func, y0, ts []float64) ([][]float64, Stats, error) {
	var stats Stats
	if err := checkGrid(y0, ts); err != nil {
		return nil, stats, err
	}
	if !(r.Step > 0) {
		return nil, stats, errors.New("integrator: RK4 step must be positive")
	}
	out := make([][]float64, len(ts))
	out[0] = clone(y0)
	rhs := counter{f, r.MaxEvaluations, &stats}
	for i := 1; i < len(ts); i++ {
		span := ts[i] - ts[i-1]
		steps := int(math.Ceil(span / r.Step))
		leg := &rk4Leg{
			ctx:   ctx,
			rhs:   rhs,
			t0:    ts[i-1],
			state: clone(out[i-1]),
			total: steps,
			stats: &stats,
		}
		ode.NewRK4(0, span/float64(steps), leg).Solve() // Blocking.
		if leg.err != nil {
			return nil, stats, &StepError{T: ts[i-1] + float64(leg.done)*span/float64(steps), H: span / float64(steps), Stats: stats, Err: leg.err}
		}
		out[i] = leg.state
	}
	return out, stats, nil
}

// rk4Leg is an ode.Integrable covering one output interval.
type rk4Leg struct {
	ctx         context.Context
	rhs         counter
	t0          float64
	state       []float64
	done, total int
	stats       *Stats
	err         error
}

// GetState implements the ode.Integrable interface.
func (l *rk4Leg) GetState() []float64 {
	return l.state
}

// SetState implements the ode.Integrable interface.
func (l *rk4Leg) SetState(t float64, s []float64) {
	if l.err != nil {
		return
	}
	if !finite(s) {
		l.err = ErrNonFinite
		return
	}
	l.state = s
	l.done++
	l.stats.Steps++
}

// Stop implements the ode.Integrable interface.
func (l *rk4Leg) Stop(t float64) bool {
	if l.err != nil || l.done >= l.total {
		return true
	}
	if err := l.ctx.Err(); err != nil {
		l.err = err
		return true
	}
	return false
}

// Func implements the ode.Integrable interface.
func (l *rk4Leg) Func(t float64, s []float64) []float64 {
	dy := make([]float64, len(s))
	if l.err != nil {
		return dy
	}
	if err := l.rhs.eval(l.t0+t, s, dy); err != nil {
		l.err = err
	}
	return dy
}
