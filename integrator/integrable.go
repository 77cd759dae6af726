package integrator

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrStepUnderflow is returned when the adaptive step collapses below the smallest usable step.
	ErrStepUnderflow = errors.New("integrator: step size underflow")
	// ErrTooManyEvaluations is returned when the right hand side evaluation budget is exhausted.
	ErrTooManyEvaluations = errors.New("integrator: evaluation budget exhausted")
	// ErrNonFinite is returned when an accepted state contains a NaN or an infinity.
	ErrNonFinite = errors.New("integrator: non-finite state")
	// ErrInvalidGrid is returned when the output instants are not strictly increasing.
	ErrInvalidGrid = errors.New("integrator: output instants must be strictly increasing")
)

// Func is the right hand side of y' = f(t, y). It must write the derivative in dy
// and return an error if the state cannot be evaluated.
type Func func(t float64, y, dy []float64) error

// Solver integrates an ODE from ts[0] and returns the state at every instant of ts.
// Implementations never return partial results: either all of ts is computed or an error is.
type Solver interface {
	Solve(ctx context.Context, f Func, y0, ts []float64) ([][]float64, Stats, error)
}

// Stats summarizes the work done by a solver.
type Stats struct {
	Steps       int // Accepted steps.
	Rejected    int // Rejected steps (adaptive solvers only).
	Evaluations int // Right hand side evaluations.
}

func (s Stats) String() string {
	return fmt.Sprintf("steps=%d rejected=%d evaluations=%d", s.Steps, s.Rejected, s.Evaluations)
}

// StepError locates where an integration failed.
type StepError struct {
	T     float64 // Time reached when the failure happened.
	H     float64 // Step size being attempted.
	Stats Stats
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("t=%g h=%g (%s): %s", e.T, e.H, e.Stats, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StepError) Unwrap() error {
	return e.Err
}

// counter wraps a Func with the evaluation budget.
type counter struct {
	f     Func
	max   int
	stats *Stats
}

func (c counter) eval(t float64, y, dy []float64) error {
	if c.max > 0 && c.stats.Evaluations >= c.max {
		return ErrTooManyEvaluations
	}
	c.stats.Evaluations++
	return c.f(t, y, dy)
}

func checkGrid(y0, ts []float64) error {
	if len(ts) == 0 || len(y0) == 0 {
		return ErrInvalidGrid
	}
	for i := 1; i < len(ts); i++ {
		if !(ts[i] > ts[i-1]) {
			return ErrInvalidGrid
		}
	}
	return nil
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
