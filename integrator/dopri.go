package integrator

import (
	"context"
	"math"

	"github.com/gonum/floats"
)

// Dormand-Prince 5(4) tableau (Hairer, Nørsett & Wanner, table 5.2).
var (
	dpC = [7]float64{0, 1 / 5., 3 / 10., 4 / 5., 8 / 9., 1, 1}
	dpA = [7][6]float64{
		{},
		{1 / 5.},
		{3 / 40., 9 / 40.},
		{44 / 45., -56 / 15., 32 / 9.},
		{19372 / 6561., -25360 / 2187., 64448 / 6561., -212 / 729.},
		{9017 / 3168., -355 / 33., 46732 / 5247., 49 / 176., -5103 / 18656.},
		{35 / 384., 0, 500 / 1113., 125 / 192., -2187 / 6784., 11 / 84.},
	}
	// Difference between the fifth and fourth order weights.
	dpE = [7]float64{71 / 57600., 0, -71 / 16695., 71 / 1920., -17253 / 339200., 22 / 525., -1 / 40.}
)

const (
	safety    = 0.9
	minFactor = 0.2
	maxFactor = 5.0
	ctxEvery  = 64 // steps between two context checks
	epsilon   = 2.220446049250313e-16
)

// DormandPrince is an adaptive, embedded Runge-Kutta 5(4) solver with FSAL.
// Steps are truncated to land exactly on every requested output instant.
type DormandPrince struct {
	RelTol, AbsTol float64
	InitialStep    float64 // Zero selects the starting step automatically.
	MinStep        float64 // Zero only enforces the floating point floor.
	MaxStep        float64 // Zero means unbounded.
	MaxEvaluations int     // Zero means unbounded.
}

// NewDormandPrince returns a solver with the provided tolerances.
func NewDormandPrince(rtol, atol float64) *DormandPrince {
	return &DormandPrince{RelTol: rtol, AbsTol: atol}
}

// Solve implements the Solver interface.
func (dp *DormandPrince) Solve(ctx context.Context, f Func, y0, ts []float64) ([][]float64, Stats, error) {
	var stats Stats
	if err := checkGrid(y0, ts); err != nil {
		return nil, stats, err
	}
	out := make([][]float64, len(ts))
	out[0] = clone(y0)
	if len(ts) == 1 {
		return out, stats, nil
	}
	rhs := counter{f, dp.MaxEvaluations, &stats}
	n := len(y0)
	var k [7][]float64
	for i := range k {
		k[i] = make([]float64, n)
	}
	y := clone(y0)
	ynew := make([]float64, n)
	ytmp := make([]float64, n)
	yerr := make([]float64, n)

	t := ts[0]
	fail := func(h float64, err error) ([][]float64, Stats, error) {
		return nil, stats, &StepError{T: t, H: h, Stats: stats, Err: err}
	}
	if err := rhs.eval(t, y, k[0]); err != nil {
		return fail(0, err)
	}
	h := dp.InitialStep
	if h <= 0 {
		var err error
		if h, err = dp.startingStep(rhs, t, y, k[0], ts[len(ts)-1]-t); err != nil {
			return fail(0, err)
		}
	}
	// Only error control may push the step below MinStep.
	h = math.Max(h, dp.MinStep)
	if dp.MaxStep > 0 && h > dp.MaxStep {
		h = dp.MaxStep
	}

	rejected := false
	for next := 1; next < len(ts); {
		if stats.Steps%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return fail(h, err)
			}
		}
		target := ts[next]
		if h <= 0 || h < dp.floor(t, target) {
			return fail(h, ErrStepUnderflow)
		}
		hs := h
		hit := false
		if t+hs >= target {
			hs = target - t
			hit = true
		}

		// Stages 2 through 7, the last one evaluated at the fifth order solution (FSAL).
		for s := 1; s < 7; s++ {
			dst := ytmp
			if s == 6 {
				dst = ynew
			}
			copy(dst, y)
			for j := 0; j < s; j++ {
				if a := dpA[s][j]; a != 0 {
					floats.AddScaled(dst, hs*a, k[j])
				}
			}
			if err := rhs.eval(t+dpC[s]*hs, dst, k[s]); err != nil {
				return fail(hs, err)
			}
		}
		for i := range yerr {
			yerr[i] = 0
		}
		for j := 0; j < 7; j++ {
			if e := dpE[j]; e != 0 {
				floats.AddScaled(yerr, hs*e, k[j])
			}
		}
		errNorm := dp.errorNorm(y, ynew, yerr, ytmp)

		if errNorm <= 1 {
			if !finite(ynew) {
				return fail(hs, ErrNonFinite)
			}
			stats.Steps++
			if hit {
				t = target
			} else {
				t += hs
			}
			y, ynew = ynew, y
			k[0], k[6] = k[6], k[0]
			if hit {
				out[next] = clone(y)
				next++
			}
			fac := maxFactor
			if errNorm > 0 {
				fac = math.Min(maxFactor, math.Max(minFactor, safety*math.Pow(errNorm, -0.2)))
			}
			if rejected {
				fac = math.Min(fac, 1)
			}
			if hit && hs < h {
				// The truncated step says little about the natural step size.
				h = math.Max(h, hs*fac)
			} else {
				h = hs * fac
			}
			rejected = false
		} else {
			stats.Rejected++
			fac := minFactor
			if !math.IsNaN(errNorm) && !math.IsInf(errNorm, 0) {
				fac = math.Max(minFactor, safety*math.Pow(errNorm, -0.2))
			}
			h = hs * fac
			rejected = true
		}
		if dp.MaxStep > 0 && h > dp.MaxStep {
			h = dp.MaxStep
		}
	}
	return out, stats, nil
}

// floor returns the smallest usable step between t and the next output instant.
func (dp *DormandPrince) floor(t, target float64) float64 {
	return math.Max(dp.MinStep, 16*epsilon*math.Max(math.Abs(t), math.Abs(target)))
}

// errorNorm returns the RMS of the scaled local error. The scratch buffer is overwritten.
func (dp *DormandPrince) errorNorm(y, ynew, yerr, scratch []float64) float64 {
	for i := range yerr {
		sc := dp.AbsTol + dp.RelTol*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
		scratch[i] = yerr[i] / sc
	}
	return rms(scratch)
}

// startingStep is the initial step heuristic from Hairer, Nørsett & Wanner (II.4).
func (dp *DormandPrince) startingStep(rhs counter, t float64, y0, f0 []float64, span float64) (float64, error) {
	n := len(y0)
	sc := make([]float64, n)
	tmp := make([]float64, n)
	for i := range sc {
		sc[i] = dp.AbsTol + dp.RelTol*math.Abs(y0[i])
	}
	floats.DivTo(tmp, y0, sc)
	d0 := rms(tmp)
	floats.DivTo(tmp, f0, sc)
	d1 := rms(tmp)
	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, span)

	y1 := floats.AddScaledTo(make([]float64, n), y0, h0, f0)
	f1 := make([]float64, n)
	if err := rhs.eval(t+h0, y1, f1); err != nil {
		return 0, err
	}
	floats.SubTo(tmp, f1, f0)
	floats.Div(tmp, sc)
	d2 := rms(tmp) / h0

	var h1 float64
	if dmax := math.Max(d1, d2); dmax <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/dmax, 0.2)
	}
	return math.Min(math.Min(100*h0, h1), span), nil
}

func rms(v []float64) float64 {
	return floats.Norm(v, 2) / math.Sqrt(float64(len(v)))
}
