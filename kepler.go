package j2pert

import (
	"fmt"
	"math"
)

const (
	keplerTolerance     = 1e-12
	keplerMaxIterations = 50
)

// AnomalyKind tells how OrbitalElements.Anomaly should be read.
type AnomalyKind uint8

const (
	// MeanAnomaly means the anomaly is the mean anomaly M.
	MeanAnomaly AnomalyKind = iota
	// TrueAnomaly means the anomaly is the true anomaly ν.
	TrueAnomaly
)

func (k AnomalyKind) String() string {
	switch k {
	case MeanAnomaly:
		return "M"
	case TrueAnomaly:
		return "ν"
	}
	return fmt.Sprintf("anomaly(%d)", uint8(k))
}

// KeplerSolver solves Kepler's equation E - e·sin(E) = M with Newton-Raphson.
// The zero value uses a 1e-12 tolerance and at most 50 iterations.
type KeplerSolver struct {
	Tolerance     float64
	MaxIterations int
}

// DefaultKeplerSolver is the solver used when none is provided.
var DefaultKeplerSolver = KeplerSolver{Tolerance: keplerTolerance, MaxIterations: keplerMaxIterations}

// KeplerSolution is the outcome of KeplerSolver.Solve.
// When Converged is false, E is the last iterate and should be reported as a warning.
type KeplerSolution struct {
	E          float64 // Eccentric anomaly in [0, 2π)
	Iterations int
	Converged  bool
	Residual   float64 // |E - e·sin(E) - M|
}

func (s KeplerSolution) String() string {
	return fmt.Sprintf("E=%.12f (%d iterations, converged=%v, residual=%.3e)", s.E, s.Iterations, s.Converged, s.Residual)
}

// Solve returns the eccentric anomaly for the mean anomaly M (radians) and the eccentricity e.
// An eccentricity outside of [0, 1) is rejected.
func (k KeplerSolver) Solve(M, e float64) (KeplerSolution, error) {
	if err := checkEccentricity(e); err != nil {
		return KeplerSolution{}, err
	}
	tol := k.Tolerance
	if tol <= 0 {
		tol = keplerTolerance
	}
	maxIter := k.MaxIterations
	if maxIter <= 0 {
		maxIter = keplerMaxIterations
	}
	M = wrap(M)
	E := M + e/2
	if M >= math.Pi {
		E = M - e/2
	}
	var sol KeplerSolution
	for sol.Iterations < maxIter {
		sinE, cosE := math.Sincos(E)
		Δ := (E - e*sinE - M) / (1 - e*cosE)
		E -= Δ
		sol.Iterations++
		if math.Abs(Δ) < tol {
			sol.Converged = true
			break
		}
	}
	sol.Residual = math.Abs(E - e*math.Sin(E) - M)
	sol.E = wrap(E)
	return sol, nil
}

// TrueAnomalyFromEccentric returns the true anomaly in [0, 2π) from the half angle formula.
// The formula is only defined for closed orbits: e ≥ 1 is rejected.
func TrueAnomalyFromEccentric(E, e float64) (float64, error) {
	if err := checkEccentricity(e); err != nil {
		return math.NaN(), err
	}
	return wrap(2 * math.Atan(math.Sqrt((1+e)/(1-e))*math.Tan(E/2))), nil
}

// EccentricAnomalyFromTrue is the inverse of TrueAnomalyFromEccentric.
func EccentricAnomalyFromTrue(ν, e float64) (float64, error) {
	if err := checkEccentricity(e); err != nil {
		return math.NaN(), err
	}
	return wrap(2 * math.Atan(math.Sqrt((1-e)/(1+e))*math.Tan(ν/2))), nil
}

// MeanAnomalyFromTrue returns the mean anomaly in [0, 2π) for the true anomaly ν.
func MeanAnomalyFromTrue(ν, e float64) (float64, error) {
	E, err := EccentricAnomalyFromTrue(ν, e)
	if err != nil {
		return math.NaN(), err
	}
	return wrap(E - e*math.Sin(E)), nil
}

func checkEccentricity(e float64) error {
	if !(e >= 0 && e < 1) {
		return &InvalidEccentricityError{E: e}
	}
	return nil
}
