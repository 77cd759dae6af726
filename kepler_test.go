package j2pert

import (
	"errors"
	"math"
	"testing"

	"github.com/gonum/floats"
)

func TestKeplerConvergence(t *testing.T) {
	for e := 0.0; e <= 0.95; e += 0.05 {
		for Mdeg := -180.0; Mdeg <= 540; Mdeg += 7.5 {
			sol, err := DefaultKeplerSolver.Solve(Mdeg*deg2rad, e)
			if err != nil {
				t.Fatalf("e=%f M=%f: %s", e, Mdeg, err)
			}
			if !sol.Converged {
				t.Fatalf("e=%f M=%f did not converge: %s", e, Mdeg, sol)
			}
			if sol.Residual > 1e-10 {
				t.Fatalf("e=%f M=%f residual too large: %s", e, Mdeg, sol)
			}
			if sol.E < 0 || sol.E >= 2*math.Pi {
				t.Fatalf("E=%f not wrapped", sol.E)
			}
		}
	}
}

func TestKeplerKnownValues(t *testing.T) {
	// Circular orbits have E = M.
	sol, _ := KeplerSolver{}.Solve(1.234, 0)
	if !floats.EqualWithinAbs(sol.E, 1.234, 1e-14) {
		t.Fatalf("E=%f != M for a circular orbit", sol.E)
	}
	// Vallado example 2-1: M=235.4°, e=0.4 → E=220.512074767522°.
	sol, _ = KeplerSolver{}.Solve(Deg2rad(235.4), 0.4)
	if ok, err := anglesEqual(sol.E, Deg2rad(220.512074767522)); !ok {
		t.Fatalf("E invalid: %s (%f)", err, Rad2deg(sol.E))
	}
	// Mean anomaly is wrapped before solving.
	wrapped, _ := KeplerSolver{}.Solve(Deg2rad(235.4)+4*math.Pi, 0.4)
	if ok, err := anglesEqual(sol.E, wrapped.E); !ok {
		t.Fatalf("unwrapped mean anomaly gave a different E: %s", err)
	}
}

func TestKeplerNotConverged(t *testing.T) {
	sol, err := KeplerSolver{Tolerance: 1e-15, MaxIterations: 1}.Solve(Deg2rad(10), 0.95)
	if err != nil {
		t.Fatalf("hitting the iteration cap must not be an error: %s", err)
	}
	if sol.Converged || sol.Iterations != 1 {
		t.Fatalf("expected a single non converged iteration: %s", sol)
	}
	if math.IsNaN(sol.E) {
		t.Fatal("the best iterate should be returned")
	}
}

func TestKeplerInvalidEccentricity(t *testing.T) {
	for _, e := range []float64{1, 1.5, -0.1, math.NaN()} {
		if _, err := DefaultKeplerSolver.Solve(1, e); !errors.Is(err, ErrInvalidEccentricity) {
			t.Fatalf("e=%f: expected ErrInvalidEccentricity, got %v", e, err)
		}
		if _, err := TrueAnomalyFromEccentric(1, e); !errors.Is(err, ErrInvalidEccentricity) {
			t.Fatalf("e=%f: half angle formula must reject open orbits, got %v", e, err)
		}
		var eErr *InvalidEccentricityError
		if _, err := MeanAnomalyFromTrue(1, e); !errors.As(err, &eErr) {
			t.Fatalf("e=%f: expected *InvalidEccentricityError, got %v", e, err)
		}
	}
}

func TestAnomalyRoundTrip(t *testing.T) {
	for _, e := range []float64{0, 0.001, 0.3, 0.74, 0.95} {
		for νdeg := 0.0; νdeg < 360; νdeg += 10 {
			ν := Deg2rad(νdeg)
			M, err := MeanAnomalyFromTrue(ν, e)
			if err != nil {
				t.Fatal(err)
			}
			sol, _ := DefaultKeplerSolver.Solve(M, e)
			ν1, err := TrueAnomalyFromEccentric(sol.E, e)
			if err != nil {
				t.Fatal(err)
			}
			if ok, err := anglesEqual(ν, ν1); !ok {
				t.Fatalf("e=%f ν=%f: round trip failed: %s", e, νdeg, err)
			}
		}
	}
}
