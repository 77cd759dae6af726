package j2pert

import (
	"fmt"
	"math"
	"time"
)

// OrbitalElements defines a closed orbit via its classical orbital elements.
// All angles are in radians and interpreted modulo 2π.
type OrbitalElements struct {
	A       float64 // Semi-major axis (km)
	E       float64 // Eccentricity, in [0, 1)
	I       float64 // Inclination
	RAAN    float64 // Right ascension of the ascending node Ω
	ArgP    float64 // Argument of periapsis ω
	Anomaly float64 // Mean or true anomaly, see Kind
	Kind    AnomalyKind
}

// MolniyaElements is the reference Molniya orbit at epoch, to be used with the Molniya constants.
var MolniyaElements = NewElementsFromDegrees(26600, 0.74, 63.435, 90, 5, 10, MeanAnomaly)

// NewElementsFromDegrees creates orbital elements from angles in degrees.
func NewElementsFromDegrees(a, e, i, Ω, ω, anomaly float64, kind AnomalyKind) OrbitalElements {
	return OrbitalElements{a, e, Deg2rad(i), Deg2rad(Ω), Deg2rad(ω), Deg2rad(anomaly), kind}
}

// Validate returns an error if these elements do not describe a closed orbit.
func (oe OrbitalElements) Validate() error {
	for _, v := range []float64{oe.A, oe.E, oe.I, oe.RAAN, oe.ArgP, oe.Anomaly} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in %s", ErrInvalidElements, oe)
		}
	}
	if oe.A <= 0 {
		return fmt.Errorf("%w: a=%g km", ErrInvalidElements, oe.A)
	}
	if oe.Kind != MeanAnomaly && oe.Kind != TrueAnomaly {
		return fmt.Errorf("%w: unknown anomaly kind %d", ErrInvalidElements, oe.Kind)
	}
	return checkEccentricity(oe.E)
}

// SemiParameter returns the semi-latus rectum p.
func (oe OrbitalElements) SemiParameter() float64 {
	return oe.A * (1 - oe.E*oe.E)
}

// Apoapsis returns the apoapsis radius.
func (oe OrbitalElements) Apoapsis() float64 {
	return oe.A * (1 + oe.E)
}

// Periapsis returns the periapsis radius.
func (oe OrbitalElements) Periapsis() float64 {
	return oe.A * (1 - oe.E)
}

// Period returns the Keplerian period of this orbit.
func (oe OrbitalElements) Period(c PhysicalConstants) time.Duration {
	seconds := twoPi * math.Sqrt(math.Pow(oe.A, 3)/c.Mu)
	return time.Duration(seconds * float64(time.Second))
}

// TrueAnomaly returns the true anomaly of these elements, solving Kepler's equation if needed.
// The solution is zero valued when Kind is TrueAnomaly.
func (oe OrbitalElements) TrueAnomaly(k KeplerSolver) (ν float64, sol KeplerSolution, err error) {
	if oe.Kind == TrueAnomaly {
		return wrap(oe.Anomaly), sol, nil
	}
	if sol, err = k.Solve(oe.Anomaly, oe.E); err != nil {
		return math.NaN(), sol, err
	}
	ν, err = TrueAnomalyFromEccentric(sol.E, oe.E)
	return
}

// String implements the stringer interface.
func (oe OrbitalElements) String() string {
	return fmt.Sprintf("a=%.3f e=%.6f i=%.3f Ω=%.3f ω=%.3f %s=%.3f", oe.A, oe.E, Rad2deg(oe.I), Rad2deg(oe.RAAN), Rad2deg(oe.ArgP), oe.Kind, Rad2deg(oe.Anomaly))
}

// StateVector is a position (km) and velocity (km/s) in the geocentric equatorial frame.
type StateVector struct {
	R, V [3]float64
}

// RNorm returns the norm of the radius vector.
func (s StateVector) RNorm() float64 {
	return norm(s.R[:])
}

// VNorm returns the norm of the velocity vector.
func (s StateVector) VNorm() float64 {
	return norm(s.V[:])
}

// H returns the specific angular momentum vector.
func (s StateVector) H() []float64 {
	return cross(s.R[:], s.V[:])
}

// HNorm returns the norm of the specific angular momentum.
func (s StateVector) HNorm() float64 {
	return norm(s.H())
}

// Energyξ returns the specific mechanical energy ξ for the gravitational parameter μ.
func (s StateVector) Energyξ(μ float64) float64 {
	v := s.VNorm()
	return v*v/2 - μ/s.RNorm()
}

// Vector returns the state as a 6x1 slice [R V].
func (s StateVector) Vector() []float64 {
	return []float64{s.R[0], s.R[1], s.R[2], s.V[0], s.V[1], s.V[2]}
}

// String implements the stringer interface.
func (s StateVector) String() string {
	return fmt.Sprintf("R=%+v km V=%+v km/s", s.R, s.V)
}

// NewStateVector creates a state from a 6x1 slice [R V].
func NewStateVector(s []float64) StateVector {
	return StateVector{[3]float64{s[0], s[1], s[2]}, [3]float64{s[3], s[4], s[5]}}
}

// StateFromElements converts orbital elements to an inertial state vector.
// A Kepler solver which hits its iteration cap is not an error: the best iterate is used
// and FlagKeplerNotConverged is returned.
func StateFromElements(oe OrbitalElements, c PhysicalConstants, k KeplerSolver) (StateVector, Flags, error) {
	var flags Flags
	if err := c.Validate(); err != nil {
		return StateVector{}, flags, err
	}
	if err := oe.Validate(); err != nil {
		return StateVector{}, flags, err
	}
	ν, sol, err := oe.TrueAnomaly(k)
	if err != nil {
		return StateVector{}, flags, err
	}
	if oe.Kind == MeanAnomaly && !sol.Converged {
		flags |= FlagKeplerNotConverged
	}

	h := math.Sqrt(c.Mu * oe.SemiParameter())
	sinν, cosν := math.Sincos(ν)
	r := h * h / c.Mu / (1 + oe.E*cosν)
	R := []float64{r * cosν, r * sinν, 0}
	V := []float64{-c.Mu / h * sinν, c.Mu / h * (oe.E + cosν), 0}

	dcm := InertialDCM(oe.I, oe.RAAN, oe.ArgP)
	R = MxV33(dcm, R)
	V = MxV33(dcm, V)
	return StateVector{[3]float64{R[0], R[1], R[2]}, [3]float64{V[0], V[1], V[2]}}, flags, nil
}
