package j2pert

import (
	"fmt"
	"math"
	"strings"
)

// PhysicalConstants defines the central body as seen by the propagator.
// It is passed explicitly to every computation which needs it.
type PhysicalConstants struct {
	Name   string
	Mu     float64 // Gravitational parameter (km^3/s^2)
	J2     float64 // Second zonal harmonic
	Radius float64 // Equatorial reference radius (km)
}

// WithoutJ2 returns a copy of these constants for a pure two-body propagation.
func (c PhysicalConstants) WithoutJ2() PhysicalConstants {
	c.J2 = 0
	if c.Name != "" {
		c.Name += " (two-body)"
	}
	return c
}

// Validate returns an error if these constants cannot be used.
func (c PhysicalConstants) Validate() error {
	if !(c.Mu > 0) || math.IsInf(c.Mu, 0) {
		return fmt.Errorf("%w: μ=%g", ErrInvalidConstants, c.Mu)
	}
	if !(c.Radius > 0) || math.IsInf(c.Radius, 0) {
		return fmt.Errorf("%w: radius=%g", ErrInvalidConstants, c.Radius)
	}
	if !(c.J2 >= 0) || math.IsInf(c.J2, 0) {
		return fmt.Errorf("%w: J2=%g", ErrInvalidConstants, c.J2)
	}
	return nil
}

// String implements the Stringer interface.
func (c PhysicalConstants) String() string {
	return fmt.Sprintf("%s (μ=%g km^3/s^2, J2=%g, R=%g km)", c.Name, c.Mu, c.J2, c.Radius)
}

// ConstantsFromString returns the constants from their name.
func ConstantsFromString(name string) (PhysicalConstants, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "earth":
		return Earth, nil
	case "earth-two-body":
		return Earth.WithoutJ2(), nil
	case "molniya":
		return Molniya, nil
	default:
		return PhysicalConstants{}, fmt.Errorf("undefined body '%s'", name)
	}
}

/* Definitions */

// Earth is home.
var Earth = PhysicalConstants{"Earth", 3.98600433e5, 1082.6269e-6, 6378.1363}

// Molniya is the Earth with the rounded gravitational parameter of the Molniya reference case.
var Molniya = PhysicalConstants{"Earth (Molniya)", 398600, 1082.6269e-6, 6378.1363}
