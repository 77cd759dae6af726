package j2pert

import (
	"errors"
	"math"
)

// singularRadius is the radius (km) under which the dynamics refuse to evaluate.
const singularRadius = 1e-9

// Dynamics defines the perturbed two-body equations of motion in Cartesian coordinates
// (Cowell's method). It is the right hand side handed to the integrators.
type Dynamics struct {
	Constants PhysicalConstants
}

// Func implements integrator.Func for the state [R V].
func (d Dynamics) Func(t float64, f, fDot []float64) error {
	acc, err := Acceleration(f[:3], d.Constants)
	if err != nil {
		return err
	}
	// d\vec{R}/dt
	fDot[0] = f[3]
	fDot[1] = f[4]
	fDot[2] = f[5]
	// d\vec{V}/dt
	fDot[3] = acc[0]
	fDot[4] = acc[1]
	fDot[5] = acc[2]
	return nil
}

// Derivative returns the time derivative of the provided state.
func (d Dynamics) Derivative(s StateVector) ([6]float64, error) {
	var fDot [6]float64
	err := d.Func(0, s.Vector(), fDot[:])
	var sErr *SingularStateError
	if errors.As(err, &sErr) {
		sErr.V = s.V
	}
	return fDot, err
}

// Acceleration returns the Keplerian acceleration plus the J2 perturbation at position R.
// A position at (or numerically at) the center of the body is an error.
func Acceleration(R []float64, c PhysicalConstants) ([3]float64, error) {
	var acc [3]float64
	r := norm(R)
	if math.IsNaN(r) || math.IsInf(r, 0) || r < singularRadius {
		return acc, &SingularStateError{R: [3]float64{R[0], R[1], R[2]}, Reason: "position norm is zero or not finite"}
	}
	bodyAcc := -c.Mu / (r * r * r)
	pert := J2Acceleration(R, c)
	for i := 0; i < 3; i++ {
		acc[i] = bodyAcc*R[i] + pert[i]
	}
	return acc, nil
}

// J2Acceleration returns the acceleration due to the oblateness of the body only.
// R must not be the zero vector.
func J2Acceleration(R []float64, c PhysicalConstants) [3]float64 {
	var pert [3]float64
	if c.J2 == 0 {
		return pert
	}
	r := norm(R)
	accJ2 := (3 / 2.) * c.J2 * c.Mu * math.Pow(c.Radius, 2) / math.Pow(r, 4)
	zr := R[2] / r
	zr2 := 5 * zr * zr
	pert[0] = accJ2 * (R[0] / r) * (zr2 - 1)
	pert[1] = accJ2 * (R[1] / r) * (zr2 - 1)
	pert[2] = accJ2 * zr * (zr2 - 3)
	return pert
}
