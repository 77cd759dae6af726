package j2pert

import (
	"errors"
	"fmt"

	"github.com/AdSpaceEngineeer/J2-pert-Earth-Molniya-Orbit/integrator"
)

var (
	// ErrInvalidEccentricity is matched by every *InvalidEccentricityError.
	ErrInvalidEccentricity = errors.New("eccentricity outside of [0, 1)")
	// ErrInvalidElements is returned for non-physical orbital elements.
	ErrInvalidElements = errors.New("invalid orbital elements")
	// ErrInvalidConstants is returned for non-physical central body constants.
	ErrInvalidConstants = errors.New("invalid physical constants")
	// ErrSingularState is matched by every *SingularStateError.
	ErrSingularState = errors.New("singular state")
	// ErrIntegration is matched by every *IntegrationError.
	ErrIntegration = errors.New("integration failed")
	// ErrInvalidConfig is returned for unusable propagation configurations.
	ErrInvalidConfig = errors.New("invalid propagation configuration")
)

// InvalidEccentricityError is returned when an open or negative eccentricity reaches
// a computation only defined for closed orbits.
type InvalidEccentricityError struct {
	E float64
}

func (e *InvalidEccentricityError) Error() string {
	return fmt.Sprintf("e=%g: %s (open orbits are not supported)", e.E, ErrInvalidEccentricity)
}

// Is allows errors.Is(err, ErrInvalidEccentricity).
func (e *InvalidEccentricityError) Is(target error) bool {
	return target == ErrInvalidEccentricity
}

// SingularStateError is returned when a state cannot be used by the dynamics or the
// element extraction, e.g. a position at the center of the body.
type SingularStateError struct {
	R, V   [3]float64
	Reason string
}

func (e *SingularStateError) Error() string {
	return fmt.Sprintf("%s: %s (R=%+v V=%+v)", ErrSingularState, e.Reason, e.R, e.V)
}

// Is allows errors.Is(err, ErrSingularState).
func (e *SingularStateError) Is(target error) bool {
	return target == ErrSingularState
}

// IntegrationError is returned when a propagation is abandoned. No trajectory accompanies it.
type IntegrationError struct {
	Method Method
	T      float64 // Seconds past epoch reached when the solver gave up
	H      float64 // Step being attempted (s)
	Stats  integrator.Stats
	Err    error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s: %s at t=%.3fs (h=%.3es, %s): %s", ErrIntegration, e.Method, e.T, e.H, e.Stats, e.Err)
}

// Is allows errors.Is(err, ErrIntegration).
func (e *IntegrationError) Is(target error) bool {
	return target == ErrIntegration
}

// Unwrap returns the solver failure.
func (e *IntegrationError) Unwrap() error {
	return e.Err
}

func newIntegrationError(m Method, err error, stats integrator.Stats) *IntegrationError {
	ie := &IntegrationError{Method: m, Stats: stats, Err: err}
	var stepErr *integrator.StepError
	if errors.As(err, &stepErr) {
		ie.T = stepErr.T
		ie.H = stepErr.H
		ie.Err = stepErr.Err
	}
	return ie
}

// ConfigError is returned when a scenario cannot be loaded.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config `%s`: %s", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
