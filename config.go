package j2pert

import (
	"errors"
	"fmt"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/spf13/viper"
)

// Scenario is a propagation request read from a configuration file.
type Scenario struct {
	Name        string
	Elements    OrbitalElements
	Constants   PhysicalConstants
	Propagation PropagatorConfig
	Workers     int // Element extraction workers.
}

// LoadScenario reads a scenario file (TOML, YAML or JSON, from its extension).
//
//	[scenario]    name
//	[constants]   body, mu, J2, radius (each overrides the body's value)
//	[perturbations] J2 (defaults to true)
//	[orbit]       sma, ecc, inc, RAAN, argPeri and one of mAnomaly or tAnomaly (degrees)
//	[propagation] span, samples or interval, rtol, atol, method, step, minStep, maxStep,
//	              maxEvaluations, epoch (JDE or time), workers
func LoadScenario(path string) (Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, &ConfigError{Key: path, Err: err}
	}
	return scenarioFromViper(v)
}

func scenarioFromViper(v *viper.Viper) (sc Scenario, err error) {
	sc.Name = v.GetString("scenario.name")

	// Central body
	body := v.GetString("constants.body")
	if sc.Constants, err = ConstantsFromString(body); err != nil {
		return sc, &ConfigError{Key: "constants.body", Err: err}
	}
	if v.IsSet("constants.mu") {
		sc.Constants.Mu = v.GetFloat64("constants.mu")
	}
	if v.IsSet("constants.J2") {
		sc.Constants.J2 = v.GetFloat64("constants.J2")
	}
	if v.IsSet("constants.radius") {
		sc.Constants.Radius = v.GetFloat64("constants.radius")
	}
	if v.IsSet("perturbations.J2") && !v.GetBool("perturbations.J2") {
		sc.Constants = sc.Constants.WithoutJ2()
	}
	if err = sc.Constants.Validate(); err != nil {
		return sc, &ConfigError{Key: "constants", Err: err}
	}

	// Orbit
	var anomaly float64
	var kind AnomalyKind
	switch mSet, tSet := v.IsSet("orbit.mAnomaly"), v.IsSet("orbit.tAnomaly"); {
	case mSet && tSet:
		return sc, &ConfigError{Key: "orbit.mAnomaly", Err: errors.New("mAnomaly and tAnomaly are mutually exclusive")}
	case mSet:
		anomaly, kind = v.GetFloat64("orbit.mAnomaly"), MeanAnomaly
	case tSet:
		anomaly, kind = v.GetFloat64("orbit.tAnomaly"), TrueAnomaly
	default:
		return sc, &ConfigError{Key: "orbit.mAnomaly", Err: errors.New("one of mAnomaly or tAnomaly is required")}
	}
	sc.Elements = NewElementsFromDegrees(v.GetFloat64("orbit.sma"), v.GetFloat64("orbit.ecc"), v.GetFloat64("orbit.inc"),
		v.GetFloat64("orbit.RAAN"), v.GetFloat64("orbit.argPeri"), anomaly, kind)
	if err = sc.Elements.Validate(); err != nil {
		return sc, &ConfigError{Key: "orbit", Err: err}
	}

	// Propagation
	conf := PropagatorConfig{
		Span:           v.GetDuration("propagation.span"),
		Samples:        v.GetInt("propagation.samples"),
		Interval:       v.GetDuration("propagation.interval"),
		RelTol:         v.GetFloat64("propagation.rtol"),
		AbsTol:         v.GetFloat64("propagation.atol"),
		InitialStep:    v.GetDuration("propagation.step"),
		MinStep:        v.GetDuration("propagation.minStep"),
		MaxStep:        v.GetDuration("propagation.maxStep"),
		MaxEvaluations: v.GetInt("propagation.maxEvaluations"),
	}
	if conf.Method, err = MethodFromString(v.GetString("propagation.method")); err != nil {
		return sc, &ConfigError{Key: "propagation.method", Err: err}
	}
	if v.IsSet("propagation.epoch") {
		if conf.Epoch, err = readJDEorTime(v, "propagation.epoch"); err != nil {
			return sc, &ConfigError{Key: "propagation.epoch", Err: err}
		}
	}
	conf = conf.withDefaults()
	if err = conf.Validate(); err != nil {
		return sc, &ConfigError{Key: "propagation", Err: err}
	}
	sc.Propagation = conf
	sc.Workers = v.GetInt("propagation.workers")
	return sc, nil
}

// readJDEorTime reads a date either as a Julian date or as a time.
func readJDEorTime(v *viper.Viper, key string) (time.Time, error) {
	if jde := v.GetFloat64(key); jde != 0 {
		return julian.JDToTime(jde), nil
	}
	dt := v.GetTime(key)
	if dt.IsZero() {
		return dt, fmt.Errorf("could not understand `%v` as a Julian date or a time", v.Get(key))
	}
	return dt.UTC(), nil
}
