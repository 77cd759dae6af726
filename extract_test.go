package j2pert

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gonum/floats"
)

func TestElementsFromStateVallado(t *testing.T) {
	s := StateVector{[3]float64{6524.834, 6862.875, 6448.296}, [3]float64{4.901327, 5.533756, -1.976341}}
	oe, err := ElementsFromState(s, Earth)
	if err != nil {
		t.Fatal(err)
	}
	if oe.Flags != 0 {
		t.Fatalf("unexpected flags %s", oe.Flags)
	}
	if oe.Kind != TrueAnomaly {
		t.Fatal("extracted elements must use the true anomaly")
	}
	if !floats.EqualWithinAbs(oe.A, 36127.343, 1e-2) {
		t.Fatalf("a=%f", oe.A)
	}
	if !floats.EqualWithinAbs(oe.E, 0.832853, 1e-6) {
		t.Fatalf("e=%f", oe.E)
	}
	for _, angle := range []struct {
		name     string
		exp, got float64
	}{
		{"i", 87.869126, oe.I},
		{"Ω", 227.898260, oe.RAAN},
		{"ω", 53.384931, oe.ArgP},
		{"ν", 92.335157, oe.Anomaly},
		{"ϖ", 281.283201, oe.LongitudeOfPeriapsis},
	} {
		if ok, err := anglesEqual(Deg2rad(angle.exp), angle.got); !ok {
			t.Fatalf("%s invalid: %s (%f)", angle.name, err, Rad2deg(angle.got))
		}
	}
	if ok, err := anglesEqual(wrap(oe.ArgP+oe.Anomaly), oe.ArgLatitude); !ok {
		t.Fatalf("argument of latitude invalid: %s", err)
	}
	if ok, err := anglesEqual(wrap(oe.RAAN+oe.ArgLatitude), oe.TrueLongitude); !ok {
		t.Fatalf("true longitude invalid: %s", err)
	}
	M, _ := MeanAnomalyFromTrue(oe.Anomaly, oe.E)
	if ok, err := anglesEqual(M, oe.MeanAnomaly); !ok {
		t.Fatalf("mean anomaly invalid: %s", err)
	}
}

func TestElementsRoundTrip(t *testing.T) {
	c := Earth.WithoutJ2()
	for _, kind := range []AnomalyKind{TrueAnomaly, MeanAnomaly} {
		for _, e := range []float64{0.001, 0.95} {
			for _, i := range []float64{10, 63.435, 120, 170} {
				for Ω := 0.0; Ω < 360; Ω += 45 {
					for _, ω := range []float64{5, 95, 185, 275} {
						for anomaly := 0.0; anomaly < 360; anomaly += 30 {
							oe0 := NewElementsFromDegrees(26600, e, i, Ω, ω, anomaly, kind)
							s, flags, err := StateFromElements(oe0, c, DefaultKeplerSolver)
							if err != nil {
								t.Fatal(err)
							}
							oe1, err := ElementsFromState(s, c)
							if err != nil {
								t.Fatal(err)
							}
							if flags != 0 || oe1.Flags != 0 {
								t.Fatalf("%s: unexpected flags %s %s", oe0, flags, oe1.Flags)
							}
							if ok, err := floatEqual(oe0.A, oe1.A); !ok {
								t.Fatalf("%s: a %s", oe0, err)
							}
							if !floats.EqualWithinAbs(oe0.E, oe1.E, 1e-9) {
								t.Fatalf("%s: e=%.12f", oe0, oe1.E)
							}
							anomaly1 := oe1.Anomaly
							if kind == MeanAnomaly {
								anomaly1 = oe1.MeanAnomaly
							}
							for _, pair := range [][2]float64{{oe0.I, oe1.I}, {oe0.RAAN, oe1.RAAN}, {oe0.ArgP, oe1.ArgP}, {oe0.Anomaly, anomaly1}} {
								if ok, err := anglesEqual(pair[0], pair[1]); !ok {
									t.Logf("\noe0: %s\noe1: %s", oe0, oe1.OrbitalElements)
									t.Fatalf("angles differ: %s", err)
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestElementsEquatorial(t *testing.T) {
	for _, i := range []float64{0, 1e-13} {
		oe0 := OrbitalElements{A: 7000, E: 0.1, I: i, RAAN: Deg2rad(30), ArgP: Deg2rad(40), Anomaly: Deg2rad(50), Kind: TrueAnomaly}
		s, _, err := StateFromElements(oe0, Earth, DefaultKeplerSolver)
		if err != nil {
			t.Fatal(err)
		}
		oe, err := ElementsFromState(s, Earth)
		if err != nil {
			t.Fatal(err)
		}
		if !oe.Flags.Has(FlagRAANUndefined | FlagArgPUndefined) {
			t.Fatalf("i=%g: expected RAAN and ArgP to be undefined, got %s", i, oe.Flags)
		}
		if oe.Flags.Has(FlagTrueAnomalyUndefined) {
			t.Fatalf("i=%g: true anomaly is defined for an eccentric orbit", i)
		}
		if !math.IsNaN(oe.RAAN) || !math.IsNaN(oe.ArgP) || !math.IsNaN(oe.ArgLatitude) {
			t.Fatalf("i=%g: undefined angles must be NaN: %+v", i, oe)
		}
		// The rest of the sample is still valid.
		if ok, err := floatEqual(oe.A, 7000); !ok {
			t.Fatalf("i=%g: a %s", i, err)
		}
		if !floats.EqualWithinAbs(oe.E, 0.1, 1e-12) {
			t.Fatalf("i=%g: e=%f", i, oe.E)
		}
		if ok, err := anglesEqual(oe.I, 0); !ok {
			t.Fatalf("i=%g: inclination %s", i, err)
		}
		if ok, err := anglesEqual(oe.Anomaly, Deg2rad(50)); !ok {
			t.Fatalf("i=%g: ν %s", i, err)
		}
		if ok, err := anglesEqual(oe.LongitudeOfPeriapsis, Deg2rad(70)); !ok {
			t.Fatalf("i=%g: ϖ %s", i, err)
		}
		if ok, err := anglesEqual(oe.TrueLongitude, Deg2rad(120)); !ok {
			t.Fatalf("i=%g: λ %s", i, err)
		}
	}
}

func TestElementsCircular(t *testing.T) {
	s, _, err := StateFromElements(NewElementsFromDegrees(7000, 0, 45, 30, 40, 50, TrueAnomaly), Earth, DefaultKeplerSolver)
	if err != nil {
		t.Fatal(err)
	}
	oe, err := ElementsFromState(s, Earth)
	if err != nil {
		t.Fatal(err)
	}
	if !oe.Flags.Has(FlagArgPUndefined|FlagTrueAnomalyUndefined) || oe.Flags.Has(FlagRAANUndefined) {
		t.Fatalf("unexpected flags %s", oe.Flags)
	}
	if !math.IsNaN(oe.ArgP) || !math.IsNaN(oe.Anomaly) || !math.IsNaN(oe.MeanAnomaly) || !math.IsNaN(oe.LongitudeOfPeriapsis) {
		t.Fatalf("undefined angles must be NaN: %+v", oe)
	}
	if ok, err := anglesEqual(oe.RAAN, Deg2rad(30)); !ok {
		t.Fatalf("Ω %s", err)
	}
	if ok, err := anglesEqual(oe.ArgLatitude, Deg2rad(90)); !ok {
		t.Fatalf("u %s", err)
	}
	if ok, err := anglesEqual(oe.TrueLongitude, Deg2rad(120)); !ok {
		t.Fatalf("λ %s", err)
	}

	// Circular and equatorial: only the true longitude remains.
	s, _, _ = StateFromElements(NewElementsFromDegrees(7000, 0, 0, 30, 40, 50, TrueAnomaly), Earth, DefaultKeplerSolver)
	oe, err = ElementsFromState(s, Earth)
	if err != nil {
		t.Fatal(err)
	}
	if !oe.Flags.Has(FlagRAANUndefined | FlagArgPUndefined | FlagTrueAnomalyUndefined) {
		t.Fatalf("unexpected flags %s", oe.Flags)
	}
	if ok, err := anglesEqual(oe.TrueLongitude, Deg2rad(120)); !ok {
		t.Fatalf("λ %s", err)
	}
}

func TestElementsOpenOrbit(t *testing.T) {
	s := StateVector{[3]float64{7000, 0, 0}, [3]float64{0, 10, 5}}
	oe, err := ElementsFromState(s, Earth)
	if err != nil {
		t.Fatal(err)
	}
	if !oe.Flags.Has(FlagOpenOrbit) {
		t.Fatalf("expected an open orbit, got %s", oe.Flags)
	}
	if !math.IsNaN(oe.A) || !math.IsNaN(oe.MeanAnomaly) {
		t.Fatalf("a and M must be NaN on open orbits: %+v", oe)
	}
	if oe.E <= 1 {
		t.Fatalf("e=%f", oe.E)
	}
}

func TestElementsSingular(t *testing.T) {
	for _, s := range []StateVector{
		{},
		{[3]float64{0, 0, 0}, [3]float64{1, 2, 3}},
		{[3]float64{7000, 0, 0}, [3]float64{3, 0, 0}}, // rectilinear
		{[3]float64{math.NaN(), 0, 0}, [3]float64{0, 7, 0}},
	} {
		if _, err := ElementsFromState(s, Earth); !errors.Is(err, ErrSingularState) {
			t.Fatalf("%s: expected ErrSingularState, got %v", s, err)
		}
	}
}

func TestFlagsString(t *testing.T) {
	if s := Flags(0).String(); s != "none" {
		t.Fatalf("got %s", s)
	}
	if s := (FlagRAANUndefined | FlagArgPUndefined).String(); s != "raan-undefined|argp-undefined" {
		t.Fatalf("got %s", s)
	}
}

func TestExtractSeries(t *testing.T) {
	conf := PropagatorConfig{Span: 24 * time.Hour, Samples: 97}
	prop, err := NewPropagator(conf, Molniya, nil)
	if err != nil {
		t.Fatal(err)
	}
	traj, err := prop.Propagate(context.Background(), MolniyaElements)
	if err != nil {
		t.Fatal(err)
	}
	sequential, err := ExtractSeries(context.Background(), traj, Molniya, 1)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := ExtractSeries(context.Background(), traj, Molniya, 8)
	if err != nil {
		t.Fatal(err)
	}
	if sequential.Len() != traj.Len() || parallel.Len() != traj.Len() {
		t.Fatalf("series length %d/%d != trajectory length %d", sequential.Len(), parallel.Len(), traj.Len())
	}
	for i := 0; i < traj.Len(); i++ {
		ts, oeS := sequential.At(i)
		tp, oeP := parallel.At(i)
		if ts != traj.At(i).T || tp != ts {
			t.Fatalf("sample #%d is out of order: %f %f %f", i, ts, tp, traj.At(i).T)
		}
		if oeS != oeP {
			t.Fatalf("sample #%d differs:\n%+v\n%+v", i, oeS, oeP)
		}
		// Each entry is exactly the conversion of its own state.
		oe, _ := ElementsFromState(traj.At(i).State, Molniya)
		if oe != oeS {
			t.Fatalf("sample #%d is not the conversion of its state", i)
		}
	}
	if sequential.Flagged(FlagRAANUndefined|FlagArgPUndefined|FlagTrueAnomalyUndefined|FlagOpenOrbit) != 0 {
		t.Fatal("Molniya samples should not be degenerate")
	}
}

func TestExtractSeriesErrors(t *testing.T) {
	traj := &Trajectory{samples: make([]Sample, 100)}
	for i := range traj.samples {
		traj.samples[i] = Sample{T: float64(i), State: StateVector{[3]float64{7000, 0, 0}, [3]float64{0, 7.5, 1}}}
	}
	traj.samples[42].State = StateVector{}
	for _, workers := range []int{1, 4} {
		series, err := ExtractSeries(context.Background(), traj, Earth, workers)
		if !errors.Is(err, ErrSingularState) || series != nil {
			t.Fatalf("workers=%d: expected ErrSingularState and no series, got %v", workers, err)
		}
	}
	for _, workers := range []int{1, 4} {
		if _, err := ExtractSeries(context.Background(), nil, Earth, workers); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("workers=%d: expected ErrInvalidConfig for a nil trajectory, got %v", workers, err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	traj.samples[42] = traj.samples[41]
	for _, workers := range []int{1, 4} {
		if _, err := ExtractSeries(ctx, traj, Earth, workers); !errors.Is(err, context.Canceled) {
			t.Fatalf("workers=%d: expected context.Canceled, got %v", workers, err)
		}
	}
}
