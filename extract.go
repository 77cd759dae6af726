package j2pert

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	kitlog "github.com/go-kit/kit/log"
)

const (
	// eccentricityε is the eccentricity under which the orbit is considered circular.
	eccentricityε = 1e-9
	// nodeε is the node vector norm, relative to the angular momentum, under which the
	// orbit is considered equatorial.
	nodeε = 1e-11
)

// Flags are the recoverable conditions attached to a conversion.
type Flags uint8

const (
	// FlagKeplerNotConverged is set when Kepler's equation hit its iteration cap.
	FlagKeplerNotConverged Flags = 1 << iota
	// FlagRAANUndefined is set for equatorial orbits (no line of nodes).
	FlagRAANUndefined
	// FlagArgPUndefined is set for circular or equatorial orbits.
	FlagArgPUndefined
	// FlagTrueAnomalyUndefined is set for circular orbits (no periapsis).
	FlagTrueAnomalyUndefined
	// FlagOpenOrbit is set when the state is not on a closed orbit.
	FlagOpenOrbit
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagKeplerNotConverged, "kepler-not-converged"},
	{FlagRAANUndefined, "raan-undefined"},
	{FlagArgPUndefined, "argp-undefined"},
	{FlagTrueAnomalyUndefined, "true-anomaly-undefined"},
	{FlagOpenOrbit, "open-orbit"},
}

// Has returns whether all of the provided flags are set.
func (f Flags) Has(g Flags) bool {
	return f&g == g
}

// String implements the Stringer interface.
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// OsculatingElements are the elements extracted from a single state vector.
// The embedded elements always use the true anomaly. An angle which is geometrically
// undefined is NaN and its flag is set; the alternate angles remain usable in that case:
//   - equatorial orbits: RAAN and ArgP are NaN, use LongitudeOfPeriapsis;
//   - circular orbits: ArgP and the anomalies are NaN, use ArgLatitude (inclined) or TrueLongitude.
type OsculatingElements struct {
	OrbitalElements
	MeanAnomaly          float64
	ArgLatitude          float64 // u = ω + ν, NaN for equatorial orbits
	TrueLongitude        float64 // λ, always defined
	LongitudeOfPeriapsis float64 // ϖ, NaN for circular orbits
	Flags                Flags
}

// ElementsFromState returns the osculating elements of a state vector (Vallado's RV2COE).
// Degenerate geometries are flagged, not errors. A zero position or a rectilinear
// trajectory (no angular momentum) is a *SingularStateError.
func ElementsFromState(s StateVector, c PhysicalConstants) (OsculatingElements, error) {
	var oe OsculatingElements
	oe.Kind = TrueAnomaly
	if err := c.Validate(); err != nil {
		return oe, err
	}
	R, V := s.R[:], s.V[:]
	r := norm(R)
	v := norm(V)
	if !(r >= singularRadius) || math.IsInf(r, 0) || math.IsNaN(v) || math.IsInf(v, 0) {
		return oe, &SingularStateError{R: s.R, V: s.V, Reason: "position norm is zero or not finite"}
	}
	hVec := cross(R, V)
	h := norm(hVec)
	if h <= 1e-12*r*v {
		return oe, &SingularStateError{R: s.R, V: s.V, Reason: "rectilinear trajectory"}
	}
	n := []float64{-hVec[1], hVec[0], 0} // ẑ × h
	nNorm := norm(n)
	rv := dot(R, V)
	eVec := make([]float64, 3)
	for i := 0; i < 3; i++ {
		eVec[i] = (v*v/c.Mu-1/r)*R[i] - (rv/c.Mu)*V[i]
	}
	e := norm(eVec)

	oe.E = e
	oe.A = 1 / (2/r - v*v/c.Mu)
	if e >= 1 || s.Energyξ(c.Mu) >= 0 {
		oe.Flags |= FlagOpenOrbit
		oe.A = math.NaN()
	}
	oe.I = acos(hVec[2] / h)

	equatorial := nNorm < nodeε*h
	circular := e < eccentricityε

	if equatorial {
		oe.RAAN = math.NaN()
		oe.Flags |= FlagRAANUndefined
	} else {
		oe.RAAN = acos(n[0] / nNorm)
		if n[1] < 0 {
			oe.RAAN = twoPi - oe.RAAN
		}
	}

	if circular || equatorial {
		oe.ArgP = math.NaN()
		oe.Flags |= FlagArgPUndefined
	} else {
		oe.ArgP = acos(dot(n, eVec) / (nNorm * e))
		if eVec[2] < 0 {
			oe.ArgP = twoPi - oe.ArgP
		}
	}

	if circular {
		oe.Anomaly = math.NaN()
		oe.Flags |= FlagTrueAnomalyUndefined
	} else {
		oe.Anomaly = acos(dot(eVec, R) / (e * r))
		if rv < 0 {
			oe.Anomaly = twoPi - oe.Anomaly
		}
	}

	// Alternate angles.
	if equatorial {
		oe.ArgLatitude = math.NaN()
		oe.TrueLongitude = acos(R[0] / r)
		if R[1] < 0 {
			oe.TrueLongitude = twoPi - oe.TrueLongitude
		}
	} else {
		oe.ArgLatitude = acos(dot(n, R) / (nNorm * r))
		if R[2] < 0 {
			oe.ArgLatitude = twoPi - oe.ArgLatitude
		}
		oe.TrueLongitude = wrap(oe.RAAN + oe.ArgLatitude)
	}
	switch {
	case circular:
		oe.LongitudeOfPeriapsis = math.NaN()
	case equatorial:
		oe.LongitudeOfPeriapsis = acos(eVec[0] / e)
		if eVec[1] < 0 {
			oe.LongitudeOfPeriapsis = twoPi - oe.LongitudeOfPeriapsis
		}
	default:
		oe.LongitudeOfPeriapsis = wrap(oe.RAAN + oe.ArgP)
	}

	oe.MeanAnomaly = math.NaN()
	if !circular && e < 1 {
		oe.MeanAnomaly, _ = MeanAnomalyFromTrue(oe.Anomaly, e)
	}
	return oe, nil
}

// ElementSeries is the ordered sequence of osculating elements aligned with a Trajectory.
type ElementSeries struct {
	times    []float64
	elements []OsculatingElements
}

// Len returns the number of entries.
func (s *ElementSeries) Len() int {
	return len(s.elements)
}

// At returns the time (s past epoch) and the elements of the i-th entry.
func (s *ElementSeries) At(i int) (float64, OsculatingElements) {
	return s.times[i], s.elements[i]
}

// Elements returns a copy of all the entries.
func (s *ElementSeries) Elements() []OsculatingElements {
	return append([]OsculatingElements(nil), s.elements...)
}

// Times returns a copy of the time of each entry (s past epoch).
func (s *ElementSeries) Times() []float64 {
	return append([]float64(nil), s.times...)
}

// Flagged returns the number of entries with at least one of the provided flags.
func (s *ElementSeries) Flagged(f Flags) int {
	count := 0
	for _, oe := range s.elements {
		if oe.Flags&f != 0 {
			count++
		}
	}
	return count
}

// Extractor maps trajectories to element series. Samples are independent and are
// converted by a pool of workers; the output order always matches the trajectory.
type Extractor struct {
	constants PhysicalConstants
	workers   int
	logger    kitlog.Logger
	metrics   *Metrics
}

// NewExtractor returns a new Extractor. A nil logger discards everything and fewer than
// two workers converts the samples sequentially.
func NewExtractor(c PhysicalConstants, workers int, logger kitlog.Logger) *Extractor {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Extractor{constants: c, workers: workers, logger: logger}
}

// WithMetrics sets the metrics updated by this extractor.
func (x *Extractor) WithMetrics(m *Metrics) *Extractor {
	x.metrics = m
	return x
}

// Series converts every sample of the trajectory.
func (x *Extractor) Series(ctx context.Context, traj *Trajectory) (*ElementSeries, error) {
	if traj == nil {
		return nil, fmt.Errorf("%w: no trajectory to extract", ErrInvalidConfig)
	}
	if err := x.constants.Validate(); err != nil {
		return nil, err
	}
	samples := traj.samples
	series := &ElementSeries{times: make([]float64, len(samples)), elements: make([]OsculatingElements, len(samples))}
	convert := func(i int) error {
		oe, err := ElementsFromState(samples[i].State, x.constants)
		if err != nil {
			return err
		}
		series.times[i] = samples[i].T
		series.elements[i] = oe
		return nil
	}

	if x.workers <= 1 {
		for i := range samples {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := convert(i); err != nil {
				return nil, err
			}
		}
	} else if err := x.parallel(ctx, len(samples), convert); err != nil {
		return nil, err
	}

	for _, oe := range series.elements {
		x.metrics.observeFlags(oe.Flags)
	}
	if flagged := series.Flagged(FlagRAANUndefined | FlagArgPUndefined | FlagTrueAnomalyUndefined | FlagOpenOrbit); flagged > 0 {
		x.logger.Log("level", "warning", "subsys", "extract", "degenerate", flagged, "samples", series.Len())
	}
	return series, nil
}

// parallel runs convert on every index with the worker pool. Each index is written by
// exactly one worker so no further synchronization is needed on the output.
func (x *Extractor) parallel(ctx context.Context, count int, convert func(int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := make(chan int, x.workers*2)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for w := 0; w < x.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := convert(i); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
				}
			}
		}()
	}

	// Feed jobs until done or canceled.
feed:
	for i := 0; i < count; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// ExtractSeries converts a trajectory with a throw-away Extractor.
func ExtractSeries(ctx context.Context, traj *Trajectory, c PhysicalConstants, workers int) (*ElementSeries, error) {
	return NewExtractor(c, workers, nil).Series(ctx, traj)
}
