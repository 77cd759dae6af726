package j2pert

import (
	"fmt"
	"time"

	"github.com/AdSpaceEngineeer/J2-pert-Earth-Molniya-Orbit/integrator"
	"github.com/soniakeys/meeus/v3/julian"
)

// Sample is one output instant of a Trajectory.
type Sample struct {
	T     float64   // Seconds past the epoch.
	DT    time.Time // Epoch + T, in UTC.
	State StateVector
}

// JD returns the Julian date of this sample.
func (s Sample) JD() float64 {
	return julian.TimeToJD(s.DT)
}

func (s Sample) String() string {
	return fmt.Sprintf("t=%.3fs (%s) %s", s.T, s.DT.Format(time.RFC3339), s.State)
}

// RunStats summarizes a propagation.
type RunStats struct {
	integrator.Stats
	Duration time.Duration // Wall time.
	Method   Method
}

func (s RunStats) String() string {
	return fmt.Sprintf("%s %s in %s", s.Method, s.Stats, s.Duration)
}

// Trajectory is the immutable sequence of states produced by a Propagator,
// aligned to the requested output grid.
type Trajectory struct {
	epoch   time.Time
	samples []Sample
	stats   RunStats
}

// Epoch returns the date of t = 0.
func (t *Trajectory) Epoch() time.Time {
	return t.epoch
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	return len(t.samples)
}

// At returns the i-th sample.
func (t *Trajectory) At(i int) Sample {
	return t.samples[i]
}

// Samples returns a copy of all the samples.
func (t *Trajectory) Samples() []Sample {
	return append([]Sample(nil), t.samples...)
}

// Times returns the output instants in seconds past the epoch.
func (t *Trajectory) Times() []float64 {
	ts := make([]float64, len(t.samples))
	for i, s := range t.samples {
		ts[i] = s.T
	}
	return ts
}

// Final returns the last sample.
func (t *Trajectory) Final() Sample {
	return t.samples[len(t.samples)-1]
}

// Stats returns the statistics of the run which produced this trajectory.
func (t *Trajectory) Stats() RunStats {
	return t.stats
}
