package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	j2pert "github.com/AdSpaceEngineeer/J2-pert-Earth-Molniya-Orbit"
	kitlog "github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// This command only reads the scenario, propagates it and logs what the plotting layer consumes.

var (
	scenario string
	timeout  time.Duration
	verbose  bool
	every    int
)

var rootCmd = &cobra.Command{
	Use:           "molniya",
	Short:         "J2 perturbed propagation of a Molniya type orbit",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var propagateCmd = &cobra.Command{
	Use:   "propagate",
	Short: "Propagate the scenario and log the osculating elements",
	Long: `
Propagate the scenario orbit under the J2 perturbation and log one logfmt line per
output sample with the state and the osculating elements (angles in degrees).

Without --scenario, the reference Molniya orbit is propagated for 100 days
(a=26600 km, e=0.74, i=63.435°, Ω=90°, ω=5°, M=10°).
`,
	Args: cobra.NoArgs,
	RunE: runPropagate,
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Log the epoch state vector of the scenario orbit",
	Args:  cobra.NoArgs,
	RunE:  runState,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&scenario, "scenario", "", "scenario file (TOML, YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log the propagation details and metrics")
	propagateCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "wall clock limit of the propagation (0 for none)")
	propagateCmd.Flags().IntVar(&every, "every", 1, "only log every n-th sample")
	rootCmd.AddCommand(propagateCmd, stateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "molniya: %s\n", err)
		os.Exit(1)
	}
}

func loadScenario() (j2pert.Scenario, error) {
	if scenario == "" {
		return j2pert.Scenario{
			Name:      "Molniya",
			Elements:  j2pert.MolniyaElements,
			Constants: j2pert.Molniya,
			Propagation: j2pert.PropagatorConfig{
				Span:    100 * 24 * time.Hour,
				Samples: 2001,
			},
			Workers: runtime.NumCPU(),
		}, nil
	}
	return j2pert.LoadScenario(scenario)
}

func outputLogger() kitlog.Logger {
	return kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
}

func runState(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario()
	if err != nil {
		return err
	}
	s0, flags, err := j2pert.StateFromElements(sc.Elements, sc.Constants, j2pert.DefaultKeplerSolver)
	if err != nil {
		return err
	}
	logger := outputLogger()
	logger.Log("scenario", sc.Name, "body", sc.Constants.Name, "orbit", sc.Elements)
	logger.Log("R(km)", fmt.Sprintf("%+v", s0.R), "V(km/s)", fmt.Sprintf("%+v", s0.V), "r(km)", s0.RNorm(),
		"periapsis(km)", sc.Elements.Periapsis(), "apoapsis(km)", sc.Elements.Apoapsis(), "period", sc.Elements.Period(sc.Constants), "flags", flags)
	return nil
}

func runPropagate(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario()
	if err != nil {
		return err
	}
	if every < 1 {
		every = 1
	}
	logger := outputLogger()
	progLogger := kitlog.NewNopLogger()
	if verbose {
		progLogger = kitlog.With(logger, "scenario", sc.Name)
	}

	reg := prometheus.NewRegistry()
	metrics, err := j2pert.NewMetrics(reg)
	if err != nil {
		return err
	}
	prop, err := j2pert.NewPropagator(sc.Propagation, sc.Constants, progLogger)
	if err != nil {
		return err
	}
	prop.WithMetrics(metrics)

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	traj, err := prop.Propagate(ctx, sc.Elements)
	if err != nil {
		return err
	}
	series, err := j2pert.NewExtractor(sc.Constants, sc.Workers, progLogger).WithMetrics(metrics).Series(ctx, traj)
	if err != nil {
		return err
	}

	for i := 0; i < traj.Len(); i += every {
		sample := traj.At(i)
		_, oe := series.At(i)
		logger.Log("t(s)", sample.T, "jd", sample.JD(), "r(km)", sample.State.RNorm(),
			"a(km)", oe.A, "e", oe.E, "i", j2pert.Rad2deg(oe.I), "Ω", j2pert.Rad2deg(oe.RAAN), "ω", j2pert.Rad2deg(oe.ArgP),
			"ν", j2pert.Rad2deg(oe.Anomaly), "M", j2pert.Rad2deg(oe.MeanAnomaly), "flags", oe.Flags)
	}
	if verbose {
		logMetrics(logger, reg)
	}
	return nil
}

// logMetrics logs every gathered sample of the registry.
func logMetrics(logger kitlog.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Log("level", "error", "subsys", "metrics", "err", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			kv := []interface{}{"level", "info", "subsys", "metrics", "name", mf.GetName()}
			for _, lp := range m.GetLabel() {
				kv = append(kv, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				kv = append(kv, "value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				kv = append(kv, "count", m.GetHistogram().GetSampleCount(), "sum", m.GetHistogram().GetSampleSum())
			}
			logger.Log(kv...)
		}
	}
}
