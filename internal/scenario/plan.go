// Package scenario sequences the load-test phases: steady churn, morning
// ramp, power-outage storm and sustained peak.
package scenario

import (
	"fmt"
	"time"

	"github.com/openradius/authstorm/internal/config"
	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/runner"
)

// Phase is one time-bounded segment of the run.
type Phase struct {
	Name        string
	Label       string
	Kind        metrics.PhaseKind
	Duration    time.Duration
	Concurrency int
	Driver      runner.Driver
	// Description is printed under the phase header.
	Description []string
}

// Plan is the ordered list of phases plus the warmup size.
type Plan struct {
	Phases []Phase
	Warmup int
}

// NewPlan builds the four-phase plan from configuration.
func NewPlan(cfg *config.Config, poolSize int) Plan {
	steadyRate := float64(cfg.SteadyRPS)
	peakRate := float64(cfg.PeakRPS)
	arrival := runner.ArrivalModel(cfg.Arrival.Model)

	return Plan{
		Warmup: cfg.Warmup,
		Phases: []Phase{
			{
				Name:        "STEADY STATE",
				Label:       "STEADY",
				Kind:        metrics.PhaseSteady,
				Duration:    cfg.Steady.Duration,
				Concurrency: cfg.Steady.Concurrency,
				Driver:      runner.FixedRate{Rate: steadyRate, Arrival: arrival},
				Description: []string{
					fmt.Sprintf("Simulating normal PPPoE churn: %d auth/sec for %s", cfg.SteadyRPS, cfg.Steady.Duration),
					"(lease expiry, modem reboots, line flaps)",
				},
			},
			{
				Name:        "RAMP UP",
				Label:       "RAMP",
				Kind:        metrics.PhaseRamp,
				Duration:    cfg.Ramp.Duration,
				Concurrency: cfg.Ramp.Concurrency,
				Driver:      runner.Ramp{StartRate: steadyRate, EndRate: peakRate},
				Description: []string{
					fmt.Sprintf("Morning peak ramp: %d → %d auth/sec over %s", cfg.SteadyRPS, cfg.PeakRPS, cfg.Ramp.Duration),
					"(subscribers come online)",
				},
			},
			{
				Name:        "POWER OUTAGE",
				Label:       "OUTAGE",
				Kind:        metrics.PhaseOutage,
				Duration:    cfg.Outage.Duration,
				Concurrency: cfg.Outage.Concurrency,
				Driver:      runner.Burst{},
				Description: []string{
					fmt.Sprintf("Power restored! %d CPEs rebooting over %s", poolSize, cfg.Outage.Duration),
					"(20% fast boot 5-15s, 50% normal 15-45s, 30% slow 45-90s)",
				},
			},
			{
				Name:        "SUSTAINED PEAK",
				Label:       "PEAK",
				Kind:        metrics.PhasePeak,
				Duration:    cfg.Peak.Duration,
				Concurrency: cfg.Peak.Concurrency,
				Driver:      runner.FixedRate{Rate: peakRate, Arrival: arrival},
				Description: []string{
					fmt.Sprintf("Continuous %d auth/sec for %s", cfg.PeakRPS, cfg.Peak.Duration),
					"(finding the sustained throughput ceiling)",
				},
			},
		},
	}
}
