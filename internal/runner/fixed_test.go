package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/runner"
)

func TestFixedRateDispatchesRateTimesDuration(t *testing.T) {
	tests := []struct {
		name    string
		arrival runner.ArrivalModel
	}{
		{"uniform", runner.ArrivalModelUniform},
		{"poisson with unit sampler", runner.ArrivalModelPoisson},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{latency: time.Millisecond}
			stats := metrics.NewLiveStats()
			driver := runner.FixedRate{Rate: 100, Arrival: tt.arrival, PoissonSampler: func() float64 { return 1 }}

			out := driver.Run(context.Background(), runner.Options{
				Identities:    pool(10),
				Authenticator: auth,
				Sink:          stats,
				Duration:      time.Second,
				Concurrency:   100,
			})

			// R*D = 100, one tick of tolerance plus scheduler slack.
			if out.Dispatched < 90 || out.Dispatched > 102 {
				t.Fatalf("dispatched %d, want about 100", out.Dispatched)
			}
			if snap := stats.Snapshot(); snap.Total != out.Dispatched {
				t.Fatalf("recorded %d of %d dispatched", snap.Total, out.Dispatched)
			}
		})
	}
}

func TestFixedRateStopsOnCancel(t *testing.T) {
	auth := &fakeAuth{latency: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	out := runner.FixedRate{Rate: 50}.Run(ctx, runner.Options{
		Identities:    pool(5),
		Authenticator: auth,
		Duration:      10 * time.Second,
		Concurrency:   10,
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("driver ignored cancellation, ran %s", elapsed)
	}
	if out.Dispatched == 0 || out.Dispatched > 10 {
		t.Fatalf("unexpected dispatch count %d", out.Dispatched)
	}
}

func TestFixedRateBoundedBySlowServer(t *testing.T) {
	auth := &fakeAuth{latency: 100 * time.Millisecond}
	out := runner.FixedRate{Rate: 1000}.Run(context.Background(), runner.Options{
		Identities:    pool(5),
		Authenticator: auth,
		Duration:      200 * time.Millisecond,
		Concurrency:   2,
	})
	if auth.peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds cap", auth.peak.Load())
	}
	// Two slots for ~300ms of 100ms attempts.
	if out.Dispatched > 8 {
		t.Fatalf("gate did not throttle dispatch: %d", out.Dispatched)
	}
}
