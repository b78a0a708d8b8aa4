package runner

import (
	"context"
	"testing"
	"time"
)

func TestRampIntervalEndpoints(t *testing.T) {
	plan := rampPlan{fromRate: 50, toRate: 1000, duration: 30 * time.Second}

	if got, want := plan.intervalAt(0), time.Second/50; got != want {
		t.Fatalf("interval at start = %s, want %s", got, want)
	}
	if got, want := plan.intervalAt(30*time.Second), time.Second/1000; got != want {
		t.Fatalf("interval at end = %s, want %s", got, want)
	}
	if got := plan.rateAt(15 * time.Second); got != 525 {
		t.Fatalf("rate at midpoint = %f, want 525", got)
	}
}

func TestRampRateFlooredAtOne(t *testing.T) {
	plan := rampPlan{fromRate: 0, toRate: 0, duration: time.Second}
	if got := plan.intervalAt(500 * time.Millisecond); got != time.Second {
		t.Fatalf("interval = %s, want 1s", got)
	}
}

func TestRampDownward(t *testing.T) {
	plan := rampPlan{fromRate: 100, toRate: 10, duration: 10 * time.Second}
	if got := plan.rateAt(5 * time.Second); got != 55 {
		t.Fatalf("rate = %f, want 55", got)
	}
	if got := plan.rateAt(20 * time.Second); got != 10 {
		t.Fatalf("rate past end = %f, want 10", got)
	}
}

func TestRampDispatchCountTracksIntegral(t *testing.T) {
	auth := &fakeCounter{}
	out := Ramp{StartRate: 20, EndRate: 180}.Run(context.Background(), Options{
		Identities:    testPool(4),
		Authenticator: auth,
		Duration:      time.Second,
		Concurrency:   50,
	})
	// Mean rate 100/s over 1s; sleeps add overhead so allow a wide band.
	if out.Dispatched < 50 || out.Dispatched > 110 {
		t.Fatalf("dispatched %d, want roughly 100", out.Dispatched)
	}
	if auth.calls.Load() != out.Dispatched {
		t.Fatalf("calls %d != dispatched %d", auth.calls.Load(), out.Dispatched)
	}
}
