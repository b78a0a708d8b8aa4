package dashboard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/scenario"
)

func newTestDashboard() *Dashboard {
	d := &Dashboard{
		cfg:       RunConfig{Server: "127.0.0.1:1812", Identities: 100, Phases: 4},
		startTime: time.Now(),
	}
	d.initWidgets()
	return d
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		total    time.Duration
		expected int
	}{
		{"start", 0, time.Minute, 0},
		{"half", 30 * time.Second, time.Minute, 50},
		{"overrun", 2 * time.Minute, time.Minute, 100},
		{"no duration", time.Second, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := progressPercent(tt.elapsed, tt.total); got != tt.expected {
				t.Errorf("progressPercent() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestAppendHistoryBounded(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+20; i++ {
		h = appendHistory(h, float64(i))
	}
	if len(h) != historySize {
		t.Fatalf("expected %d entries, got %d", historySize, len(h))
	}
	if h[len(h)-1] != float64(historySize+19) {
		t.Errorf("expected newest value last, got %v", h[len(h)-1])
	}
}

func TestFormatErrorRows(t *testing.T) {
	rows := formatErrorRows(map[string]int64{
		metrics.ErrorClassTimeout: 5,
		metrics.ErrorClassNetwork: 1,
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !strings.Contains(rows[0], "5") {
		t.Errorf("expected largest bucket first, got %s", rows[0])
	}

	empty := formatErrorRows(nil)
	if len(empty) != 1 || !strings.Contains(empty[0], "No errors") {
		t.Errorf("unexpected empty rows %v", empty)
	}
}

func TestFormatRunParams(t *testing.T) {
	got := formatRunParams(RunConfig{SteadyRate: 50, PeakRate: 1000, Arrival: "poisson", Retries: 2})
	for _, want := range []string{"50 → 1000/s", "Arrival: poisson", "Retries: 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatRunParams() = %q, missing %q", got, want)
		}
	}
	if strings.Contains(formatRunParams(RunConfig{Arrival: "uniform"}), "Arrival") {
		t.Error("default arrival model should not be shown")
	}
}

func TestListenerTracksPhases(t *testing.T) {
	d := newTestDashboard()
	stats := metrics.NewLiveStats()
	stats.Record(metrics.Result{Outcome: metrics.OutcomeAccept, Latency: 2 * time.Millisecond})
	stats.Record(metrics.Result{Outcome: metrics.OutcomeError, Latency: time.Second, Err: context.DeadlineExceeded})

	phase := scenario.Phase{Name: "STEADY STATE", Label: "STEADY", Kind: metrics.PhaseSteady, Duration: time.Minute}
	d.OnPhaseStart(phase, stats)
	d.update()

	if !strings.Contains(d.summaryPara.Text, "1/4 STEADY STATE") {
		t.Errorf("summary missing phase: %q", d.summaryPara.Text)
	}
	if !strings.Contains(d.countsPara.Text, "Sent:      2") {
		t.Errorf("counts not updated: %q", d.countsPara.Text)
	}
	if len(d.errorList.Rows) != 1 || strings.Contains(d.errorList.Rows[0], "No errors") {
		t.Errorf("expected one error row, got %v", d.errorList.Rows)
	}

	d.OnPhaseEnd(phase, metrics.Capture(phase.Name, phase.Kind, stats, time.Second))
	if len(d.phaseList.Rows) != 1 || !strings.Contains(d.phaseList.Rows[0], "STEADY STATE") {
		t.Errorf("completed phases = %v", d.phaseList.Rows)
	}

	d.OnPhaseStart(scenario.Phase{Name: "RAMP UP", Kind: metrics.PhaseRamp}, metrics.NewLiveStats())
	if d.phaseIndex != 2 || len(d.rates) != 0 {
		t.Errorf("phase switch did not reset state: index=%d rates=%d", d.phaseIndex, len(d.rates))
	}
}
