package report_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/report"
)

func phase(kind metrics.PhaseKind, total, accept, reject, errs int64, dur time.Duration) metrics.PhaseSummary {
	p := metrics.PhaseSummary{
		Name:       string(kind),
		Kind:       kind,
		Duration:   dur,
		Total:      total,
		Accept:     accept,
		Reject:     reject,
		Errors:     errs,
		DurationMs: float64(dur) / float64(time.Millisecond),
	}
	if dur > 0 {
		p.Throughput = float64(total) / dur.Seconds()
	}
	return p
}

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		pct  float64
		want report.Verdict
	}{
		{0, report.VerdictExcellent},
		{2, report.VerdictExcellent},
		{2.01, report.VerdictDegraded},
		{10, report.VerdictDegraded},
		{10.01, report.VerdictFail},
		{100, report.VerdictFail},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, report.Classify(tt.pct), "pct=%v", tt.pct)
	}
}

func TestBuildTotals(t *testing.T) {
	phases := []metrics.PhaseSummary{
		phase(metrics.PhaseSteady, 1000, 990, 10, 0, 10*time.Second),
		phase(metrics.PhaseRamp, 3000, 2900, 50, 50, 30*time.Second),
	}
	r := report.Build(phases, 5000, report.DefaultPolicy())

	assert.Equal(t, int64(4000), r.Totals.Total)
	assert.Equal(t, int64(3890), r.Totals.Accept)
	assert.Equal(t, int64(60), r.Totals.Reject)
	assert.Equal(t, int64(50), r.Totals.Errors)
	assert.Equal(t, 40*time.Second, r.Totals.Duration)
	assert.InDelta(t, 100.0, r.Totals.Throughput, 1e-9)
	assert.InDelta(t, 1.25, r.Totals.ErrorPct, 1e-9)
	assert.Equal(t, r.Totals.Total, r.Totals.Accept+r.Totals.Reject+r.Totals.Errors)
	assert.Nil(t, r.Capacity, "no peak phase, no capacity estimate")
}

func TestSteadyOnlyScenarioIsExcellent(t *testing.T) {
	r := report.Build([]metrics.PhaseSummary{
		phase(metrics.PhaseSteady, 1000, 1000, 0, 0, 10*time.Second),
	}, 1000, report.DefaultPolicy())

	assert.Equal(t, report.VerdictExcellent, r.Assessment.Verdict)
	assert.Zero(t, r.Assessment.ErrorPct)
	assert.Empty(t, r.Assessment.Remediation)
}

func TestFailVerdictRecommendsRemediation(t *testing.T) {
	r := report.Build([]metrics.PhaseSummary{
		phase(metrics.PhaseSteady, 100, 80, 0, 20, 10*time.Second),
	}, 100, report.DefaultPolicy())

	assert.Equal(t, report.VerdictFail, r.Assessment.Verdict)
	assert.NotEmpty(t, r.Assessment.Remediation)
	assert.Nil(t, r.Assessment.OutageErrorPct)
}

func TestDegradedVerdictSurfacesOutageErrors(t *testing.T) {
	r := report.Build([]metrics.PhaseSummary{
		phase(metrics.PhaseSteady, 1000, 1000, 0, 0, 10*time.Second),
		phase(metrics.PhaseOutage, 1000, 850, 0, 150, 90*time.Second),
	}, 1000, report.DefaultPolicy())

	require.Equal(t, report.VerdictDegraded, r.Assessment.Verdict)
	require.NotNil(t, r.Assessment.OutageErrorPct)
	assert.InDelta(t, 15.0, *r.Assessment.OutageErrorPct, 1e-9)
	assert.Empty(t, r.Assessment.Remediation)
}

func TestExcellentVerdictReportsPeakAndRecovery(t *testing.T) {
	r := report.Build([]metrics.PhaseSummary{
		phase(metrics.PhaseOutage, 500, 495, 5, 0, 90*time.Second),
		phase(metrics.PhasePeak, 15000, 15000, 0, 0, 30*time.Second),
	}, 500, report.DefaultPolicy())

	require.Equal(t, report.VerdictExcellent, r.Assessment.Verdict)
	require.NotNil(t, r.Assessment.PeakThroughput)
	assert.InDelta(t, 500.0, *r.Assessment.PeakThroughput, 1e-9)
	require.NotNil(t, r.Assessment.OutageAccepted)
	assert.Equal(t, int64(495), *r.Assessment.OutageAccepted)
	assert.Equal(t, int64(500), *r.Assessment.OutageTotal)
}

func TestEstimateCapacity(t *testing.T) {
	c := report.EstimateCapacity(774, 100000, report.DefaultPolicy())

	assert.InDelta(t, 129.2, c.RecoverySeconds, 0.05)
	assert.Equal(t, 5, c.Units)
	assert.Equal(t, 16000, c.DevicesPerUnit)
	assert.Equal(t, 120.0, c.RecoveryWindowSecs)
}

func TestEstimateCapacityFloorsAtOne(t *testing.T) {
	c := report.EstimateCapacity(10, 1000, report.DefaultPolicy())
	assert.Equal(t, 1, c.Units)
	assert.InDelta(t, 100.0, c.RecoverySeconds, 1e-9)
}

func TestBuildCapacityFromPeakPhase(t *testing.T) {
	peak := phase(metrics.PhasePeak, 23220, 23220, 0, 0, 30*time.Second)
	r := report.Build([]metrics.PhaseSummary{peak}, 100000, report.Policy{})

	require.NotNil(t, r.Capacity)
	assert.InDelta(t, 774.0, r.Capacity.SustainedThroughput, 1e-9)
	assert.Equal(t, 5, r.Capacity.Units)
	assert.Equal(t, math.Round(129.2*10), math.Round(r.Capacity.RecoverySeconds*10))
}

func TestBuildSkipsCapacityWithoutPeakThroughput(t *testing.T) {
	r := report.Build([]metrics.PhaseSummary{
		phase(metrics.PhasePeak, 0, 0, 0, 0, 30*time.Second),
	}, 100, report.DefaultPolicy())
	assert.Nil(t, r.Capacity)
}

func TestBuildMergesErrorBreakdown(t *testing.T) {
	a := phase(metrics.PhaseSteady, 10, 8, 0, 2, time.Second)
	a.ErrorBreakdown = map[string]int64{metrics.ErrorClassTimeout: 2}
	b := phase(metrics.PhasePeak, 10, 7, 0, 3, time.Second)
	b.ErrorBreakdown = map[string]int64{metrics.ErrorClassTimeout: 1, metrics.ErrorClassNetwork: 2}

	r := report.Build([]metrics.PhaseSummary{a, b}, 10, report.DefaultPolicy())
	assert.Equal(t, map[string]int64{metrics.ErrorClassTimeout: 3, metrics.ErrorClassNetwork: 2}, r.ErrorBreakdown)

	got, ok := r.Phase(metrics.PhasePeak)
	require.True(t, ok)
	assert.Equal(t, int64(10), got.Total)
	_, ok = r.Phase(metrics.PhaseRamp)
	assert.False(t, ok)
}
