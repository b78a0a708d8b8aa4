package metrics

import "time"

// PhaseKind identifies the scenario a phase simulates.
type PhaseKind string

const (
	PhaseSteady PhaseKind = "steady"
	PhaseRamp   PhaseKind = "ramp"
	PhaseOutage PhaseKind = "outage"
	PhasePeak   PhaseKind = "peak"
)

// PhaseSummary is the immutable result of one finished phase.
type PhaseSummary struct {
	Name           string           `json:"name"`
	Kind           PhaseKind        `json:"kind"`
	Duration       time.Duration    `json:"-"`
	Total          int64            `json:"total"`
	Accept         int64            `json:"accept"`
	Reject         int64            `json:"reject"`
	Errors         int64            `json:"errors"`
	AvgLatency     time.Duration    `json:"-"`
	MaxLatency     time.Duration    `json:"-"`
	P50            time.Duration    `json:"-"`
	P95            time.Duration    `json:"-"`
	P99            time.Duration    `json:"-"`
	Throughput     float64          `json:"throughput"`
	ErrorBreakdown map[string]int64 `json:"error_breakdown,omitempty"`

	// JSON-friendly millisecond fields.
	DurationMs   float64 `json:"duration_ms"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`
	P50Ms        float64 `json:"p50_ms"`
	P95Ms        float64 `json:"p95_ms"`
	P99Ms        float64 `json:"p99_ms"`
}

// ErrorPct returns the phase error percentage.
func (p PhaseSummary) ErrorPct() float64 {
	return percentOf(p.Errors, p.Total)
}

// Capture freezes a phase's stats. Throughput is attempts over wall duration.
func Capture(name string, kind PhaseKind, stats *LiveStats, dur time.Duration) PhaseSummary {
	snap := stats.Snapshot()
	p50, p95, p99 := stats.Percentiles()

	sum := PhaseSummary{
		Name:           name,
		Kind:           kind,
		Duration:       dur,
		Total:          snap.Total,
		Accept:         snap.Accept,
		Reject:         snap.Reject,
		Errors:         snap.Errors,
		AvgLatency:     snap.AvgLatency,
		MaxLatency:     snap.MaxLatency,
		P50:            p50,
		P95:            p95,
		P99:            p99,
		ErrorBreakdown: stats.ErrorBreakdown(),
	}
	if dur > 0 {
		sum.Throughput = float64(snap.Total) / dur.Seconds()
	}

	sum.DurationMs = toMs(dur)
	sum.AvgLatencyMs = toMs(sum.AvgLatency)
	sum.MaxLatencyMs = toMs(sum.MaxLatency)
	sum.P50Ms = toMs(p50)
	sum.P95Ms = toMs(p95)
	sum.P99Ms = toMs(p99)
	return sum
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
