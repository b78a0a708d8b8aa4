// Package report turns phase summaries into the final run report: a table
// row per phase, totals, a three-tier verdict and a capacity estimate.
package report

import (
	"math"
	"time"

	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/radclient"
)

// Verdict thresholds on the overall error percentage.
const (
	FailAbovePct     = 10.0
	DegradedAbovePct = 2.0
)

// Verdict classifies the run.
type Verdict string

const (
	VerdictExcellent Verdict = "EXCELLENT"
	VerdictDegraded  Verdict = "DEGRADED"
	VerdictFail      Verdict = "FAIL"
)

// Policy holds the deployment constants behind the capacity estimate.
type Policy struct {
	DevicesPerUnit int
	RecoveryWindow time.Duration
}

// DefaultPolicy is 16000 subscribers per access unit with a two-minute
// recovery window.
func DefaultPolicy() Policy {
	return Policy{DevicesPerUnit: 16000, RecoveryWindow: 2 * time.Minute}
}

// Totals sums every phase.
type Totals struct {
	Total      int64         `json:"total"`
	Accept     int64         `json:"accept"`
	Reject     int64         `json:"reject"`
	Errors     int64         `json:"errors"`
	Duration   time.Duration `json:"-"`
	DurationMs float64       `json:"duration_ms"`
	Throughput float64       `json:"throughput"`
	ErrorPct   float64       `json:"error_pct"`
}

// Assessment is the verdict plus the lines that justify it.
type Assessment struct {
	Verdict     Verdict  `json:"verdict"`
	ErrorPct    float64  `json:"error_pct"`
	Remediation []string `json:"remediation,omitempty"`
	// OutageErrorPct is set for Degraded runs that include an outage phase.
	OutageErrorPct *float64 `json:"outage_error_pct,omitempty"`
	// PeakThroughput and outage recovery are set for Excellent runs.
	PeakThroughput *float64 `json:"peak_throughput,omitempty"`
	OutageAccepted *int64   `json:"outage_accepted,omitempty"`
	OutageTotal    *int64   `json:"outage_total,omitempty"`
	OutageDuration float64  `json:"outage_duration_ms,omitempty"`
}

// Capacity estimates how the measured sustained rate translates to fleet size.
type Capacity struct {
	SustainedThroughput float64       `json:"sustained_throughput"`
	Identities          int           `json:"identities"`
	Recovery            time.Duration `json:"-"`
	RecoverySeconds     float64       `json:"recovery_seconds"`
	Units               int           `json:"units"`
	DevicesPerUnit      int           `json:"devices_per_unit"`
	RecoveryWindowSecs  float64       `json:"recovery_window_seconds"`
}

// Report is the complete result of a run.
type Report struct {
	RunID          string                     `json:"run_id,omitempty"`
	Server         string                     `json:"server,omitempty"`
	Identities     int                        `json:"identities"`
	Phases         []metrics.PhaseSummary     `json:"phases"`
	Totals         Totals                     `json:"totals"`
	Assessment     Assessment                 `json:"assessment"`
	Capacity       *Capacity                  `json:"capacity,omitempty"`
	ErrorBreakdown map[string]int64           `json:"error_breakdown,omitempty"`
	Packets        *radclient.CounterSnapshot `json:"packets,omitempty"`
	Interrupted    bool                       `json:"interrupted,omitempty"`
}

var failRemediation = []string{
	"Raise the server's worker thread pool",
	"Raise the backing store's max_connections",
	"Enable connection pooling between the server and its store (32+ connections)",
}

// Build assembles the report from the phases that ran. identityCount is the
// size of the catalog under test.
func Build(phases []metrics.PhaseSummary, identityCount int, policy Policy) Report {
	if policy.DevicesPerUnit <= 0 || policy.RecoveryWindow <= 0 {
		policy = DefaultPolicy()
	}
	r := Report{
		Identities: identityCount,
		Phases:     phases,
		Totals:     sumPhases(phases),
	}
	breakdowns := make([]map[string]int64, 0, len(phases))
	for _, p := range phases {
		breakdowns = append(breakdowns, p.ErrorBreakdown)
	}
	r.ErrorBreakdown = metrics.MergeErrorBuckets(breakdowns...)

	outage := findPhase(phases, metrics.PhaseOutage)
	peak := findPhase(phases, metrics.PhasePeak)
	r.Assessment = assess(r.Totals.ErrorPct, outage, peak)
	if peak != nil && peak.Throughput > 0 {
		c := EstimateCapacity(peak.Throughput, identityCount, policy)
		r.Capacity = &c
	}
	return r
}

func sumPhases(phases []metrics.PhaseSummary) Totals {
	var t Totals
	for _, p := range phases {
		t.Total += p.Total
		t.Accept += p.Accept
		t.Reject += p.Reject
		t.Errors += p.Errors
		t.Duration += p.Duration
	}
	if t.Duration > 0 {
		t.Throughput = float64(t.Total) / t.Duration.Seconds()
	}
	if t.Total > 0 {
		t.ErrorPct = float64(t.Errors) / float64(t.Total) * 100
	}
	t.DurationMs = float64(t.Duration) / float64(time.Millisecond)
	return t
}

// Classify maps an overall error percentage to a verdict.
func Classify(errorPct float64) Verdict {
	switch {
	case errorPct > FailAbovePct:
		return VerdictFail
	case errorPct > DegradedAbovePct:
		return VerdictDegraded
	default:
		return VerdictExcellent
	}
}

func assess(errorPct float64, outage, peak *metrics.PhaseSummary) Assessment {
	a := Assessment{Verdict: Classify(errorPct), ErrorPct: errorPct}
	switch a.Verdict {
	case VerdictFail:
		a.Remediation = append([]string(nil), failRemediation...)
	case VerdictDegraded:
		if outage != nil {
			pct := outage.ErrorPct()
			a.OutageErrorPct = &pct
		}
	case VerdictExcellent:
		if peak != nil {
			tp := peak.Throughput
			a.PeakThroughput = &tp
		}
		if outage != nil {
			accepted, total := outage.Accept, outage.Total
			a.OutageAccepted = &accepted
			a.OutageTotal = &total
			a.OutageDuration = outage.DurationMs
		}
	}
	return a
}

// EstimateCapacity computes the full-catalog re-authentication time and the
// number of access units the measured rate supports, at least one.
func EstimateCapacity(sustained float64, identityCount int, policy Policy) Capacity {
	c := Capacity{
		SustainedThroughput: sustained,
		Identities:          identityCount,
		DevicesPerUnit:      policy.DevicesPerUnit,
		RecoveryWindowSecs:  policy.RecoveryWindow.Seconds(),
	}
	if sustained <= 0 {
		c.Units = 1
		return c
	}
	c.RecoverySeconds = float64(identityCount) / sustained
	c.Recovery = time.Duration(c.RecoverySeconds * float64(time.Second))
	c.Units = int(math.Floor(sustained * policy.RecoveryWindow.Seconds() / float64(policy.DevicesPerUnit)))
	if c.Units < 1 {
		c.Units = 1
	}
	return c
}

// Phase returns the summary of the given kind, if it ran.
func (r Report) Phase(kind metrics.PhaseKind) (metrics.PhaseSummary, bool) {
	if p := findPhase(r.Phases, kind); p != nil {
		return *p, true
	}
	return metrics.PhaseSummary{}, false
}

func findPhase(phases []metrics.PhaseSummary, kind metrics.PhaseKind) *metrics.PhaseSummary {
	for i := range phases {
		if phases[i].Kind == kind {
			return &phases[i]
		}
	}
	return nil
}
