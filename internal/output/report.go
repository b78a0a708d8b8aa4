package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/report"
	"github.com/openradius/authstorm/internal/threshold"
)

// RunInfo describes the run for the banner.
type RunInfo struct {
	RunID       string
	Server      string
	Identities  int
	Steady      time.Duration
	Ramp        time.Duration
	Outage      time.Duration
	Peak        time.Duration
	SteadyRate  float64
	PeakRate    float64
	Arrival     string
	Concurrency [4]int
}

// PrintBanner prints the run header.
func PrintBanner(w io.Writer, info RunInfo) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔"+strings.Repeat("═", ruleWidth)+"╗")
	fmt.Fprintf(w, "║ %-*s║\n", ruleWidth-1, "authstorm: RADIUS authentication load test")
	if info.RunID != "" {
		fmt.Fprintf(w, "║ %-*s║\n", ruleWidth-1, "run "+info.RunID)
	}
	fmt.Fprintln(w, "╚"+strings.Repeat("═", ruleWidth)+"╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Target:     %s\n", info.Server)
	fmt.Fprintf(w, "  Identities: %d\n", info.Identities)
	fmt.Fprintf(w, "  Phases:     steady=%s  ramp=%s  outage=%s  peak=%s\n", info.Steady, info.Ramp, info.Outage, info.Peak)
	fmt.Fprintf(w, "  Rates:      steady=%.0f/s  peak=%.0f/s  arrival=%s\n", info.SteadyRate, info.PeakRate, info.Arrival)
	fmt.Fprintf(w, "  In flight:  %d / %d / %d / %d\n", info.Concurrency[0], info.Concurrency[1], info.Concurrency[2], info.Concurrency[3])
}

// PrintReport outputs the final human-readable report.
func PrintReport(w io.Writer, r report.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔"+strings.Repeat("═", ruleWidth)+"╗")
	fmt.Fprintf(w, "║ %-*s║\n", ruleWidth-1, "LOAD TEST REPORT")
	fmt.Fprintln(w, "╚"+strings.Repeat("═", ruleWidth)+"╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Subscriber base: %d identities\n", r.Identities)
	if r.Interrupted {
		fmt.Fprintln(w, "  Run interrupted: remaining phases were skipped")
	}
	fmt.Fprintln(w)

	rule := "  " + strings.Repeat("─", ruleWidth-1)
	fmt.Fprintf(w, "  %-22s %8s %8s %6s %8s %8s %8s %8s\n",
		"PHASE", "REQS", "RPS", "ERR%", "AVG", "P50", "P95", "P99")
	fmt.Fprintln(w, rule)
	for _, p := range r.Phases {
		fmt.Fprintf(w, "  %-22s %8d %8.0f %5.1f%% %8s %8s %8s %8s\n",
			p.Name, p.Total, p.Throughput, p.ErrorPct(),
			FormatLatency(p.AvgLatency), FormatLatency(p.P50), FormatLatency(p.P95), FormatLatency(p.P99))
	}
	fmt.Fprintln(w, rule)
	t := r.Totals
	fmt.Fprintf(w, "  %-22s %8d %8.0f %5.1f%%\n", "TOTAL", t.Total, t.Throughput, t.ErrorPct)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  ✓ Accept:  %d  │  ✗ Reject:  %d  │  ⚠ Error:  %d\n", t.Accept, t.Reject, t.Errors)
	fmt.Fprintf(w, "  Total time: %s\n", t.Duration.Round(time.Second))

	if rows := metrics.FlattenErrorBuckets(r.ErrorBreakdown); len(rows) > 0 {
		fmt.Fprintln(w, "\n  Error Breakdown:")
		writeErrorBuckets(w, rows, "    ")
	}
	if r.Packets != nil {
		pk := r.Packets
		fmt.Fprintf(w, "\n  Packets: %d sent (%d bytes)  │  %d received (%d bytes)  │  %d lost\n",
			pk.PacketsSent, pk.BytesSent, pk.PacketsReceived, pk.BytesReceived, pk.Lost())
	}
	fmt.Fprintln(w)

	printVerdict(w, r)
}

func printVerdict(w io.Writer, r report.Report) {
	a := r.Assessment
	fmt.Fprintln(w, "  ┌─ VERDICT "+strings.Repeat("─", ruleWidth-12))
	switch a.Verdict {
	case report.VerdictFail:
		fmt.Fprintf(w, "  │  ❌ FAIL: error rate %.1f%% is above %.0f%%. The server cannot handle this scale.\n", a.ErrorPct, report.FailAbovePct)
		fmt.Fprintln(w, "  │  Recommendations:")
		for _, rec := range a.Remediation {
			fmt.Fprintf(w, "  │    • %s\n", rec)
		}
	case report.VerdictDegraded:
		fmt.Fprintf(w, "  │  ⚠️  DEGRADED: %.1f%% errors, some timeouts under heavy load.\n", a.ErrorPct)
		if a.OutageErrorPct != nil {
			fmt.Fprintf(w, "  │  Outage recovery: %.1f%% error rate\n", *a.OutageErrorPct)
		}
		fmt.Fprintln(w, "  │  May need tuning for mass-reconnect scenarios.")
	default:
		fmt.Fprintln(w, "  │  🚀 EXCELLENT: handles every simulated scenario.")
		if a.PeakThroughput != nil {
			fmt.Fprintf(w, "  │  Sustained peak: %.0f req/sec with <%.0f%% errors\n", *a.PeakThroughput, report.DegradedAbovePct)
		}
		if a.OutageAccepted != nil && a.OutageTotal != nil {
			dur := time.Duration(a.OutageDuration * float64(time.Millisecond))
			fmt.Fprintf(w, "  │  Outage recovery: %d/%d identities re-authenticated in %s\n",
				*a.OutageAccepted, *a.OutageTotal, dur.Round(time.Second))
		}
	}

	if c := r.Capacity; c != nil {
		fmt.Fprintln(w, "  │")
		fmt.Fprintln(w, "  │  📊 Capacity estimate:")
		fmt.Fprintf(w, "  │     Sustained: %.0f auth/sec\n", c.SustainedThroughput)
		fmt.Fprintf(w, "  │     Full %d-identity re-auth: ~%.0fs (%.1f min)\n",
			c.Identities, c.RecoverySeconds, c.RecoverySeconds/60)
		fmt.Fprintf(w, "  │     Access units supported: ~%d (at %d subscribers each, %.0fs recovery)\n",
			c.Units, c.DevicesPerUnit, c.RecoveryWindowSecs)
	}
	fmt.Fprintln(w, "  └"+strings.Repeat("─", ruleWidth-2))
}

// PrintThresholds prints one line per evaluated threshold.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	passed := 0
	for _, r := range results {
		if r.Pass {
			passed++
		}
	}
	fmt.Fprintf(w, "\n  Thresholds (%d/%d passed):\n", passed, len(results))
	for _, r := range results {
		fmt.Fprintf(w, "    %s\n", r.Message)
	}
}

// ThresholdResultJSON is the serialized form of a threshold result.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Phase     string  `json:"phase,omitempty"`
	Aggregate string  `json:"aggregate"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// ThresholdSummary counts passed and failed thresholds.
type ThresholdSummary struct {
	Total   int                   `json:"total"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Results []ThresholdResultJSON `json:"results"`
}

// SummarizeThresholds converts results for serialization; nil when empty.
func SummarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	s := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		s.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Phase:     string(tr.Threshold.Phase),
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

type jsonReport struct {
	report.Report
	Thresholds *ThresholdSummary `json:"thresholds,omitempty"`
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r report.Report, results []threshold.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Report: r, Thresholds: SummarizeThresholds(results)})
}
