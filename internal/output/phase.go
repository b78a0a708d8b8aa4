package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openradius/authstorm/internal/metrics"
)

const ruleWidth = 74

// PhaseHeader introduces a phase before it runs.
type PhaseHeader struct {
	Index int
	Title string
	Lines []string
}

// PrintPhaseHeader prints the rule line and the scenario description.
func PrintPhaseHeader(w io.Writer, h PhaseHeader) {
	title := fmt.Sprintf("━━━ Phase %d: %s ", h.Index, h.Title)
	pad := ruleWidth - len([]rune(title))
	if pad < 3 {
		pad = 3
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, title+strings.Repeat("━", pad))
	for _, l := range h.Lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
}

// PrintPhaseResult prints the block that closes a phase.
func PrintPhaseResult(w io.Writer, s metrics.PhaseSummary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "┌─ %s %s\n", s.Name, strings.Repeat("─", 50))
	fmt.Fprintf(w, "│  Duration:   %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "│  Requests:   %d total  │  ✓ %d accept  │  ✗ %d reject  │  ⚠ %d error (%.1f%%)\n",
		s.Total, s.Accept, s.Reject, s.Errors, s.ErrorPct())
	fmt.Fprintf(w, "│  Latency:    avg=%.1fms  max=%.1fms\n", s.AvgLatencyMs, s.MaxLatencyMs)
	fmt.Fprintf(w, "│  Percentile: p50=%s  p95=%s  p99=%s\n", FormatLatency(s.P50), FormatLatency(s.P95), FormatLatency(s.P99))
	fmt.Fprintf(w, "│  Throughput: %.1f req/sec\n", s.Throughput)
	if rows := metrics.FlattenErrorBuckets(s.ErrorBreakdown); len(rows) > 0 {
		fmt.Fprintln(w, "│  Errors:")
		writeErrorBuckets(w, rows, "│    ")
	}
	fmt.Fprintln(w, "└"+strings.Repeat("─", ruleWidth-8))
}

// FormatLatency renders a latency with a unit suited to its magnitude.
func FormatLatency(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func writeErrorBuckets(w io.Writer, rows []metrics.ErrorBucket, indent string) {
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s: %d\n", indent, metrics.FriendlyErrorName(row.Class), row.Count)
	}
}
