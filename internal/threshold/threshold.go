// Package threshold evaluates pass/fail assertions against a finished run.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/report"
)

// Metric names.
const (
	MetricDuration = "auth_duration"
	MetricErrors   = "auth_errors"
	MetricRejects  = "auth_rejects"
	MetricRequests = "auth_requests"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string            // e.g., "auth_duration", "auth_errors"
	Phase     metrics.PhaseKind // empty means the whole run
	Aggregate string            // e.g., "p95", "p99", "avg", "max", "rate"
	Operator  string            // e.g., "<", "<=", ">", ">=", "=="
	Value     float64           // The threshold value to compare against
	Raw       string            // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against a run report.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the report.
func (e *Evaluator) Evaluate(r report.Report) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, r))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, r report.Report) Result {
	actual, err := extractMetricValue(t, r)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+)(?:\{([a-z]+)\})?:([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "auth_duration:p95 < 50"          (latency percentile in ms, worst phase)
// - "auth_duration{peak}:p99 < 200"   (latency percentile in ms, one phase)
// - "auth_duration:avg < 20"          (average latency in ms)
// - "auth_errors:pct < 2"             (error percentage)
// - "auth_errors:rate < 0.01"         (error rate as decimal)
// - "auth_rejects:count == 0"         (reject count)
// - "auth_requests{peak}:rate > 700"  (attempts per second)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric[{phase}]:aggregate operator value, e.g., 'auth_duration:p95 < 50')", s)
	}

	metric := matches[1]
	phase := metrics.PhaseKind(matches[2])
	aggregate := matches[3]
	operator := matches[4]
	valueStr := matches[5]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: auth_duration, auth_errors, auth_rejects, auth_requests)", metric)
	}
	if phase != "" && !isValidPhase(phase) {
		return Threshold{}, fmt.Errorf("unsupported phase: %q (supported: steady, ramp, outage, peak)", phase)
	}
	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p95, p99, avg, max, rate, pct, count)", aggregate)
	}
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Phase:     phase,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func isValidMetric(metric string) bool {
	valid := []string{MetricDuration, MetricErrors, MetricRejects, MetricRequests}
	for _, v := range valid {
		if metric == v {
			return true
		}
	}
	return false
}

func isValidPhase(kind metrics.PhaseKind) bool {
	valid := []metrics.PhaseKind{metrics.PhaseSteady, metrics.PhaseRamp, metrics.PhaseOutage, metrics.PhasePeak}
	for _, v := range valid {
		if kind == v {
			return true
		}
	}
	return false
}

func isValidAggregate(aggregate string) bool {
	valid := []string{"p50", "p95", "p99", "avg", "max", "rate", "pct", "count"}
	for _, v := range valid {
		if aggregate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

// scope is the slice of the report a threshold looks at.
type scope struct {
	phases     []metrics.PhaseSummary
	total      int64
	rejects    int64
	errors     int64
	throughput float64
}

func scopeFor(t Threshold, r report.Report) (scope, error) {
	if t.Phase == "" {
		return scope{
			phases:     r.Phases,
			total:      r.Totals.Total,
			rejects:    r.Totals.Reject,
			errors:     r.Totals.Errors,
			throughput: r.Totals.Throughput,
		}, nil
	}
	p, ok := r.Phase(t.Phase)
	if !ok {
		return scope{}, fmt.Errorf("phase %q did not run", t.Phase)
	}
	return scope{
		phases:     []metrics.PhaseSummary{p},
		total:      p.Total,
		rejects:    p.Reject,
		errors:     p.Errors,
		throughput: p.Throughput,
	}, nil
}

func extractMetricValue(t Threshold, r report.Report) (float64, error) {
	s, err := scopeFor(t, r)
	if err != nil {
		return 0, err
	}
	switch t.Metric {
	case MetricDuration:
		return extractLatencyMetric(t.Aggregate, s)
	case MetricErrors:
		return extractCountMetric(MetricErrors, t.Aggregate, s.errors, s.total)
	case MetricRejects:
		return extractCountMetric(MetricRejects, t.Aggregate, s.rejects, s.total)
	case MetricRequests:
		return extractRequestMetric(t.Aggregate, s)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

// extractLatencyMetric reports the worst phase for percentiles and max, and
// the attempt-weighted mean for avg.
func extractLatencyMetric(aggregate string, s scope) (float64, error) {
	var worst func(metrics.PhaseSummary) float64
	switch aggregate {
	case "p50":
		worst = func(p metrics.PhaseSummary) float64 { return p.P50Ms }
	case "p95":
		worst = func(p metrics.PhaseSummary) float64 { return p.P95Ms }
	case "p99":
		worst = func(p metrics.PhaseSummary) float64 { return p.P99Ms }
	case "max":
		worst = func(p metrics.PhaseSummary) float64 { return p.MaxLatencyMs }
	case "avg":
		var sum float64
		var n int64
		for _, p := range s.phases {
			sum += p.AvgLatencyMs * float64(p.Total)
			n += p.Total
		}
		if n == 0 {
			return 0, nil
		}
		return sum / float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s", aggregate, MetricDuration)
	}
	var v float64
	for _, p := range s.phases {
		v = math.Max(v, worst(p))
	}
	return v, nil
}

func extractCountMetric(metric, aggregate string, count, total int64) (float64, error) {
	switch aggregate {
	case "count":
		return float64(count), nil
	case "rate":
		if total == 0 {
			return 0, nil
		}
		return float64(count) / float64(total), nil
	case "pct":
		if total == 0 {
			return 0, nil
		}
		return float64(count) / float64(total) * 100, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count', 'rate' or 'pct')", aggregate, metric)
	}
}

func extractRequestMetric(aggregate string, s scope) (float64, error) {
	switch aggregate {
	case "count":
		return float64(s.total), nil
	case "rate":
		return s.throughput, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count' or 'rate')", aggregate, MetricRequests)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
