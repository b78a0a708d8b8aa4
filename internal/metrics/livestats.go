package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LiveStats is the per-phase aggregate. It is safe for concurrent use.
type LiveStats struct {
	accept atomic.Int64
	reject atomic.Int64
	errs   atomic.Int64
	latSum atomic.Int64 // nanoseconds
	latMax atomic.Int64 // nanoseconds

	mu            sync.Mutex
	samples       []time.Duration
	hist          *hdrhistogram.Histogram
	errorsByClass map[string]int64
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Total      int64
	Accept     int64
	Reject     int64
	Errors     int64
	AvgLatency time.Duration
	MaxLatency time.Duration
}

// AvgMs returns the mean latency in milliseconds.
func (s Snapshot) AvgMs() float64 {
	return float64(s.AvgLatency) / float64(time.Millisecond)
}

// MaxMs returns the maximum latency in milliseconds.
func (s Snapshot) MaxMs() float64 {
	return float64(s.MaxLatency) / float64(time.Millisecond)
}

// ErrorPct returns errors as a percentage of all attempts.
func (s Snapshot) ErrorPct() float64 {
	return percentOf(s.Errors, s.Total)
}

func NewLiveStats() *LiveStats {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &LiveStats{
		hist:          hdrhistogram.New(1, 60_000_000, 3),
		errorsByClass: make(map[string]int64),
	}
}

// Record folds one attempt into the aggregate.
func (s *LiveStats) Record(r Result) {
	lat := r.Latency
	if lat < 0 {
		lat = 0
	}
	ns := int64(lat)

	s.latSum.Add(ns)
	for {
		cur := s.latMax.Load()
		if ns <= cur || s.latMax.CompareAndSwap(cur, ns) {
			break
		}
	}

	s.mu.Lock()
	s.samples = append(s.samples, lat)
	if s.hist != nil {
		v := lat.Microseconds()
		if v < s.hist.LowestTrackableValue() {
			v = s.hist.LowestTrackableValue()
		}
		if v > s.hist.HighestTrackableValue() {
			v = s.hist.HighestTrackableValue()
		}
		_ = s.hist.RecordValue(v)
	}
	if r.Outcome == OutcomeError {
		if s.errorsByClass == nil {
			s.errorsByClass = make(map[string]int64)
		}
		s.errorsByClass[ClassifyError(r.Err)]++
	}
	s.mu.Unlock()

	// Counters last so a snapshot never reports an attempt whose sample is missing.
	switch r.Outcome {
	case OutcomeAccept:
		s.accept.Add(1)
	case OutcomeReject:
		s.reject.Add(1)
	default:
		s.errs.Add(1)
	}
}

// Snapshot reads the counters without touching the sample lock.
func (s *LiveStats) Snapshot() Snapshot {
	snap := Snapshot{
		Accept: s.accept.Load(),
		Reject: s.reject.Load(),
		Errors: s.errs.Load(),
	}
	snap.Total = snap.Accept + snap.Reject + snap.Errors
	if snap.Total > 0 {
		snap.AvgLatency = time.Duration(s.latSum.Load() / snap.Total)
	}
	snap.MaxLatency = time.Duration(s.latMax.Load())
	return snap
}

// Percentiles returns the nearest-rank p50, p95 and p99 over every sample
// recorded so far. All three are zero when nothing was recorded.
func (s *LiveStats) Percentiles() (p50, p95, p99 time.Duration) {
	s.mu.Lock()
	sorted := make([]time.Duration, len(s.samples))
	copy(sorted, s.samples)
	s.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return Percentile(sorted, 50), Percentile(sorted, 95), Percentile(sorted, 99)
}

// LiveP95 answers from the histogram. Values are approximate (3 significant
// figures) and only meant for progress output.
func (s *LiveStats) LiveP95() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hist == nil || s.hist.TotalCount() == 0 {
		return 0
	}
	return time.Duration(s.hist.ValueAtQuantile(95)) * time.Microsecond
}

// ErrorBreakdown returns a copy of error counts keyed by class.
func (s *LiveStats) ErrorBreakdown() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errorsByClass) == 0 {
		return nil
	}
	out := make(map[string]int64, len(s.errorsByClass))
	for k, v := range s.errorsByClass {
		out[k] = v
	}
	return out
}

// Percentile indexes an ascending slice at ceil(pct/100*n)-1, clamped to the
// slice bounds.
func Percentile(sorted []time.Duration, pct float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(pct/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func percentOf(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
