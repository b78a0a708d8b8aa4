package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/openradius/authstorm/internal/metrics"
)

// DefaultProgressInterval is the live line cadence.
const DefaultProgressInterval = 2 * time.Second

// ProgressReporter prints a live line for the running phase on every tick.
type ProgressReporter struct {
	stats    *metrics.LiveStats
	label    string
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
	lastSent int64
}

// NewProgressReporter creates a progress reporter for one phase's stats.
func NewProgressReporter(stats *metrics.LiveStats, label string, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressReporter{
		stats:    stats,
		label:    label,
		interval: interval,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	p.start = time.Now()
	p.ticker = time.NewTicker(p.interval)
	go p.run()
}

// Stop halts progress updates and waits for the last line to be written.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprintln(p.writer, p.line(time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

// line renders one snapshot. The instantaneous rate is the delta since the
// previous tick.
func (p *ProgressReporter) line(elapsed time.Duration) string {
	snap := p.stats.Snapshot()
	delta := snap.Total - p.lastSent
	p.lastSent = snap.Total
	rate := float64(delta) / p.interval.Seconds()

	return fmt.Sprintf("  [%-6s +%s] %d sent (%.0f/s) │ ✓%d ✗%d ⚠%d (%.1f%%) │ avg=%.1fms max=%.1fms p95≈%s",
		p.label, elapsed.Round(time.Second), snap.Total, rate,
		snap.Accept, snap.Reject, snap.Errors, snap.ErrorPct(),
		snap.AvgMs(), snap.MaxMs(), FormatLatency(p.stats.LiveP95()))
}
