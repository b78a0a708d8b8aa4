// Package metrics aggregates authentication attempt results for a single phase.
//
// Each phase owns one [LiveStats]. Drivers feed it through the [Sink]
// interface from many goroutines at once:
//
//	stats := metrics.NewLiveStats()
//	stats.Record(metrics.Result{Latency: 12 * time.Millisecond, Outcome: metrics.OutcomeAccept})
//
//	snap := stats.Snapshot()            // cheap, never waits on the sample lock
//	p50, p95, p99 := stats.Percentiles() // exact nearest-rank over all samples
//
// # Counters
//
// Accept, reject and error counters are independent atomics. The total is
// derived from the three loaded values, so every [Snapshot] satisfies
// Total == Accept + Reject + Errors regardless of concurrent writers.
//
// # Percentiles
//
// [LiveStats.Percentiles] copies the sample slice under the lock, sorts the
// copy and indexes it with ceil(p/100*n)-1. Arrival order never matters.
// [LiveStats.LiveP95] answers from an HDR histogram instead and is meant for
// progress lines only.
//
// # Summaries
//
// When a phase ends, [Capture] freezes its stats into a [PhaseSummary], the
// value consumed by the report generator.
package metrics
