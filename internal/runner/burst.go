package runner

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/openradius/authstorm/internal/identity"
)

// DefaultPollInterval is how often the burst driver checks its schedule.
// Wake frequency bounds dispatch granularity; at very large pools the poll
// loop itself can become the limit.
const DefaultPollInterval = 5 * time.Millisecond

// bootSegment is one component of the boot-delay mixture.
type bootSegment struct {
	weight   float64
	min, max time.Duration
}

// bootMixture models CPE reboot times after a power restore: fast, normal
// and slow devices.
var bootMixture = []bootSegment{
	{weight: 0.20, min: 5 * time.Second, max: 15 * time.Second},
	{weight: 0.50, min: 15 * time.Second, max: 45 * time.Second},
	{weight: 0.30, min: 45 * time.Second, max: 90 * time.Second},
}

type scheduledAttempt struct {
	identity identity.Identity
	delay    time.Duration
}

// Burst fires every identity exactly once at a staggered boot delay squeezed
// into the phase window.
type Burst struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
}

// Run builds the schedule, then dispatches due entries on every poll until the
// schedule is exhausted, the window elapses or ctx is canceled, and drains.
func (b Burst) Run(ctx context.Context, opt Options) Outcome {
	opt.normalize()
	if !opt.runnable() {
		return Outcome{}
	}
	poll := b.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	schedule := buildSchedule(opt.Identities, opt.Duration, opt.rng())
	d := NewDispatcher(opt)
	start := time.Now()
	next := 0

loop:
	for next < len(schedule) {
		if ctx.Err() != nil {
			break
		}
		// Every delay is within the window, so the pass at elapsed >= Duration
		// finds the remaining entries due.
		elapsed := time.Since(start)
		for next < len(schedule) && schedule[next].delay <= elapsed {
			if !d.Dispatch(ctx, schedule[next].identity) {
				break loop
			}
			next++
		}
		if elapsed >= opt.Duration {
			break
		}
		if next < len(schedule) && !sleep(ctx, poll) {
			break
		}
	}
	d.Wait()
	return d.outcome(start)
}

// buildSchedule draws a boot delay per identity, sorts ascending and
// rescales into window when the largest delay exceeds it.
func buildSchedule(ids []identity.Identity, window time.Duration, rng *rand.Rand) []scheduledAttempt {
	schedule := make([]scheduledAttempt, len(ids))
	for i, id := range ids {
		schedule[i] = scheduledAttempt{identity: id, delay: drawBootDelay(rng)}
	}
	sort.SliceStable(schedule, func(i, j int) bool {
		return schedule[i].delay < schedule[j].delay
	})
	rescale(schedule, window)
	return schedule
}

func drawBootDelay(rng *rand.Rand) time.Duration {
	roll := rng.Float64()
	seg := bootMixture[len(bootMixture)-1]
	var acc float64
	for _, s := range bootMixture {
		acc += s.weight
		if roll < acc {
			seg = s
			break
		}
	}
	span := float64(seg.max - seg.min)
	return seg.min + time.Duration(rng.Float64()*span)
}

// rescale maps a sorted schedule into window so the last delay is exactly
// window. Scaling is monotonic, so order is preserved.
func rescale(schedule []scheduledAttempt, window time.Duration) {
	if len(schedule) == 0 || window <= 0 {
		return
	}
	maxDelay := schedule[len(schedule)-1].delay
	if maxDelay <= window {
		return
	}
	scale := float64(window) / float64(maxDelay)
	for i := range schedule {
		if schedule[i].delay == maxDelay {
			schedule[i].delay = window
			continue
		}
		scaled := time.Duration(float64(schedule[i].delay) * scale)
		if scaled > window {
			scaled = window
		}
		schedule[i].delay = scaled
	}
}
