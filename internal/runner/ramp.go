package runner

import (
	"context"
	"time"
)

// minRampRate floors the interpolated rate so the interval stays bounded.
const minRampRate = 1.0

// Ramp moves the instantaneous rate linearly from StartRate to EndRate over
// the phase. The attempt count is a function of time, not a fixed number.
type Ramp struct {
	StartRate float64
	EndRate   float64
}

type rampPlan struct {
	fromRate float64
	toRate   float64
	duration time.Duration
}

func (p rampPlan) rateAt(elapsed time.Duration) float64 {
	if p.duration <= 0 {
		return p.toRate
	}
	if elapsed < 0 {
		elapsed = 0
	}
	progress := float64(elapsed) / float64(p.duration)
	if progress > 1 {
		progress = 1
	}
	r := p.fromRate + (p.toRate-p.fromRate)*progress
	if r < minRampRate {
		r = minRampRate
	}
	return r
}

func (p rampPlan) intervalAt(elapsed time.Duration) time.Duration {
	return time.Duration(float64(time.Second) / p.rateAt(elapsed))
}

// Run sleeps the current interval, dispatches one attempt with a random
// identity, and repeats while elapsed < Duration. Cancellation stops new
// dispatches; in-flight attempts drain before returning.
func (r Ramp) Run(ctx context.Context, opt Options) Outcome {
	opt.normalize()
	if !opt.runnable() {
		return Outcome{}
	}

	plan := rampPlan{fromRate: r.StartRate, toRate: r.EndRate, duration: opt.Duration}
	rng := opt.rng()
	d := NewDispatcher(opt)
	start := time.Now()

	for {
		elapsed := time.Since(start)
		if elapsed >= opt.Duration || ctx.Err() != nil {
			break
		}
		if !sleep(ctx, plan.intervalAt(elapsed)) {
			break
		}
		id := opt.Identities[rng.Intn(len(opt.Identities))]
		if !d.Dispatch(ctx, id) {
			break
		}
	}
	d.Wait()
	return d.outcome(start)
}
