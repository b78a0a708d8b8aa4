package runner

import (
	"context"
	"time"
)

// FixedRate fires one attempt per tick at Rate attempts per second, each
// with a uniformly random identity. Used by the steady and peak phases.
type FixedRate struct {
	Rate    float64
	Arrival ArrivalModel
	// PoissonSampler overrides the exponential sampler; tests inject it.
	PoissonSampler func() float64
}

// Run dispatches until the phase duration elapses or ctx is canceled, then
// drains. It is a no-op when Rate or Duration is not positive.
func (f FixedRate) Run(ctx context.Context, opt Options) Outcome {
	opt.normalize()
	if f.Rate <= 0 || !opt.runnable() {
		return Outcome{}
	}

	start := time.Now()
	phaseCtx, cancel := context.WithTimeout(ctx, opt.Duration)
	defer cancel()

	rng := opt.rng()
	sampler := f.PoissonSampler
	if sampler == nil {
		sampler = rng.ExpFloat64
	}
	arrival := newArrivalController(f.Arrival, f.Rate, sampler)
	d := NewDispatcher(opt)

	for {
		if err := arrival.Wait(phaseCtx); err != nil {
			break
		}
		id := opt.Identities[rng.Intn(len(opt.Identities))]
		if !d.Dispatch(phaseCtx, id) {
			break
		}
	}
	d.Wait()
	return d.outcome(start)
}
