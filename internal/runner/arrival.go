package runner

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ArrivalModel selects how fixed-rate attempts are spaced.
type ArrivalModel string

const (
	// ArrivalModelUniform spaces attempts exactly 1/Rate apart.
	ArrivalModelUniform ArrivalModel = "uniform"
	// ArrivalModelPoisson draws exponential gaps with mean 1/Rate.
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type arrivalController interface {
	Wait(ctx context.Context) error
}

func newArrivalController(model ArrivalModel, rps float64, sample func() float64) arrivalController {
	switch model {
	case ArrivalModelPoisson:
		ctrl := &poissonArrival{sample: sample}
		ctrl.SetRate(rps)
		return ctrl
	default:
		// Burst 1 keeps ticks evenly spaced; the first token is available at once.
		return &uniformArrival{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
	}
}

// uniformArrival delegates pacing to a rate.Limiter (uniform spacing).
type uniformArrival struct {
	limiter *rate.Limiter
}

func (u *uniformArrival) Wait(ctx context.Context) error {
	if u == nil || u.limiter == nil {
		return nil
	}
	return u.limiter.Wait(ctx)
}

// poissonArrival samples exponential inter-arrival times to approximate a Poisson process.
type poissonArrival struct {
	mu     sync.Mutex
	rate   float64
	sample func() float64
}

func (p *poissonArrival) Wait(ctx context.Context) error {
	delay := p.nextDelay()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *poissonArrival) SetRate(rps float64) {
	if p == nil {
		return
	}
	if rps < 0 {
		rps = 0
	}
	p.mu.Lock()
	p.rate = rps
	p.mu.Unlock()
}

func (p *poissonArrival) nextDelay() time.Duration {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rate <= 0 || p.sample == nil {
		return 0
	}

	value := p.sample()
	delay := float64(time.Second) * value / p.rate
	if delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	return time.Duration(delay)
}
