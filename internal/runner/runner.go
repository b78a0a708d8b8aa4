package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/radclient"
)

// Dispatcher runs attempts under a concurrency gate and tracks them until
// they drain. It is used from a single driver goroutine; the attempts it
// starts run concurrently.
type Dispatcher struct {
	auth       radclient.Authenticator
	sink       metrics.Sink
	timeout    time.Duration
	gate       *semaphore.Weighted
	wg         sync.WaitGroup
	dispatched atomic.Int64
	inFlight   atomic.Int64
	onDispatch func()
}

// NewDispatcher builds a dispatcher from opt.
func NewDispatcher(opt Options) *Dispatcher {
	opt.normalize()
	return &Dispatcher{
		auth:       opt.Authenticator,
		sink:       opt.Sink,
		timeout:    opt.AttemptTimeout,
		gate:       semaphore.NewWeighted(int64(opt.Concurrency)),
		onDispatch: opt.OnDispatch,
	}
}

// Dispatch starts one attempt for id once a gate slot is free. It returns
// false without dispatching when ctx is done, including while waiting for a
// slot. The attempt itself is detached from ctx cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, id identity.Identity) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := d.gate.Acquire(ctx, 1); err != nil {
		return false
	}
	d.dispatched.Add(1)
	d.inFlight.Add(1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.gate.Release(1)
		defer d.inFlight.Add(-1)

		attemptCtx := context.WithoutCancel(ctx)
		if d.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(attemptCtx, d.timeout)
			defer cancel()
		}
		d.sink.Record(d.auth.Authenticate(attemptCtx, id))
	}()
	if d.onDispatch != nil {
		d.onDispatch()
	}
	return true
}

// Wait blocks until every dispatched attempt has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatched returns the number of attempts started so far.
func (d *Dispatcher) Dispatched() int64 {
	return d.dispatched.Load()
}

// InFlight returns the number of attempts currently running.
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

func (d *Dispatcher) outcome(start time.Time) Outcome {
	return Outcome{Dispatched: d.Dispatched(), Elapsed: time.Since(start)}
}

// sleep waits for delay or until ctx is done, reporting whether the full
// delay elapsed.
func sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
