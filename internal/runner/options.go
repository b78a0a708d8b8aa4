package runner

import (
	"context"
	"math/rand"
	"time"

	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/radclient"
)

// Driver shapes one phase worth of traffic.
type Driver interface {
	Run(ctx context.Context, opt Options) Outcome
}

// Outcome reports what a driver dispatched. Results flow to Options.Sink.
type Outcome struct {
	Dispatched int64
	Elapsed    time.Duration
}

// Options are shared by every driver.
type Options struct {
	// Identities is the read-only pool attempts draw from.
	Identities []identity.Identity
	// Authenticator performs each attempt and is required.
	Authenticator radclient.Authenticator
	// Sink receives every result.
	Sink        metrics.Sink
	Duration    time.Duration
	Concurrency int
	// AttemptTimeout bounds one dispatched attempt, retries included. Zero
	// leaves the bound to the authenticator.
	AttemptTimeout time.Duration
	// RandomSeed seeds identity selection and burst schedules; zero picks a
	// time-based seed.
	RandomSeed int64
	// OnDispatch, when set, is called from the driver goroutine after each
	// dispatch.
	OnDispatch func()
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.AttemptTimeout < 0 {
		o.AttemptTimeout = 0
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.Sink == nil {
		o.Sink = discard{}
	}
}

func (o Options) runnable() bool {
	return o.Authenticator != nil && len(o.Identities) > 0 && o.Duration > 0
}

func (o Options) rng() *rand.Rand {
	return rand.New(rand.NewSource(o.RandomSeed))
}

type discard struct{}

func (discard) Record(metrics.Result) {}
