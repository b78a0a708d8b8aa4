package runner

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/metrics"
)

type fakeCounter struct {
	calls atomic.Int64
}

func (f *fakeCounter) Authenticate(context.Context, identity.Identity) metrics.Result {
	f.calls.Add(1)
	return metrics.Result{Outcome: metrics.OutcomeAccept}
}

func testPool(n int) []identity.Identity {
	ids := make([]identity.Identity, n)
	for i := range ids {
		ids[i] = identity.Identity{Username: fmt.Sprintf("lt_%d", i+1)}
	}
	return ids
}
