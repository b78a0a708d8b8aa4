// Package identity loads, injects and removes the subscriber credentials a run
// authenticates with.
package identity

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// Identity is one credential pair. Values are immutable once loaded and may be
// shared across goroutines without locking.
type Identity struct {
	Username string
	Password string
}

// Source yields the identity pool for a run.
type Source interface {
	Load(ctx context.Context) ([]Identity, error)
}

// ErrNoIdentities is returned when a source yields no usable identities.
var ErrNoIdentities = errors.New("no eligible identities found")

// StoreError wraps a backing store failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("identity store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Shuffle randomizes ids in place so sampling is not biased toward insertion order.
func Shuffle(ids []Identity, rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}
