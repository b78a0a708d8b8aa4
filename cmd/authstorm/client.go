package main

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openradius/authstorm/internal/config"
	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/radclient"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = time.Second
)

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// newAuthenticator builds the client and its middleware stack: one span and
// one log line per try, with retries outermost.
func newAuthenticator(cfg *config.Config, tracer trace.Tracer, logger *zap.Logger) (radclient.Authenticator, *radclient.Client, *radclient.Counters, error) {
	counters := radclient.NewCounters()
	client, err := radclient.New(radclient.Options{
		Host:          cfg.Radius.Host,
		Port:          cfg.Radius.Port,
		Secret:        cfg.Radius.Secret,
		Timeout:       cfg.Radius.Timeout,
		NASIPAddress:  net.ParseIP(cfg.Radius.NASIPAddress),
		NASIdentifier: cfg.Radius.NASIdentifier,
		NASPortID:     cfg.Radius.NASPortID,
		Counters:      counters,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	var auth radclient.Authenticator = client
	auth = radclient.WithTracing(auth, tracer, client.Addr())
	if cfg.LogErrors {
		auth = radclient.WithErrorLogging(auth, logger)
	} else {
		auth = radclient.WithLogging(auth, logger)
	}
	if cfg.Retries > 0 {
		auth = radclient.WithRetry(auth, newRetryPolicy(cfg.Retries))
	}
	return auth, client, counters, nil
}

func newRetryPolicy(retries int) radclient.RetryPolicy {
	source := &jitterSource{rnd: newRand()}

	return radclient.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(res metrics.Result) bool {
			return metrics.ClassifyError(res.Err) != metrics.ErrorClassCanceled
		},
		DelayFunc: func(attempt int, _ metrics.Result) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			delay := backoff + source.jitter(backoff/2)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			return delay
		},
	}
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
