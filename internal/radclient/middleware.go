package radclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/tracing"
)

// RetryPolicy configures retry behavior for error outcomes. Accepts and
// rejects are definitive and never retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// Delay between retries, used when DelayFunc is nil.
	Delay time.Duration
	// ShouldRetry filters error outcomes; nil retries all of them.
	ShouldRetry func(metrics.Result) bool
	// DelayFunc computes backoff; attempt is 1-based.
	DelayFunc func(attempt int, last metrics.Result) time.Duration
}

type retryAuthenticator struct {
	inner  Authenticator
	policy RetryPolicy
}

// WithRetry wraps an Authenticator with retry capability. The returned result
// is the last attempt's outcome with latency summed over all tries, so it still
// counts as a single attempt in the statistics.
func WithRetry(auth Authenticator, policy RetryPolicy) Authenticator {
	if policy.MaxAttempts <= 1 {
		return auth
	}
	return &retryAuthenticator{inner: auth, policy: policy}
}

func (r *retryAuthenticator) Authenticate(ctx context.Context, id identity.Identity) metrics.Result {
	var (
		last  metrics.Result
		spent time.Duration
	)
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		last = r.inner.Authenticate(ctx, id)
		spent += last.Latency
		if last.Outcome != metrics.OutcomeError {
			break
		}
		if attempt == r.policy.MaxAttempts {
			break
		}
		if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(last) {
			break
		}
		delay := r.policy.Delay
		if r.policy.DelayFunc != nil {
			delay = r.policy.DelayFunc(attempt, last)
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				last.Latency = spent
				return last
			}
		}
	}
	last.Latency = spent
	return last
}

type loggingAuthenticator struct {
	inner  Authenticator
	logger *zap.Logger
	level  zapcore.Level
}

// WithLogging logs error and reject outcomes at debug level.
func WithLogging(auth Authenticator, logger *zap.Logger) Authenticator {
	return withLogging(auth, logger, zapcore.DebugLevel)
}

// WithErrorLogging is WithLogging at warn level, for --log-errors.
func WithErrorLogging(auth Authenticator, logger *zap.Logger) Authenticator {
	return withLogging(auth, logger, zapcore.WarnLevel)
}

func withLogging(auth Authenticator, logger *zap.Logger, level zapcore.Level) Authenticator {
	if logger == nil {
		return auth
	}
	return &loggingAuthenticator{inner: auth, logger: logger, level: level}
}

func (l *loggingAuthenticator) Authenticate(ctx context.Context, id identity.Identity) metrics.Result {
	res := l.inner.Authenticate(ctx, id)
	switch res.Outcome {
	case metrics.OutcomeError:
		if ce := l.logger.Check(l.level, "authentication attempt failed"); ce != nil {
			ce.Write(
				zap.String("username", id.Username),
				zap.String("class", metrics.ClassifyError(res.Err)),
				zap.Duration("latency", res.Latency),
				zap.Error(res.Err),
			)
		}
	case metrics.OutcomeReject:
		if ce := l.logger.Check(l.level, "authentication rejected"); ce != nil {
			ce.Write(
				zap.String("username", id.Username),
				zap.Duration("latency", res.Latency),
			)
		}
	}
	return res
}

type tracingAuthenticator struct {
	inner  Authenticator
	tracer trace.Tracer
	server string
}

// WithTracing records one client span per attempt.
func WithTracing(auth Authenticator, tracer trace.Tracer, server string) Authenticator {
	if tracer == nil {
		return auth
	}
	return &tracingAuthenticator{inner: auth, tracer: tracer, server: server}
}

func (t *tracingAuthenticator) Authenticate(ctx context.Context, id identity.Identity) metrics.Result {
	ctx, span := tracing.StartAttemptSpan(ctx, t.tracer, t.server)
	res := t.inner.Authenticate(ctx, id)
	tracing.EndAttemptSpan(span, res)
	return res
}
