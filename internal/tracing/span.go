package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openradius/authstorm/internal/metrics"
)

// Span attribute keys.
const (
	AttrRunID      = "authstorm.run_id"
	AttrPhase      = "authstorm.phase"
	AttrPhaseKind  = "authstorm.phase.kind"
	AttrOutcome    = "authstorm.outcome"
	AttrErrorClass = "authstorm.error_class"
	AttrServer     = "server.address"
)

// StartRunSpan starts the root span covering every phase of a run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "authstorm run",
		trace.WithAttributes(attribute.String(AttrRunID, runID)),
	)
}

// StartPhaseSpan starts a span for one phase.
func StartPhaseSpan(ctx context.Context, tracer trace.Tracer, name string, kind metrics.PhaseKind) (context.Context, trace.Span) {
	return tracer.Start(ctx, "phase "+string(kind),
		trace.WithAttributes(
			attribute.String(AttrPhase, name),
			attribute.String(AttrPhaseKind, string(kind)),
		),
	)
}

// EndPhaseSpan records the phase summary on span and ends it.
func EndPhaseSpan(span trace.Span, sum metrics.PhaseSummary) {
	span.SetAttributes(
		attribute.Int64("authstorm.phase.total", sum.Total),
		attribute.Int64("authstorm.phase.accept", sum.Accept),
		attribute.Int64("authstorm.phase.reject", sum.Reject),
		attribute.Int64("authstorm.phase.errors", sum.Errors),
		attribute.Float64("authstorm.phase.throughput", sum.Throughput),
		attribute.Float64("authstorm.phase.p95_ms", sum.P95Ms),
	)
	EndSpan(span, nil)
}

// StartAttemptSpan starts a client span for a single Access-Request.
func StartAttemptSpan(ctx context.Context, tracer trace.Tracer, server string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "radius Access-Request",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("rpc.system", "radius"))
	if server != "" {
		span.SetAttributes(attribute.String(AttrServer, server))
	}
	return ctx, span
}

// EndAttemptSpan records the attempt outcome and ends the span. Rejects are
// not span errors.
func EndAttemptSpan(span trace.Span, res metrics.Result) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrOutcome, res.Outcome.String()),
		attribute.Float64("authstorm.latency_ms", float64(res.Latency.Microseconds())/1000),
	}
	if res.Outcome == metrics.OutcomeError {
		attrs = append(attrs, attribute.String(AttrErrorClass, metrics.ClassifyError(res.Err)))
		err := res.Err
		if err == nil {
			err = errors.New("authentication attempt failed")
		}
		EndSpan(span, err, attrs...)
		return
	}
	EndSpan(span, nil, attrs...)
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
