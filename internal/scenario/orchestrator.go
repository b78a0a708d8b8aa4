package scenario

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/output"
	"github.com/openradius/authstorm/internal/radclient"
	"github.com/openradius/authstorm/internal/runner"
	"github.com/openradius/authstorm/internal/tracing"
)

// Listener observes phase boundaries. Callbacks run on the orchestrator
// goroutine and must not block.
type Listener interface {
	OnPhaseStart(p Phase, stats *metrics.LiveStats)
	OnPhaseEnd(p Phase, summary metrics.PhaseSummary)
}

// Result is what a run produced.
type Result struct {
	Phases []metrics.PhaseSummary
	// Skipped lists phases not started because cancellation was observed.
	Skipped     []Phase
	Interrupted bool
}

// Orchestrator runs a Plan against one authenticator and identity pool.
type Orchestrator struct {
	auth             radclient.Authenticator
	ids              []identity.Identity
	out              io.Writer
	logger           *zap.Logger
	tracer           trace.Tracer
	listeners        []Listener
	sinks            []metrics.Sink
	progressInterval time.Duration
	attemptTimeout   time.Duration
	seed             int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOutput sets where headers, progress and result blocks go.
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.out = w }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithListener(l Listener) Option {
	return func(o *Orchestrator) { o.listeners = append(o.listeners, l) }
}

// WithSink adds a sink that sees every result of every phase.
func WithSink(s metrics.Sink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, s) }
}

func WithProgressInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.progressInterval = d }
}

// WithAttemptTimeout bounds one dispatched attempt, retries included.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.attemptTimeout = d }
}

// WithSeed fixes identity selection and burst schedules.
func WithSeed(seed int64) Option {
	return func(o *Orchestrator) { o.seed = seed }
}

// New returns an orchestrator over a read-only identity pool.
func New(auth radclient.Authenticator, ids []identity.Identity, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		auth:             auth,
		ids:              ids,
		out:              io.Discard,
		logger:           zap.NewNop(),
		tracer:           noop.NewTracerProvider().Tracer(""),
		progressInterval: output.DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Warmup performs n sequential attempts with the first identities of the
// pool. Results are not recorded anywhere.
func (o *Orchestrator) Warmup(ctx context.Context, n int) int {
	if n > len(o.ids) {
		n = len(o.ids)
	}
	if n <= 0 {
		return 0
	}
	fmt.Fprint(o.out, "\n  Warmup: ")
	done := 0
	for i := 0; i < n && ctx.Err() == nil; i++ {
		o.auth.Authenticate(ctx, o.ids[i])
		fmt.Fprint(o.out, ".")
		done++
	}
	fmt.Fprintln(o.out, " done")
	o.logger.Debug("warmup finished", zap.Int("attempts", done))
	return done
}

// Run executes the plan's phases strictly in order. Once ctx is canceled the
// remaining phases are skipped entirely.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) Result {
	var res Result
	for i, phase := range plan.Phases {
		if ctx.Err() != nil {
			res.Interrupted = true
			res.Skipped = append(res.Skipped, plan.Phases[i:]...)
			o.logger.Warn("run interrupted, skipping remaining phases", zap.Int("skipped", len(plan.Phases)-i))
			break
		}
		res.Phases = append(res.Phases, o.runPhase(ctx, i+1, phase))
	}
	if !res.Interrupted && ctx.Err() != nil {
		res.Interrupted = true
	}
	return res
}

func (o *Orchestrator) runPhase(ctx context.Context, index int, phase Phase) metrics.PhaseSummary {
	output.PrintPhaseHeader(o.out, output.PhaseHeader{Index: index, Title: phase.Name, Lines: phase.Description})

	stats := metrics.NewLiveStats()
	for _, l := range o.listeners {
		l.OnPhaseStart(phase, stats)
	}

	phaseCtx, span := tracing.StartPhaseSpan(ctx, o.tracer, phase.Name, phase.Kind)
	progress := output.NewProgressReporter(stats, phase.Label, o.progressInterval, o.out)
	progress.Start()

	o.logger.Info("phase started",
		zap.String("phase", string(phase.Kind)),
		zap.Duration("duration", phase.Duration),
		zap.Int("concurrency", phase.Concurrency),
	)

	sinks := append([]metrics.Sink{stats}, o.sinks...)
	start := time.Now()
	outcome := phase.Driver.Run(phaseCtx, runner.Options{
		Identities:     o.ids,
		Authenticator:  o.auth,
		Sink:           metrics.Tee(sinks...),
		Duration:       phase.Duration,
		Concurrency:    phase.Concurrency,
		AttemptTimeout: o.attemptTimeout,
		RandomSeed:     o.seed,
	})
	elapsed := time.Since(start)

	progress.Stop()
	summary := metrics.Capture(phase.Name, phase.Kind, stats, elapsed)
	tracing.EndPhaseSpan(span, summary)

	o.logger.Info("phase finished",
		zap.String("phase", string(phase.Kind)),
		zap.Int64("dispatched", outcome.Dispatched),
		zap.Int64("total", summary.Total),
		zap.Int64("errors", summary.Errors),
		zap.Float64("throughput", summary.Throughput),
		zap.Duration("elapsed", elapsed),
	)

	output.PrintPhaseResult(o.out, summary)
	for _, l := range o.listeners {
		l.OnPhaseEnd(phase, summary)
	}
	return summary
}
