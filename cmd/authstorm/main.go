package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/openradius/authstorm/internal/config"
	"github.com/openradius/authstorm/internal/dashboard"
	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/output"
	"github.com/openradius/authstorm/internal/report"
	"github.com/openradius/authstorm/internal/scenario"
	"github.com/openradius/authstorm/internal/telemetry"
	"github.com/openradius/authstorm/internal/threshold"
	"github.com/openradius/authstorm/internal/tracing"
)

const (
	exitOK        = 0
	exitSetup     = 1
	exitThreshold = 2

	shutdownTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one load test and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}
	if err := cfg.Validate(); err != nil {
		printValidation(stderr, err)
		return exitSetup
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	runID := ulid.Make().String()
	logger = logger.With(zap.String("run_id", runID))

	rep, passed, err := execute(ctx, cfg, runID, thresholds, logger, stdout)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitSetup
	}
	if !passed {
		return exitThreshold
	}
	if cfg.FailVerdict && rep.Assessment.Verdict == report.VerdictFail {
		return exitThreshold
	}
	return exitOK
}

func execute(ctx context.Context, cfg *config.Config, runID string, thresholds []threshold.Threshold, logger *zap.Logger, stdout io.Writer) (report.Report, bool, error) {
	provider, err := tracing.Init(ctx, cfg.Tracing, runID)
	if err != nil {
		return report.Report{}, false, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn("trace provider shutdown", zap.Error(err))
		}
	}()
	ctx, runSpan := tracing.StartRunSpan(ctx, provider.Tracer(), runID)
	defer runSpan.End()

	ids, release, err := prepareIdentities(ctx, cfg, identity.Open, logger)
	if err != nil {
		return report.Report{}, false, err
	}
	defer release()

	auth, client, counters, err := newAuthenticator(cfg, provider.Tracer(), logger)
	if err != nil {
		return report.Report{}, false, err
	}

	// Both the report and the table view want text on stdout; JSON mode keeps
	// stdout clean for the document.
	textOut := stdout
	if cfg.JSONOutput || cfg.Dashboard {
		textOut = io.Discard
	}

	plan := scenario.NewPlan(cfg, len(ids))
	opts := []scenario.Option{
		scenario.WithOutput(textOut),
		scenario.WithLogger(logger),
		scenario.WithTracer(provider.Tracer()),
		scenario.WithAttemptTimeout(attemptTimeout(cfg)),
	}

	if cfg.MetricsAddr != "" {
		collector := telemetry.NewCollector()
		collector.RegisterPacketCounters(counters)
		srv, err := telemetry.Listen(cfg.MetricsAddr, collector.Registry(), logger)
		if err != nil {
			return report.Report{}, false, err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		opts = append(opts, scenario.WithSink(collector), scenario.WithListener(collector))
	}

	if cfg.Dashboard {
		dctx, stop := context.WithCancel(ctx)
		defer stop()
		ctx = dctx
		dash, err := dashboard.New(dashboard.RunConfig{
			Server:     client.Addr(),
			Identities: len(ids),
			Phases:     len(plan.Phases),
			SteadyRate: cfg.SteadyRPS,
			PeakRate:   cfg.PeakRPS,
			Timeout:    cfg.Radius.Timeout,
			Retries:    cfg.Retries,
			Arrival:    string(cfg.Arrival.Model),
			ConfigFile: cfg.ConfigFile,
		}, stop)
		if err != nil {
			return report.Report{}, false, err
		}
		dash.Start()
		defer dash.Stop()
		opts = append(opts, scenario.WithListener(dash))
	}

	output.PrintBanner(textOut, output.RunInfo{
		RunID:       runID,
		Server:      client.Addr(),
		Identities:  len(ids),
		Steady:      cfg.Steady.Duration,
		Ramp:        cfg.Ramp.Duration,
		Outage:      cfg.Outage.Duration,
		Peak:        cfg.Peak.Duration,
		SteadyRate:  float64(cfg.SteadyRPS),
		PeakRate:    float64(cfg.PeakRPS),
		Arrival:     string(cfg.Arrival.Model),
		Concurrency: [4]int{cfg.Steady.Concurrency, cfg.Ramp.Concurrency, cfg.Outage.Concurrency, cfg.Peak.Concurrency},
	})

	orch := scenario.New(auth, ids, opts...)
	orch.Warmup(ctx, plan.Warmup)
	counters.Reset()

	logger.Info("load test started",
		zap.String("server", client.Addr()),
		zap.Int("identities", len(ids)),
		zap.Duration("planned", cfg.TotalDuration()),
	)
	result := orch.Run(ctx, plan)

	rep := report.Build(result.Phases, len(ids), report.Policy{
		DevicesPerUnit: cfg.Capacity.DevicesPerUnit,
		RecoveryWindow: cfg.Capacity.RecoveryWindow,
	})
	rep.RunID = runID
	rep.Server = client.Addr()
	rep.Interrupted = result.Interrupted
	snap := counters.Snapshot()
	rep.Packets = &snap

	results := threshold.NewEvaluator(thresholds).Evaluate(rep)
	if err := writeReports(cfg, stdout, rep, results); err != nil {
		return rep, false, err
	}
	logger.Info("load test finished",
		zap.String("verdict", string(rep.Assessment.Verdict)),
		zap.Int64("total", rep.Totals.Total),
		zap.Float64("error_pct", rep.Totals.ErrorPct),
		zap.Bool("interrupted", rep.Interrupted),
	)
	return rep, threshold.AllPassed(results), nil
}

func writeReports(cfg *config.Config, stdout io.Writer, rep report.Report, results []threshold.Result) error {
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, rep, results); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, rep)
		output.PrintThresholds(stdout, results)
	}

	if cfg.HTMLOutput == "" {
		return nil
	}
	f, err := os.Create(cfg.HTMLOutput)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	if err := output.GenerateHTMLReport(f, rep, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("write html report: %w", err)
	}
	return f.Close()
}

// attemptTimeout bounds one dispatched attempt including its retries.
func attemptTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Retries+1)*cfg.Radius.Timeout + time.Duration(cfg.Retries)*maxRetryDelay
}

func printValidation(w io.Writer, err error) {
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, "Error: invalid configuration:")
	for _, issue := range verr.Issues() {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
