package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authstorm",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	def := Default()

	// Target server
	flags.String("radius-host", def.Radius.Host, "RADIUS server host")
	flags.Int("radius-port", def.Radius.Port, "RADIUS authentication port")
	flags.String("radius-secret", def.Radius.Secret, "RADIUS shared secret")
	flags.Duration("timeout", def.Radius.Timeout, "Per-request timeout")
	flags.String("nas-ip", def.Radius.NASIPAddress, "NAS-IP-Address sent with every request (empty to omit)")
	flags.String("nas-identifier", def.Radius.NASIdentifier, "NAS-Identifier sent with every request (empty to omit)")
	flags.String("nas-port-id", "", "NAS-Port-Id sent with every request")

	// Identity source
	flags.String("pg-dsn", "", "PostgreSQL connection string for the subscriber catalog")
	flags.String("identity-file", "", "Load identities from a CSV or JSON file instead of the database")
	flags.Int("scale", 0, "Inject this many synthetic identities before the run (0 disables)")
	flags.Int("scale-batch", def.Scale.BatchSize, "Rows per synthetic INSERT batch")
	flags.Int64("scale-id-base", def.Scale.IDBase, "Synthetic identities use ids above this value")
	flags.Int64("scale-profile-id", 0, "Profile id referenced by synthetic identities (0 leaves it NULL)")
	flags.Bool("scale-attributes", false, "Also inject custom attribute rows for synthetic identities")
	flags.Bool("keep-synthetic", false, "Do not remove synthetic identities after the run")

	// Load shape
	flags.String("preset", "", "Run profile: default, quick or full")
	flags.Bool("quick", false, "Shorthand for --preset=quick")
	flags.Bool("full", false, "Shorthand for --preset=full")
	flags.Duration("steady-duration", def.Steady.Duration, "Steady state phase duration")
	flags.Duration("ramp-duration", def.Ramp.Duration, "Ramp phase duration")
	flags.Duration("outage-duration", def.Outage.Duration, "Outage recovery burst window")
	flags.Duration("peak-duration", def.Peak.Duration, "Sustained peak phase duration")
	flags.Int("steady-rps", def.SteadyRPS, "Steady state request rate")
	flags.Int("peak-rps", def.PeakRPS, "Peak request rate")
	flags.Int("steady-concurrency", def.Steady.Concurrency, "Max in-flight requests during steady state")
	flags.Int("ramp-concurrency", def.Ramp.Concurrency, "Max in-flight requests during the ramp")
	flags.Int("outage-concurrency", def.Outage.Concurrency, "Max in-flight requests during the outage burst")
	flags.Int("peak-concurrency", def.Peak.Concurrency, "Max in-flight requests during sustained peak")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model for fixed-rate phases (uniform or poisson)")
	flags.Int("retries", 0, "Retries per attempt on timeout or transport error")
	flags.Int("warmup", def.Warmup, "Sequential warmup requests before the first phase (not recorded)")

	// Capacity estimate
	flags.Int("devices-per-unit", def.Capacity.DevicesPerUnit, "Subscribers one access device serves, for capacity estimation")
	flags.Duration("recovery-window", def.Capacity.RecoveryWindow, "Window in which a full reconnect must complete")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted report")
	flags.String("html-output", "", "Also write an HTML report to this path")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("log-errors", false, "Log each failed attempt at warn level")
	flags.String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", def.LogFormat, "Log encoding: json or console")
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g., 'auth_duration:p95 < 50')")
	flags.Bool("fail-on-verdict", false, "Exit non-zero when the verdict is FAIL")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Observability
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("tracing-endpoint", "", "OTLP endpoint for trace export")
	flags.String("tracing-protocol", def.Tracing.Protocol, "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported in traces")
	flags.Float64("tracing-sample-rate", def.Tracing.SampleRate, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("tracing-insecure", false, "Disable TLS for trace export")

	flags.String("lock-file", "", "Lock file guarding synthetic injection (default: temp dir)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// presetFromFlags resolves --preset, --quick and --full.
func presetFromFlags(fs *pflag.FlagSet) (string, error) {
	quick, _ := fs.GetBool("quick")
	full, _ := fs.GetBool("full")
	named, _ := fs.GetString("preset")
	named = strings.ToLower(strings.TrimSpace(named))

	switch {
	case quick && full:
		return "", fmt.Errorf("--quick and --full are mutually exclusive")
	case quick:
		if named != "" && named != PresetQuick {
			return "", fmt.Errorf("--quick conflicts with --preset=%s", named)
		}
		return PresetQuick, nil
	case full:
		if named != "" && named != PresetFull {
			return "", fmt.Errorf("--full conflicts with --preset=%s", named)
		}
		return PresetFull, nil
	}
	return named, nil
}

// applyFlagOverrides applies explicitly set flags to the config, overriding
// every other source.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"radius-host", &cfg.Radius.Host},
		{"radius-secret", &cfg.Radius.Secret},
		{"nas-ip", &cfg.Radius.NASIPAddress},
		{"nas-identifier", &cfg.Radius.NASIdentifier},
		{"nas-port-id", &cfg.Radius.NASPortID},
		{"pg-dsn", &cfg.DSN},
		{"identity-file", &cfg.IdentityFile},
		{"log-level", &cfg.LogLevel},
		{"log-format", &cfg.LogFormat},
		{"metrics-addr", &cfg.MetricsAddr},
		{"html-output", &cfg.HTMLOutput},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
		{"lock-file", &cfg.LockFile},
	}
	for _, s := range strs {
		if !fs.Changed(s.name) {
			continue
		}
		val, err := fs.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(val)
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"radius-port", &cfg.Radius.Port},
		{"scale", &cfg.Scale.Count},
		{"scale-batch", &cfg.Scale.BatchSize},
		{"steady-rps", &cfg.SteadyRPS},
		{"peak-rps", &cfg.PeakRPS},
		{"steady-concurrency", &cfg.Steady.Concurrency},
		{"ramp-concurrency", &cfg.Ramp.Concurrency},
		{"outage-concurrency", &cfg.Outage.Concurrency},
		{"peak-concurrency", &cfg.Peak.Concurrency},
		{"retries", &cfg.Retries},
		{"warmup", &cfg.Warmup},
		{"devices-per-unit", &cfg.Capacity.DevicesPerUnit},
	}
	for _, i := range ints {
		if !fs.Changed(i.name) {
			continue
		}
		val, err := fs.GetInt(i.name)
		if err != nil {
			return err
		}
		*i.dst = val
	}

	int64s := []struct {
		name string
		dst  *int64
	}{
		{"scale-id-base", &cfg.Scale.IDBase},
		{"scale-profile-id", &cfg.Scale.ProfileID},
	}
	for _, i := range int64s {
		if !fs.Changed(i.name) {
			continue
		}
		val, err := fs.GetInt64(i.name)
		if err != nil {
			return err
		}
		*i.dst = val
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"timeout", &cfg.Radius.Timeout},
		{"steady-duration", &cfg.Steady.Duration},
		{"ramp-duration", &cfg.Ramp.Duration},
		{"outage-duration", &cfg.Outage.Duration},
		{"peak-duration", &cfg.Peak.Duration},
		{"recovery-window", &cfg.Capacity.RecoveryWindow},
	}
	for _, d := range durations {
		if !fs.Changed(d.name) {
			continue
		}
		val, err := fs.GetDuration(d.name)
		if err != nil {
			return err
		}
		*d.dst = val
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"scale-attributes", &cfg.Scale.Attributes},
		{"keep-synthetic", &cfg.Scale.Keep},
		{"json-output", &cfg.JSONOutput},
		{"dashboard", &cfg.Dashboard},
		{"log-errors", &cfg.LogErrors},
		{"fail-on-verdict", &cfg.FailVerdict},
		{"tracing-insecure", &cfg.Tracing.Insecure},
	}
	for _, b := range bools {
		if !fs.Changed(b.name) {
			continue
		}
		val, err := fs.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = val
	}

	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, val...)
	}
	return nil
}
