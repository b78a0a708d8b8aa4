package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	Radius       RadiusConfig   `mapstructure:"radius"`
	DSN          string         `mapstructure:"pg_dsn"`
	IdentityFile string         `mapstructure:"identity_file"`
	Scale        ScaleConfig    `mapstructure:"scale"`
	Preset       string         `mapstructure:"preset"`
	Steady       PhaseConfig    `mapstructure:"steady"`
	Ramp         PhaseConfig    `mapstructure:"ramp"`
	Outage       PhaseConfig    `mapstructure:"outage"`
	Peak         PhaseConfig    `mapstructure:"peak"`
	SteadyRPS    int            `mapstructure:"steady_rps"`
	PeakRPS      int            `mapstructure:"peak_rps"`
	Arrival      ArrivalConfig  `mapstructure:"arrival"`
	Retries      int            `mapstructure:"retries"`
	Warmup       int            `mapstructure:"warmup"`
	Capacity     CapacityConfig `mapstructure:"capacity"`
	JSONOutput   bool           `mapstructure:"json_output"`
	HTMLOutput   string         `mapstructure:"html_output"`
	Dashboard    bool           `mapstructure:"dashboard"`
	LogErrors    bool           `mapstructure:"log_errors"`
	LogLevel     string         `mapstructure:"log_level"`
	LogFormat    string         `mapstructure:"log_format"`
	Thresholds   []string       `mapstructure:"thresholds"`
	FailVerdict  bool           `mapstructure:"fail_on_verdict"`
	MetricsAddr  string         `mapstructure:"metrics_addr"`
	Tracing      TracingConfig  `mapstructure:"tracing"`
	LockFile     string         `mapstructure:"lock_file"`
	ConfigFile   string         `mapstructure:"-"`
}

type RadiusConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Secret        string        `mapstructure:"secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
	NASIPAddress  string        `mapstructure:"nas_ip_address"`
	NASIdentifier string        `mapstructure:"nas_identifier"`
	NASPortID     string        `mapstructure:"nas_port_id"`
}

// ScaleConfig controls synthetic identity injection. Count 0 disables it.
type ScaleConfig struct {
	Count      int   `mapstructure:"count"`
	BatchSize  int   `mapstructure:"batch_size"`
	IDBase     int64 `mapstructure:"id_base"`
	ProfileID  int64 `mapstructure:"profile_id"`
	Attributes bool  `mapstructure:"attributes"`
	Keep       bool  `mapstructure:"keep"`
}

type PhaseConfig struct {
	Duration    time.Duration `mapstructure:"duration"`
	Concurrency int           `mapstructure:"concurrency"`
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

// CapacityConfig parameterizes the capacity estimate in the final report.
type CapacityConfig struct {
	DevicesPerUnit int           `mapstructure:"devices_per_unit"`
	RecoveryWindow time.Duration `mapstructure:"recovery_window"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Enabled reports whether an exporter endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Default returns the configuration used before presets, files, env and flags apply.
func Default() Config {
	return Config{
		Radius: RadiusConfig{
			Host:          "freeradius",
			Port:          1812,
			Secret:        "testing123",
			Timeout:       5 * time.Second,
			NASIPAddress:  "10.0.0.1",
			NASIdentifier: "authstorm",
		},
		Scale: ScaleConfig{
			BatchSize: 50000,
			IDBase:    900000,
		},
		Preset:    PresetDefault,
		Steady:    PhaseConfig{Duration: 30 * time.Second, Concurrency: 100},
		Ramp:      PhaseConfig{Duration: 30 * time.Second, Concurrency: 300},
		Outage:    PhaseConfig{Duration: 90 * time.Second, Concurrency: 500},
		Peak:      PhaseConfig{Duration: 30 * time.Second, Concurrency: 500},
		SteadyRPS: 50,
		PeakRPS:   1000,
		Arrival:   ArrivalConfig{Model: ArrivalModelUniform},
		Warmup:    10,
		Capacity: CapacityConfig{
			DevicesPerUnit: 16000,
			RecoveryWindow: 120 * time.Second,
		},
		LogLevel:  "info",
		LogFormat: "json",
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}
}

// TotalDuration is the sum of all configured phase durations.
func (c Config) TotalDuration() time.Duration {
	return c.Steady.Duration + c.Ramp.Duration + c.Outage.Duration + c.Peak.Duration
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Radius.Host) == "" {
		issues = append(issues, "radius host is required")
	}
	if c.Radius.Port < 1 || c.Radius.Port > 65535 {
		issues = append(issues, fmt.Sprintf("radius port must be between 1 and 65535, got %d", c.Radius.Port))
	}
	if c.Radius.Secret == "" {
		issues = append(issues, "radius secret is required")
	}
	if c.Radius.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}

	if strings.TrimSpace(c.DSN) == "" && strings.TrimSpace(c.IdentityFile) == "" {
		issues = append(issues, "either pg-dsn or identity-file is required")
	}
	if c.Scale.Count < 0 {
		issues = append(issues, "scale must be >= 0")
	}
	if c.Scale.Count > 0 && strings.TrimSpace(c.DSN) == "" {
		issues = append(issues, "scale requires pg-dsn")
	}
	if c.Scale.BatchSize < 1 {
		issues = append(issues, "scale batch size must be >= 1")
	}
	if c.Scale.IDBase < 1 {
		issues = append(issues, "scale id base must be >= 1")
	}
	if c.Scale.ProfileID < 0 {
		issues = append(issues, "scale profile id must be >= 0")
	}

	issues = append(issues, validatePhase("steady", c.Steady)...)
	issues = append(issues, validatePhase("ramp", c.Ramp)...)
	issues = append(issues, validatePhase("outage", c.Outage)...)
	issues = append(issues, validatePhase("peak", c.Peak)...)
	if c.TotalDuration() <= 0 {
		issues = append(issues, "at least one phase must have a positive duration")
	}
	if c.SteadyRPS < 0 {
		issues = append(issues, "steady rps must be >= 0")
	}
	if c.PeakRPS < 0 {
		issues = append(issues, "peak rps must be >= 0")
	}

	issues = append(issues, validateArrivalConfig(c.Arrival)...)

	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Warmup < 0 {
		issues = append(issues, "warmup must be >= 0")
	}
	if c.Capacity.DevicesPerUnit < 1 {
		issues = append(issues, "devices per unit must be >= 1")
	}
	if c.Capacity.RecoveryWindow <= 0 {
		issues = append(issues, "recovery window must be > 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		issues = append(issues, fmt.Sprintf("log level %q is not supported", c.LogLevel))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		issues = append(issues, fmt.Sprintf("log format must be 'json' or 'console', got %q", c.LogFormat))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings lists settings that are valid but worth flagging before a run.
func (c Config) Warnings() []string {
	var warnings []string
	if c.PeakRPS > 1000 {
		warnings = append(warnings, fmt.Sprintf("high peak rate configured (%d rps); ensure you are authorized to load the target server", c.PeakRPS))
	}
	if c.Scale.Count > 0 && c.Scale.Keep {
		warnings = append(warnings, "synthetic identities will be left in the database after the run")
	}
	if c.Tracing.Enabled() && c.Tracing.Insecure {
		warnings = append(warnings, "trace export TLS is disabled")
	}
	return warnings
}

func validatePhase(name string, p PhaseConfig) []string {
	var issues []string
	if p.Duration < 0 {
		issues = append(issues, fmt.Sprintf("%s duration must be >= 0", name))
	}
	if p.Concurrency < 1 {
		issues = append(issues, fmt.Sprintf("%s concurrency must be >= 1", name))
	}
	return issues
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validateTracingConfig(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
