package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader builds a Config from defaults, a preset, an optional config file,
// the environment and command-line flags, in increasing precedence.
type Loader struct {
	// LookupEnv reads environment variables; nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{LookupEnv: os.LookupEnv}
}

// envBinding maps environment variables onto a settings path. Earlier names win.
type envBinding struct {
	path  []string
	names []string
}

var envBindings = []envBinding{
	{[]string{"radius", "host"}, []string{"AUTHSTORM_RADIUS_HOST", "RADIUS_HOST"}},
	{[]string{"radius", "port"}, []string{"AUTHSTORM_RADIUS_PORT", "RADIUS_PORT"}},
	{[]string{"radius", "secret"}, []string{"AUTHSTORM_RADIUS_SECRET", "RADIUS_SECRET"}},
	{[]string{"radius", "timeout"}, []string{"AUTHSTORM_TIMEOUT"}},
	{[]string{"pg_dsn"}, []string{"AUTHSTORM_PG_DSN", "PG_DSN"}},
	{[]string{"identity_file"}, []string{"AUTHSTORM_IDENTITY_FILE"}},
	{[]string{"scale", "count"}, []string{"AUTHSTORM_SCALE", "SCALE"}},
	{[]string{"steady_rps"}, []string{"AUTHSTORM_STEADY_RPS"}},
	{[]string{"peak_rps"}, []string{"AUTHSTORM_PEAK_RPS"}},
	{[]string{"log_level"}, []string{"AUTHSTORM_LOG_LEVEL"}},
	{[]string{"log_format"}, []string{"AUTHSTORM_LOG_FORMAT"}},
	{[]string{"metrics_addr"}, []string{"AUTHSTORM_METRICS_ADDR"}},
	{[]string{"tracing", "endpoint"}, []string{"AUTHSTORM_TRACING_ENDPOINT"}},
	{[]string{"lock_file"}, []string{"AUTHSTORM_LOCK_FILE"}},
}

const envPreset = "AUTHSTORM_PRESET"

// Load parses command-line arguments and configuration sources to produce a Config.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	var fileSettings map[string]interface{}
	if configPath != "" {
		cfgViper := viper.New()
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
		fileSettings = cfgViper.AllSettings()
	}

	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	envSettings := collectEnv(lookup)

	preset, err := presetFromFlags(flagSet)
	if err != nil {
		return nil, err
	}
	if preset == "" {
		if val, ok := lookup(envPreset); ok && strings.TrimSpace(val) != "" {
			preset = val
		} else if raw, ok := lookupSetting(fileSettings, "preset"); ok {
			if preset, err = asString(raw); err != nil {
				return nil, fmt.Errorf("preset: %w", err)
			}
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyPreset(&cfg, preset); err != nil {
		return nil, err
	}
	if err := applyConfigSettings(&cfg, fileSettings); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if err := applyConfigSettings(&cfg, envSettings); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Radius.Host = strings.TrimSpace(cfg.Radius.Host)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.Arrival.Model == "" {
		cfg.Arrival.Model = ArrivalModelUniform
	}

	return &cfg, nil
}

// collectEnv builds a nested settings map from bound environment variables.
func collectEnv(lookup func(string) (string, bool)) map[string]interface{} {
	settings := map[string]interface{}{}
	for _, b := range envBindings {
		for _, name := range b.names {
			val, ok := lookup(name)
			if !ok || strings.TrimSpace(val) == "" {
				continue
			}
			setNested(settings, b.path, val)
			break
		}
	}
	return settings
}

func setNested(settings map[string]interface{}, path []string, val interface{}) {
	m := settings
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = val
}

// applyConfigSettings applies settings from a config source to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "radius"); ok {
		if err := applyRadiusSettings(&cfg.Radius, raw); err != nil {
			return fmt.Errorf("radius: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "pg_dsn", "pgdsn", "pg-dsn", "dsn"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("pg_dsn: %w", err)
		}
		cfg.DSN = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "identity_file", "identityfile", "identity-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("identity_file: %w", err)
		}
		cfg.IdentityFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "scale"); ok {
		if err := applyScaleSettings(&cfg.Scale, raw); err != nil {
			return fmt.Errorf("scale: %w", err)
		}
	}

	phases := []struct {
		key string
		dst *PhaseConfig
	}{
		{"steady", &cfg.Steady},
		{"ramp", &cfg.Ramp},
		{"outage", &cfg.Outage},
		{"peak", &cfg.Peak},
	}
	for _, p := range phases {
		raw, ok := lookupSetting(settings, p.key)
		if !ok {
			continue
		}
		if err := applyPhaseSettings(p.dst, raw); err != nil {
			return fmt.Errorf("%s: %w", p.key, err)
		}
	}

	if raw, ok := lookupSetting(settings, "steady_rps", "steadyrps", "steady-rps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("steady_rps: %w", err)
		}
		cfg.SteadyRPS = val
	}

	if raw, ok := lookupSetting(settings, "peak_rps", "peakrps", "peak-rps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("peak_rps: %w", err)
		}
		cfg.PeakRPS = val
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		cfg.Arrival = arrival
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "warmup"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		cfg.Warmup = val
	}

	if raw, ok := lookupSetting(settings, "capacity"); ok {
		if err := applyCapacitySettings(&cfg.Capacity, raw); err != nil {
			return fmt.Errorf("capacity: %w", err)
		}
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"json_output", "jsonoutput", "json-output"}, &cfg.JSONOutput},
		{[]string{"dashboard"}, &cfg.Dashboard},
		{[]string{"log_errors", "logerrors", "log-errors"}, &cfg.LogErrors},
		{[]string{"fail_on_verdict", "failonverdict", "fail-on-verdict"}, &cfg.FailVerdict},
	}
	for _, b := range bools {
		raw, ok := lookupSetting(settings, b.keys...)
		if !ok {
			continue
		}
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", b.keys[0], err)
		}
		*b.dst = val
	}

	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"log_level", "loglevel", "log-level"}, &cfg.LogLevel},
		{[]string{"log_format", "logformat", "log-format"}, &cfg.LogFormat},
		{[]string{"metrics_addr", "metricsaddr", "metrics-addr"}, &cfg.MetricsAddr},
		{[]string{"html_output", "htmloutput", "html-output"}, &cfg.HTMLOutput},
		{[]string{"lock_file", "lockfile", "lock-file"}, &cfg.LockFile},
	}
	for _, s := range strs {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyRadiusSettings(r *RadiusConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"host"}, &r.Host},
		{[]string{"secret"}, &r.Secret},
		{[]string{"nas_ip_address", "nasipaddress", "nas-ip-address", "nas_ip"}, &r.NASIPAddress},
		{[]string{"nas_identifier", "nasidentifier", "nas-identifier"}, &r.NASIdentifier},
		{[]string{"nas_port_id", "nasportid", "nas-port-id"}, &r.NASPortID},
	}
	for _, s := range strs {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = val
	}
	if raw, ok := lookupSetting(settings, "port"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		r.Port = val
	}
	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		r.Timeout = dur
	}
	return nil
}

// applyScaleSettings accepts either a bare count or a mapping.
func applyScaleSettings(s *ScaleConfig, value interface{}) error {
	switch value.(type) {
	case map[string]interface{}, map[interface{}]interface{}:
	default:
		val, err := asInt(value)
		if err != nil {
			return err
		}
		s.Count = val
		return nil
	}

	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "count"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}
		s.Count = val
	}
	if raw, ok := lookupSetting(settings, "batch_size", "batchsize", "batch-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("batch_size: %w", err)
		}
		s.BatchSize = val
	}
	if raw, ok := lookupSetting(settings, "id_base", "idbase", "id-base"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("id_base: %w", err)
		}
		s.IDBase = val
	}
	if raw, ok := lookupSetting(settings, "profile_id", "profileid", "profile-id"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("profile_id: %w", err)
		}
		s.ProfileID = val
	}
	if raw, ok := lookupSetting(settings, "attributes"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("attributes: %w", err)
		}
		s.Attributes = val
	}
	if raw, ok := lookupSetting(settings, "keep"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("keep: %w", err)
		}
		s.Keep = val
	}
	return nil
}

func applyPhaseSettings(p *PhaseConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		p.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		p.Concurrency = val
	}
	return nil
}

func applyCapacitySettings(c *CapacityConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "devices_per_unit", "devicesperunit", "devices-per-unit"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("devices_per_unit: %w", err)
		}
		c.DevicesPerUnit = val
	}
	if raw, ok := lookupSetting(settings, "recovery_window", "recoverywindow", "recovery-window"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("recovery_window: %w", err)
		}
		c.RecoveryWindow = dur
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "service_name", "servicename", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = val
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	return nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	if s, ok := value.(string); ok {
		return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(s)))}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return ArrivalConfig{}, err
	}
	var arrival ArrivalConfig
	if raw, ok := lookupSetting(entry, "model"); ok {
		val, err := asString(raw)
		if err != nil {
			return ArrivalConfig{}, fmt.Errorf("model: %w", err)
		}
		arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	return arrival, nil
}
