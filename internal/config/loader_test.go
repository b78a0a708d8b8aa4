package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int64
	}{
		{int64(900000), 900000},
		{"9000000000", 9000000000},
		{12, 12},
		{float64(3), 3},
		{"", 0},
	}
	for _, tt := range tests {
		got, err := asInt64(tt.input)
		if err != nil {
			t.Errorf("asInt64(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt64(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsStringSliceKeepsLoneThresholdWhole(t *testing.T) {
	got, err := asStringSlice("outage:error_pct < 5")
	if err != nil {
		t.Fatalf("asStringSlice() error = %v", err)
	}
	if len(got) != 1 || got[0] != "outage:error_pct < 5" {
		t.Fatalf("asStringSlice() = %q", got)
	}

	got, err = asStringSlice([]interface{}{"p99 < 500", "error_pct < 2"})
	if err != nil {
		t.Fatalf("asStringSlice() error = %v", err)
	}
	if len(got) != 2 || got[1] != "error_pct < 2" {
		t.Fatalf("asStringSlice() = %q", got)
	}
}

func TestToStringKeyMapLowercasesSectionKeys(t *testing.T) {
	got, err := toStringKeyMap(map[interface{}]interface{}{" Host ": "radius1", "PORT": 1812})
	if err != nil {
		t.Fatalf("toStringKeyMap() error = %v", err)
	}
	if got["host"] != "radius1" || got["port"] != 1812 {
		t.Fatalf("toStringKeyMap() = %v", got)
	}
	if _, err := toStringKeyMap([]string{"radius"}); err == nil {
		t.Fatal("expected error for a non-map section")
	}
}

func TestAsDurationRejectsGarbage(t *testing.T) {
	if d, err := asDuration(90.0); err != nil || d != 90*time.Second {
		t.Fatalf("asDuration(90.0) = %v, %v", d, err)
	}
	_, err := asDuration("soon")
	if err == nil || !strings.Contains(err.Error(), "not a duration") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Default()
	settings := map[string]interface{}{
		"radius": map[string]interface{}{
			"host":    "radius.example",
			"port":    "1645",
			"timeout": 3,
		},
		"steady": map[string]interface{}{
			"duration":    "20s",
			"concurrency": 50,
		},
		"scale":     map[interface{}]interface{}{"count": 10, "id_base": "1000000", "keep": "true"},
		"peak_rps":  1500,
		"log_level": "debug",
	}

	if err := applyConfigSettings(&cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.Radius.Host != "radius.example" || cfg.Radius.Port != 1645 {
		t.Errorf("Radius = %+v", cfg.Radius)
	}
	if cfg.Radius.Timeout != 3*time.Second {
		t.Errorf("Radius.Timeout = %v, want 3s", cfg.Radius.Timeout)
	}
	if cfg.Steady.Duration != 20*time.Second || cfg.Steady.Concurrency != 50 {
		t.Errorf("Steady = %+v", cfg.Steady)
	}
	if cfg.Ramp.Duration != 30*time.Second {
		t.Errorf("Ramp.Duration changed to %v", cfg.Ramp.Duration)
	}
	if cfg.Scale.Count != 10 || cfg.Scale.IDBase != 1000000 || !cfg.Scale.Keep {
		t.Errorf("Scale = %+v", cfg.Scale)
	}
	if cfg.PeakRPS != 1500 {
		t.Errorf("PeakRPS = %d, want 1500", cfg.PeakRPS)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestApplyConfigSettingsErrors(t *testing.T) {
	cfg := Default()
	err := applyConfigSettings(&cfg, map[string]interface{}{
		"steady": map[string]interface{}{"duration": "soon"},
	})
	if err == nil || !strings.Contains(err.Error(), "steady") {
		t.Fatalf("expected steady duration error, got %v", err)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Default()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--steady-rps=5",
		"--outage-duration=1m",
		"--scale-profile-id=42",
		"--dashboard",
		"--threshold=auth_errors:rate < 0.01",
		"--threshold=auth_duration:p99 < 200",
		"--arrival-model=POISSON",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(&cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.SteadyRPS != 5 {
		t.Errorf("SteadyRPS = %d, want 5", cfg.SteadyRPS)
	}
	if cfg.Outage.Duration != time.Minute {
		t.Errorf("Outage.Duration = %v, want 1m", cfg.Outage.Duration)
	}
	if cfg.Scale.ProfileID != 42 {
		t.Errorf("Scale.ProfileID = %d, want 42", cfg.Scale.ProfileID)
	}
	if !cfg.Dashboard {
		t.Errorf("Dashboard = false, want true")
	}
	if len(cfg.Thresholds) != 2 {
		t.Errorf("Thresholds = %v, want 2 entries", cfg.Thresholds)
	}
	if cfg.Arrival.Model != ArrivalModelPoisson {
		t.Errorf("Arrival.Model = %q, want poisson", cfg.Arrival.Model)
	}
	if cfg.PeakRPS != 1000 {
		t.Errorf("PeakRPS = %d, want untouched default 1000", cfg.PeakRPS)
	}
}

func TestCollectEnv(t *testing.T) {
	env := map[string]string{
		"RADIUS_HOST":     "legacy",
		"SCALE":           "10",
		"AUTHSTORM_SCALE": "",
	}
	settings := collectEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	radius, ok := settings["radius"].(map[string]interface{})
	if !ok || radius["host"] != "legacy" {
		t.Fatalf("radius settings = %v", settings["radius"])
	}
	scale, ok := settings["scale"].(map[string]interface{})
	if !ok || scale["count"] != "10" {
		t.Fatalf("scale settings = %v (empty prefixed value must fall through)", settings["scale"])
	}
	if _, ok := settings["pg_dsn"]; ok {
		t.Fatalf("unexpected pg_dsn setting")
	}
}

func TestPresetsEmbedded(t *testing.T) {
	names := Presets()
	want := []string{"default", "full", "quick"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("Presets() = %v, want %v", names, want)
	}
}
