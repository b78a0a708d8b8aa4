// Package config loads run settings from defaults, presets, files, the
// environment and flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// lookupSetting returns the first of keys present in settings. Section maps are
// lowercased on load, so each key is also tried in lower case.
func lookupSetting(settings map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if val, ok := settings[key]; ok {
			return val, true
		}
		if val, ok := settings[strings.ToLower(key)]; ok {
			return val, true
		}
	}
	return nil, false
}

func asString(value interface{}) (string, error) {
	return cast.ToStringE(value)
}

// asInt accepts any YAML/JSON number or a decimal string. Blank strings are 0.
func asInt(value interface{}) (int, error) {
	if s, ok := value.(string); ok {
		if s = strings.TrimSpace(s); s == "" {
			return 0, nil
		}
		value = s
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %w", err)
	}
	return n, nil
}

// asInt64 is asInt for id columns that exceed 32 bits.
func asInt64(value interface{}) (int64, error) {
	if s, ok := value.(string); ok {
		if s = strings.TrimSpace(s); s == "" {
			return 0, nil
		}
		value = s
	}
	n, err := cast.ToInt64E(value)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %w", err)
	}
	return n, nil
}

func asFloat64(value interface{}) (float64, error) {
	if s, ok := value.(string); ok {
		if s = strings.TrimSpace(s); s == "" {
			return 0, nil
		}
		value = s
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("not a number: %w", err)
	}
	return f, nil
}

func asBool(value interface{}) (bool, error) {
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return false, nil
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return false, fmt.Errorf("not a boolean: %w", err)
	}
	return b, nil
}

// asDuration parses phase lengths, timeouts and the recovery window. Bare
// numbers are seconds, so `duration: 90` in a file means 90s.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("not a duration (use e.g. 30s, 2m): %w", err)
		}
		return d, nil
	}
	secs, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("not a duration: %w", err)
	}
	return time.Duration(secs) * time.Second, nil
}

// asStringSlice reads the thresholds list. A lone string is one threshold and
// is never split on whitespace.
func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	}
	out, err := cast.ToStringSliceE(value)
	if err != nil {
		return nil, fmt.Errorf("expected a list of strings: %w", err)
	}
	return out, nil
}

// toStringKeyMap normalizes a config section (radius, scale, tracing, ...)
// to lowercase string keys.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	raw, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected a section, got %T", value)
	}
	out := make(map[string]interface{}, len(raw))
	for key, val := range raw {
		out[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return out, nil
}
