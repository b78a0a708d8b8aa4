package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	PresetDefault = "default"
	PresetQuick   = "quick"
	PresetFull    = "full"
)

//go:embed presets.yaml
var presetsYAML []byte

// Presets returns the names of the built-in run profiles.
func Presets() []string {
	presets, err := loadPresets()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func loadPresets() (map[string]map[string]interface{}, error) {
	var presets map[string]map[string]interface{}
	if err := yaml.Unmarshal(presetsYAML, &presets); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	return presets, nil
}

// applyPreset overlays the named profile onto cfg.
func applyPreset(cfg *Config, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = PresetDefault
	}
	presets, err := loadPresets()
	if err != nil {
		return err
	}
	settings, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(Presets(), ", "))
	}
	if err := applyConfigSettings(cfg, settings); err != nil {
		return fmt.Errorf("preset %s: %w", name, err)
	}
	cfg.Preset = name
	return nil
}
