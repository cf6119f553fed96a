package config

import (
	"fmt"
	"slices"
	"time"
)

// Preset fixes the load generator key space and test time.
type Preset struct {
	Name       string
	KeyMaximum int
	TestTime   time.Duration
}

// Preset names.
const (
	PresetSweep   = "sweep"
	PresetCompare = "compare"
)

var presets = map[string]Preset{
	PresetSweep: {
		Name:       PresetSweep,
		KeyMaximum: 100_000,
		TestTime:   3 * time.Second,
	},
	PresetCompare: {
		Name:       PresetCompare,
		KeyMaximum: 10_000_000,
		TestTime:   30 * time.Second,
	},
}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (want one of %v)", name, PresetNames())
	}

	return p, nil
}

// PresetNames returns the known preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
