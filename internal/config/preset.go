package config

import "slices"

// Preset is a named scan size relative to the latest article ID.
type Preset struct {
	Name string
	// Span is the number of newest IDs covered; zero covers everything
	// from the oldest known ID.
	Span      int
	Workers   int
	BatchSize int
}

// Presets lists the range presets from smallest to largest.
var Presets = []Preset{
	{Name: "test", Span: 100, Workers: 10, BatchSize: 50},
	{Name: "small", Span: 1000, Workers: 15, BatchSize: 100},
	{Name: "medium", Span: 10000, Workers: 20, BatchSize: 500},
	{Name: "large", Span: 50000, Workers: 25, BatchSize: 500},
	{Name: "massive", Span: 100000, Workers: 25, BatchSize: 500},
	{Name: "maximum", Span: 0, Workers: 25, BatchSize: 500},
}

// LookupPreset returns the preset with the given name.
func LookupPreset(name string) (Preset, bool) {
	i := slices.IndexFunc(Presets, func(p Preset) bool { return p.Name == name })
	if i < 0 {
		return Preset{}, false
	}
	return Presets[i], true
}

// PresetNames returns the preset names in size order.
func PresetNames() []string {
	names := make([]string, len(Presets))
	for i, p := range Presets {
		names[i] = p.Name
	}
	return names
}

// Range returns the inclusive ID bounds of the preset. The lower bound is
// clamped at 1.
func (p Preset) Range(latest, oldest int) (int, int) {
	if p.Span == 0 {
		return max(oldest, 1), latest
	}
	return max(latest-p.Span+1, 1), latest
}

// ApplySizing sets the preset's worker and batch sizing on c.
func (p Preset) ApplySizing(c *Config) {
	c.Workers = p.Workers
	c.BatchSize = p.BatchSize
}
