package config

import "sort"

func preset(mutate func(c *Config)) *Config {
	c := DefaultConfig()
	mutate(c)
	return c
}

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"dense": preset(func(c *Config) {
		c.Particles = 600
		c.InitialInfected = 3
	}),
	"sparse": preset(func(c *Config) {
		c.Particles = 60
		c.Box = BoxConfig{Width: 20, Height: 20}
	}),
	"hot": preset(func(c *Config) {
		c.MaxSpeed = 40
		c.Particles = 300
	}),
	"slow-burn": preset(func(c *Config) {
		c.Epidemic.Transmission = 0.2
		c.Epidemic.TimerDecay = 0.002
		c.Epidemic.InfectiousThreshold = 0.6
	}),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
