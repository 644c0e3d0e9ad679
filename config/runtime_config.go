package config

// RuntimeConfig defines the subset of the configuration that can be
// safely modified at runtime through the web API. It excludes
// hardware-specific settings and the wiring of the audio, peripheral
// and announce channels.
type RuntimeConfig struct {
	Detection   DetectionConfig   `yaml:"Detection" json:"Detection"`
	Celebration CelebrationConfig `yaml:"Celebration" json:"Celebration"`
	Ambient     AmbientConfig     `yaml:"Ambient" json:"Ambient"`
}

// Runtime extracts the runtime-safe part of c.
func (c *Config) Runtime() RuntimeConfig {
	return RuntimeConfig{
		Detection:   c.Detection,
		Celebration: c.Celebration,
		Ambient:     c.Ambient,
	}
}

// ApplyRuntime merges r into c, leaving everything else untouched.
func (c *Config) ApplyRuntime(r RuntimeConfig) {
	c.Detection = r.Detection
	c.Celebration = r.Celebration
	c.Ambient = r.Ambient
}
