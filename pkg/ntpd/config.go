package ntpd

import (
	"os"

	"gopkg.in/yaml.v2"
)

// FileConfig mirrors the server settings in yaml form.
type FileConfig struct {
	Bind        []string `yaml:"bind,flow"`
	Debug       bool     `yaml:"debug"`
	MetricsAddr string   `yaml:"metrics_addr"`
	Rate        float64  `yaml:"rate"`
	Burst       int      `yaml:"burst"`
}

// Flags carries the values resolved from the command line and
// environment by the daemon.
type Flags struct {
	Bind        []string
	Debug       bool
	MetricsAddr string
	Rate        float64
	Burst       int
}

// LoadConfig reads the optional yaml file at path and overlays the
// flag values on top: a flag that was actually set wins over the
// file. Defaults for anything still unset are applied later by
// Config.normalize.
func LoadConfig(path string, flags Flags) (Config, error) {
	var file FileConfig
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &file); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		BindAddrs:          flags.Bind,
		Debug:              flags.Debug || file.Debug,
		MetricsAddr:        flags.MetricsAddr,
		RateLimitPerSecond: flags.Rate,
		RateLimitBurst:     flags.Burst,
	}
	if len(cfg.BindAddrs) == 0 {
		cfg.BindAddrs = file.Bind
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = file.MetricsAddr
	}
	if cfg.RateLimitPerSecond == 0 {
		cfg.RateLimitPerSecond = file.Rate
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = file.Burst
	}
	return cfg, nil
}
