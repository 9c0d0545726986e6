package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"sift/internal/lang"
)

type Config struct {
	SourcePaths []string                 `toml:"source_paths"`
	RuleFiles   []string                 `toml:"rule_files"`
	ProjectKey  string                   `toml:"project_key"`
	HistoryPath string                   `toml:"history_path"`
	MetricsAddr string                   `toml:"metrics_addr"`
	Exclude     Exclude                  `toml:"exclude"`
	Watch       Watch                    `toml:"watch"`
	Tracing     Tracing                  `toml:"tracing"`
	Languages   map[string]LanguageToggle `toml:"languages"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// RescansPerSecond throttles how often watch-mode rescans may fire.
	RescansPerSecond float64 `toml:"rescans_per_second"`
}

type Tracing struct {
	Endpoint string `toml:"endpoint"`
}

type LanguageToggle struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
	Filenames  []string `toml:"filenames"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if len(cfg.SourcePaths) == 0 {
		cfg.SourcePaths = []string{"."}
	}
	if len(cfg.RuleFiles) == 0 {
		cfg.RuleFiles = []string{"./rules.toml"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RescansPerSecond == 0 {
		cfg.Watch.RescansPerSecond = 2
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "node_modules", "vendor"}
	}
}

// LanguageOverrides converts the config toggles into registry overrides.
func (c *Config) LanguageOverrides() map[string]lang.Override {
	if len(c.Languages) == 0 {
		return nil
	}
	out := make(map[string]lang.Override, len(c.Languages))
	for id, toggle := range c.Languages {
		out[id] = lang.Override{
			Enabled:    toggle.Enabled,
			Extensions: toggle.Extensions,
			Filenames:  toggle.Filenames,
		}
	}
	return out
}
