// Package config holds the kernel's runtime configuration: datastore
// location, polling/backoff numerics, staleness windows, and logging
// settings. It is YAML-loadable and environment-overridable, following the
// single-struct-plus-DefaultConfig pattern used throughout this codebase.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// StalenessWindow is the maximum age of a class's last set_context call
// before a send from that class is blocked.
type StalenessWindow struct {
	Lead    time.Duration `yaml:"lead"`
	Oracle  time.Duration `yaml:"oracle"`
	Default time.Duration `yaml:"default"`
}

// Polling holds the daemon poll-loop backoff numerics (spec.md §6 default
// numerics table).
type Polling struct {
	Interval        time.Duration `yaml:"interval"`
	MinInterval     time.Duration `yaml:"min_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	NoOutputTimeout time.Duration `yaml:"no_output_timeout"`
	RetryInitial    time.Duration `yaml:"retry_initial"`
	RetryMax        time.Duration `yaml:"retry_max"`
}

// RollingHistory bounds the daemon's replay buffer.
type RollingHistory struct {
	MaxTokens    int `yaml:"max_tokens"`
	MaxPromptChars int `yaml:"max_prompt_chars"`
}

// HealthThresholds holds the HP alert crossing points.
type HealthThresholds struct {
	WoundedPct  int `yaml:"wounded_pct"`
	CriticalPct int `yaml:"critical_pct"`
	AlertHigh   int `yaml:"alert_high"`
	AlertLow    int `yaml:"alert_low"`
}

// Logging mirrors internal/logging.Config in YAML form.
type Logging struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// Config is the full kernel configuration.
type Config struct {
	DBPath                string           `yaml:"db_path"`
	Project               string           `yaml:"project"`
	DocsDir               string           `yaml:"docs_dir"`
	LogDir                string           `yaml:"log_dir"`
	CircuitBreakerThreshold int            `yaml:"circuit_breaker_threshold"`
	DefaultContextWindow  int              `yaml:"default_context_window"`
	Staleness             StalenessWindow  `yaml:"staleness"`
	Polling               Polling          `yaml:"polling"`
	RollingHistory        RollingHistory   `yaml:"rolling_history"`
	Health                HealthThresholds `yaml:"health"`
	Logging               Logging         `yaml:"logging"`
}

// DefaultConfig returns the spec's default numerics (spec.md §6).
func DefaultConfig() *Config {
	return &Config{
		DBPath:  "minion.db",
		Project: "default",
		DocsDir: "docs",
		LogDir:  "logs",
		CircuitBreakerThreshold: 3,
		DefaultContextWindow:    200_000,
		Staleness: StalenessWindow{
			Lead:    15 * time.Minute,
			Oracle:  30 * time.Minute,
			Default: 5 * time.Minute,
		},
		Polling: Polling{
			Interval:        5 * time.Second,
			MinInterval:     1 * time.Second,
			MaxInterval:     30 * time.Second,
			NoOutputTimeout: 600 * time.Second,
			RetryInitial:    30 * time.Second,
			RetryMax:        300 * time.Second,
		},
		RollingHistory: RollingHistory{
			MaxTokens:      100_000,
			MaxPromptChars: 120_000,
		},
		Health: HealthThresholds{
			WoundedPct:  50,
			CriticalPct: 25,
			AlertHigh:   25,
			AlertLow:    10,
		},
		Logging: Logging{
			DebugMode:  false,
			Categories: map[string]bool{},
			JSONFormat: true,
		},
	}
}

// Load reads YAML config from path, falling back to defaults for any field
// the document omits, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides layers DB_PATH, PROJECT, DOCS_DIR onto cfg, per spec.md
// §6's recognized environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PROJECT"); v != "" {
		cfg.Project = v
	}
	if v := os.Getenv("DOCS_DIR"); v != "" {
		cfg.DocsDir = v
	}
	if v := os.Getenv("MINION_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.DebugMode = b
		}
	}
}

// StalenessFor returns the staleness window for a class name.
func (c *Config) StalenessFor(class string) time.Duration {
	switch class {
	case "lead":
		return c.Staleness.Lead
	case "oracle":
		return c.Staleness.Oracle
	default:
		return c.Staleness.Default
	}
}
