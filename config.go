package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process configuration. Values come from an optional YAML
// file, then environment variables, then defaults.
type Config struct {
	Port     string       `mapstructure:"port"`
	LogLevel string       `mapstructure:"log_level"`
	GCP      GCPConfig    `mapstructure:"gcp"`
	Limits   LimitsConfig `mapstructure:"limits"`
	MaxSize  int          `mapstructure:"max_grid_size"`
}

// GCPConfig selects the Vertex AI project used for photo import. Import is
// disabled when ProjectID is empty.
type GCPConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Region    string `mapstructure:"region"`
	Model     string `mapstructure:"model"`
}

// LimitsConfig holds the per-IP request budgets.
type LimitsConfig struct {
	UploadsPerMinute int `mapstructure:"uploads_per_minute"`
	EditsPerSecond   int `mapstructure:"edits_per_second"`
}

var envBindings = map[string]string{
	"port":                      "PORT",
	"log_level":                 "LOG_LEVEL",
	"max_grid_size":             "MAX_GRID_SIZE",
	"gcp.project_id":            "GCP_PROJECT_ID",
	"gcp.region":                "GCP_REGION",
	"gcp.model":                 "GEMINI_MODEL",
	"limits.uploads_per_minute": "UPLOADS_PER_MINUTE",
	"limits.edits_per_second":   "EDITS_PER_SECOND",
}

// LoadConfig reads the configuration. path may be empty, in which case only
// the environment and defaults apply.
func LoadConfig(path string) (*Config, error) {
	vp := viper.New()
	vp.SetDefault("port", "8080")
	vp.SetDefault("log_level", "info")
	vp.SetDefault("max_grid_size", 25)
	vp.SetDefault("gcp.region", defaultRegion)
	vp.SetDefault("gcp.model", defaultModel)
	vp.SetDefault("limits.uploads_per_minute", 5)
	vp.SetDefault("limits.edits_per_second", 60)

	for key, env := range envBindings {
		if err := vp.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		vp.SetConfigFile(path)
		vp.SetConfigType("yaml")
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("max_grid_size must be positive, got %d", cfg.MaxSize)
	}
	return cfg, nil
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
