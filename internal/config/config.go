package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "storyweave.yaml"

type ProjectConfig struct {
	Project     string            `yaml:"project"`
	Version     int               `yaml:"version"`
	Storyworld  string            `yaml:"storyworld" env:"STORYWEAVE_STORYWORLD"`
	LogLevel    string            `yaml:"log_level" env:"STORYWEAVE_LOG_LEVEL"`
	Database    DatabaseConfig    `yaml:"database"`
	Rehearsal   RehearsalConfig   `yaml:"rehearsal"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"STORYWEAVE_DATABASE_DSN"`
}

type RehearsalConfig struct {
	Runs          int      `yaml:"runs" env:"STORYWEAVE_RUNS"`
	Seed          int64    `yaml:"seed" env:"STORYWEAVE_SEED"`
	MaxSteps      int      `yaml:"max_steps" env:"STORYWEAVE_MAX_STEPS"`
	Workers       int      `yaml:"workers" env:"STORYWEAVE_WORKERS"`
	SecretEndings []string `yaml:"secret_endings"`
}

type DiagnosticsConfig struct {
	DeadEndMax    float64 `yaml:"dead_end_max"`
	DominantShare float64 `yaml:"dominant_share"`
	StarvedShare  float64 `yaml:"starved_share"`
	SecretMin     float64 `yaml:"secret_min"`
	SecretMax     float64 `yaml:"secret_max"`
}

// Default returns the settings used for keys a config file leaves out.
func Default(project string) ProjectConfig {
	return ProjectConfig{
		Project: project,
		Version: 1,
		Rehearsal: RehearsalConfig{
			Runs:     10000,
			Seed:     42,
			MaxSteps: 200,
		},
		Diagnostics: DiagnosticsConfig{
			DeadEndMax:    0.05,
			DominantShare: 0.30,
			StarvedShare:  0.01,
			SecretMin:     0.05,
			SecretMax:     0.12,
		},
	}
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	cfg := Default("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	if err := ParseEnv(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path, falling back to defaults plus environment
// overrides when the file does not exist.
func LoadOrDefault(path string) (*ProjectConfig, error) {
	cfg, err := LoadProjectConfig(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	def := Default("storyweave")
	if err := ParseEnv(&def); err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}
	if err := validateProjectConfig(&def); err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}
	return &def, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg ProjectConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding project config: %w", err)
	}
	return data, nil
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" && BackendOf(dsn) == "" {
		return fmt.Errorf("unsupported database dsn scheme: %s", dsn)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", cfg.LogLevel)
	}

	r := cfg.Rehearsal
	if r.Runs <= 0 {
		return fmt.Errorf("rehearsal runs must be positive")
	}
	if r.MaxSteps <= 0 {
		return fmt.Errorf("rehearsal max_steps must be positive")
	}
	if r.Workers < 0 {
		return fmt.Errorf("rehearsal workers must not be negative")
	}
	seen := make(map[string]struct{})
	for i, id := range r.SecretEndings {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("secret ending %d is empty", i)
		}
		if _, exists := seen[id]; exists {
			return fmt.Errorf("duplicate secret ending: %s", id)
		}
		seen[id] = struct{}{}
	}

	d := cfg.Diagnostics
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"dead_end_max", d.DeadEndMax},
		{"dominant_share", d.DominantShare},
		{"starved_share", d.StarvedShare},
		{"secret_min", d.SecretMin},
		{"secret_max", d.SecretMax},
	} {
		if t.value < 0 || t.value > 1 {
			return fmt.Errorf("diagnostics %s must be within [0, 1], got %v", t.name, t.value)
		}
	}
	if d.SecretMin > d.SecretMax {
		return fmt.Errorf("diagnostics secret_min %v exceeds secret_max %v", d.SecretMin, d.SecretMax)
	}

	return nil
}

// BackendOf names the report store backend a DSN selects, or "" when the
// scheme is not supported.
func BackendOf(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite"
	default:
		return ""
	}
}
