package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type ProjectConfig struct {
	Project    string           `yaml:"project"`
	Version    int              `yaml:"version"`
	GameSystem string           `yaml:"game_system"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Validation ValidationConfig `yaml:"validation"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type SchedulerConfig struct {
	Workers int `yaml:"workers"`
}

type ValidationConfig struct {
	// FreshnessMinutes is the caller-side window: a validate request is
	// skipped when the module was validated more recently, unless forced.
	FreshnessMinutes int `yaml:"freshness_minutes"`
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Validation.FreshnessMinutes == 0 {
		cfg.Validation.FreshnessMinutes = 60
	}

	return &cfg, nil
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.GameSystem) == "" {
		return fmt.Errorf("game_system is required")
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler workers must not be negative")
	}
	if cfg.Validation.FreshnessMinutes < 0 {
		return fmt.Errorf("validation freshness_minutes must not be negative")
	}
	return nil
}
