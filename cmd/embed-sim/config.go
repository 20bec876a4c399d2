package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SimConfig is the embed-sim configuration, loaded from YAML with
// environment overrides for the deployment-specific values.
type SimConfig struct {
	Port     string `yaml:"port"`
	RedisURL string `yaml:"redis_url"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Cache struct {
		Capacity      int           `yaml:"capacity"`
		MaxEntryAge   time.Duration `yaml:"max_entry_age"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"cache"`

	Simulation struct {
		Resources            []string      `yaml:"resources"`
		InstancesPerResource int           `yaml:"instances_per_resource"`
		FailuresPerResource  int           `yaml:"failures_per_resource"`
		RenderDelay          time.Duration `yaml:"render_delay"`
	} `yaml:"simulation"`
}

// defaultSimConfig returns the configuration used when no file is given.
func defaultSimConfig() SimConfig {
	var cfg SimConfig
	cfg.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Cache.Capacity = 50
	cfg.Cache.MaxEntryAge = 6 * time.Hour
	cfg.Cache.SweepInterval = 10 * time.Minute
	cfg.Simulation.Resources = []string{"sales-report", "ops-dashboard", "finance-report"}
	cfg.Simulation.InstancesPerResource = 2
	cfg.Simulation.FailuresPerResource = 1
	cfg.Simulation.RenderDelay = 50 * time.Millisecond
	return cfg
}

// loadConfig reads the YAML config file when path is non-empty, then applies
// environment overrides.
func loadConfig(path string) (SimConfig, error) {
	cfg := defaultSimConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
