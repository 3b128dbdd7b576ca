package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the serve-time configuration. All fields have working defaults
// so the server runs with no config file at all.
type Config struct {
	Addr         string `yaml:"addr"`
	PollInterval string `yaml:"poll_interval"`
	LogLevel     string `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Addr:         ":8080",
		PollInterval: "2s",
		LogLevel:     "info",
	}
}

// loadConfig reads a yaml config file over the defaults. An empty path
// means defaults only.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Interval parses the poll interval, falling back to the reference 2s on
// a bad or missing value.
func (c Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return defaultPollInterval
	}
	return d
}
