package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the top-level application configuration.
type Config struct {
	Server         ServerConfig              `yaml:"server"`
	Scheduler      SchedulerConfig           `yaml:"scheduler"`
	Providers      map[string]ProviderConfig `yaml:"providers"`
	Search         SearchConfig              `yaml:"search"`
	DefaultModel   string                    `yaml:"default_model"`   // model id an `llm` vertex uses when it sets none
	FallbackModels []string                  `yaml:"fallback_models"` // tried, in order, when a vertex's model fails
}

// SchedulerConfig holds settings for the ready-set scheduler.
type SchedulerConfig struct {
	WorkerConcurrency int `yaml:"worker_concurrency"` // max vertices executing at once per session (default: 5)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ProviderConfig holds model gateway provider settings.
type ProviderConfig struct {
	Type           string        `yaml:"type"`            // e.g. "openai", "gemini"
	URL            string        `yaml:"url"`             // base URL, for the openai-compatible provider
	APIKey         string        `yaml:"api_key"`         // default key; a session's opening frame may override it
	FallbackModels []string      `yaml:"fallback_models"` // parsed but not read by the gateway; fallback uses the top-level FallbackModels
	Models         []ModelConfig `yaml:"models"`          // advertised via GET /models, grounded on Upal's knownModels
}

// ModelConfig describes one model a provider advertises through the
// discovery endpoint (spec.md §6). Pricing is opaque passthrough data the
// core never interprets.
type ModelConfig struct {
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	Pricing *PricingConfig `yaml:"pricing,omitempty"`
}

// PricingConfig carries per-model pricing strings verbatim to clients.
type PricingConfig struct {
	Prompt     string `yaml:"prompt"`
	Completion string `yaml:"completion"`
}

// SearchConfig holds the default search client's endpoint settings.
type SearchConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Scheduler: SchedulerConfig{
			WorkerConcurrency: 5,
		},
		Providers: map[string]ProviderConfig{},
		Search: SearchConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Ensure Providers map is never nil even if YAML has "providers: {}" or omits it.
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	if cfg.Scheduler.WorkerConcurrency <= 0 {
		cfg.Scheduler.WorkerConcurrency = 5
	}
	if cfg.Search.Timeout <= 0 {
		cfg.Search.Timeout = 30 * time.Second
	}

	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns sensible defaults.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}
	return cfg, nil
}
