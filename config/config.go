// Package config loads service configuration from YAML with environment
// variable expansion, so deployments keep secrets out of the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Planner   PlannerConfig   `yaml:"planner"`
	Amadeus   AmadeusConfig   `yaml:"amadeus"`
	Weather   WeatherConfig   `yaml:"weather"`
	Registry  RegistryConfig  `yaml:"registry"`
	Routing   RoutingConfig   `yaml:"routing"`
	Tracing   TracingConfig   `yaml:"tracing"`
	LogLevel  string          `yaml:"log_level"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PlannerConfig configures the language model backend.
type PlannerConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

// AmadeusConfig configures the flight and hotel provider.
type AmadeusConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// WeatherConfig configures the weather provider.
type WeatherConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// RegistryConfig configures periodic endpoint health checks.
type RegistryConfig struct {
	Interval     time.Duration `yaml:"interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// RoutingConfig configures retry behavior for capability calls.
type RoutingConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	Environment string `yaml:"environment"`
}

// AssistantConfig tunes the dispatch loop.
type AssistantConfig struct {
	SystemPrompt string        `yaml:"system_prompt"`
	MaxParallel  int           `yaml:"max_parallel"`
	TurnTimeout  time.Duration `yaml:"turn_timeout"`
	PlannerCall  time.Duration `yaml:"planner_call_timeout"`
}

// Load reads, expands and validates a YAML configuration file. Values of the
// form ${VAR} are replaced from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with sensible defaults; Load layers the
// file on top of it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Planner: PlannerConfig{
			Model: "gpt-4o-mini",
		},
		Amadeus: AmadeusConfig{
			BaseURL: "https://test.api.amadeus.com",
		},
		Weather: WeatherConfig{
			BaseURL: "https://api.openweathermap.org/data/2.5",
		},
		Registry: RegistryConfig{
			Interval:     30 * time.Second,
			ProbeTimeout: 5 * time.Second,
		},
		Routing: RoutingConfig{
			MaxRetries:  2,
			RetryDelay:  200 * time.Millisecond,
			CallTimeout: 15 * time.Second,
		},
		LogLevel: "info",
	}
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	if c.Planner.APIKey == "" {
		return errors.New("config: planner.api_key is required")
	}
	if c.Amadeus.APIKey == "" || c.Amadeus.APISecret == "" {
		return errors.New("config: amadeus.api_key and amadeus.api_secret are required")
	}
	if c.Weather.APIKey == "" {
		return errors.New("config: weather.api_key is required")
	}
	if c.Registry.Interval <= 0 {
		return errors.New("config: registry.interval must be positive")
	}
	if c.Routing.MaxRetries < 0 {
		return errors.New("config: routing.max_retries must not be negative")
	}
	return nil
}
