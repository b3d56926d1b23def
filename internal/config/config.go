// Package config handles the daemon's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/engagement"
	"github.com/sweeney/attention-sensor/internal/recommend"
)

// Environment variables consulted when the file leaves the API key empty.
var apiKeyEnv = []string{"GENAI_API_KEY", "GEMINI_API_KEY"}

// Config is the root configuration structure.
type Config struct {
	UserID        string                `yaml:"user_id"`
	Broker        string                `yaml:"broker"`
	HTTPAddr      string                `yaml:"http_addr"`
	Capture       string                `yaml:"capture"` // none, gpio or camera
	Debounce      time.Duration         `yaml:"debounce"`
	Heartbeat     time.Duration         `yaml:"heartbeat"`
	Thresholds    engagement.Thresholds `yaml:"thresholds"`
	Simulator     attention.Config      `yaml:"simulator"`
	Target        *attention.Rect       `yaml:"target,omitempty"`
	StoreCapacity int                   `yaml:"store_capacity"`
	Recommend     RecommendConfig       `yaml:"recommend"`
}

// RecommendConfig controls the recommendation generator.
type RecommendConfig struct {
	APIKey    string  `yaml:"api_key"`
	Model     string  `yaml:"model"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second, 0 disables
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		UserID:        "learner",
		Broker:        "tcp://localhost:1883",
		HTTPAddr:      ":8080",
		Capture:       "none",
		Debounce:      3 * time.Second,
		Heartbeat:     15 * time.Minute,
		Thresholds:    engagement.DefaultThresholds(),
		Simulator:     attention.DefaultConfig(),
		StoreCapacity: 1000,
		Recommend: RecommendConfig{
			Model:     recommend.DefaultModel,
			RateLimit: 1,
		},
	}
}

// Load reads path and merges it over Default. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if cfg.Recommend.APIKey == "" {
		for _, name := range apiKeyEnv {
			if v := os.Getenv(name); v != "" {
				cfg.Recommend.APIKey = v
				break
			}
		}
	}
	return cfg, nil
}

// Validate reports every unusable value at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Capture {
	case "", "none", "gpio", "camera":
	default:
		errs = append(errs, fmt.Errorf("unknown capture kind %q", c.Capture))
	}
	if c.Broker == "" {
		errs = append(errs, errors.New("broker is required"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.Debounce < 0 {
		errs = append(errs, errors.New("debounce must not be negative"))
	}
	if c.Heartbeat <= 0 {
		errs = append(errs, errors.New("heartbeat must be positive"))
	}
	if c.Thresholds.DisengageBelow > c.Thresholds.ReengageAbove {
		errs = append(errs, errors.New("thresholds.disengage_below must not exceed thresholds.reengage_above"))
	}
	if c.StoreCapacity <= 0 {
		errs = append(errs, errors.New("store_capacity must be positive"))
	}
	if c.Recommend.RateLimit < 0 {
		errs = append(errs, errors.New("recommend.rate_limit must not be negative"))
	}
	if err := c.Simulator.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("simulator: %w", err))
	}
	return errors.Join(errs...)
}

// SimulatorConfig returns the simulator settings with capture enabled
// whenever a capture kind is selected.
func (c Config) SimulatorConfig() attention.Config {
	sc := c.Simulator
	sc.Capture = c.Capture != "" && c.Capture != "none"
	return sc
}
