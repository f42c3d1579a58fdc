// Package config loads the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/tradepulse/internal/gates"
)

// Config is the full runtime configuration.
type Config struct {
	// Instruments fixes the tradable set and its iteration order.
	Instruments []string `yaml:"instruments"`

	// TickIntervalSec is the decision cadence; TickTimeoutSec bounds
	// one tick so a stalled fetch cannot push into the next interval.
	TickIntervalSec int `yaml:"tick_interval_sec"`
	TickTimeoutSec  int `yaml:"tick_timeout_sec"`

	LogLevel string `yaml:"log_level"`

	Feed    FeedConfig   `yaml:"feed"`
	Gate    gates.Config `yaml:"gate"`
	History struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"history"`

	Paper PaperConfig `yaml:"paper"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	// Rules seeds the strategy store with a rule blob per instrument.
	Rules map[string]string `yaml:"rules"`
}

// FeedConfig configures the websocket market data feed.
type FeedConfig struct {
	URL            string  `yaml:"url"`
	BarIntervalSec int     `yaml:"bar_interval_sec"`
	MaxBars        int     `yaml:"max_bars"`
	RateRPS        float64 `yaml:"rate_rps"`
	RateBurst      int     `yaml:"rate_burst"`
}

// PaperConfig configures the paper executor.
type PaperConfig struct {
	Quantity        float64 `yaml:"quantity"`
	MinConfidence   float64 `yaml:"min_confidence"`
	StartingBalance float64 `yaml:"starting_balance"`
}

// Default returns a runnable baseline configuration.
func Default() Config {
	cfg := Config{
		Instruments:     []string{"BTC-USD", "ETH-USD"},
		TickIntervalSec: 60,
		TickTimeoutSec:  30,
		LogLevel:        "info",
		Gate:            gates.DefaultConfig(),
		Paper: PaperConfig{
			Quantity:        1.0,
			MinConfidence:   60.0,
			StartingBalance: 10000.0,
		},
		Feed: FeedConfig{
			BarIntervalSec: 60,
			MaxBars:        200,
			RateRPS:        5,
			RateBurst:      10,
		},
	}
	cfg.History.Capacity = 100
	cfg.HTTP.Addr = ":8087"
	return cfg
}

// Load reads a YAML config file over the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Instruments) == 0 {
		return cfg, fmt.Errorf("config must list at least one instrument")
	}
	if cfg.TickIntervalSec <= 0 {
		cfg.TickIntervalSec = 60
	}
	if cfg.TickTimeoutSec <= 0 || cfg.TickTimeoutSec > cfg.TickIntervalSec {
		cfg.TickTimeoutSec = cfg.TickIntervalSec / 2
	}
	return cfg, nil
}

// TickInterval returns the decision cadence as a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSec) * time.Second
}

// TickTimeout returns the per-tick budget as a duration.
func (c Config) TickTimeout() time.Duration {
	return time.Duration(c.TickTimeoutSec) * time.Second
}
