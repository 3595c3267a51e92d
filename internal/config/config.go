// Package config exposes strongly typed application configuration structs
// loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment,
// metrics address, and logging level.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed describes where market data comes from.
type Feed struct {
	Provider string   `yaml:"provider"`
	Symbols  []string `yaml:"symbols"`
	// Depth of the order book stream requested from the venue.
	BookLevels int `yaml:"book_levels"`
}

// Engine groups the tunable analytics knobs.
type Engine struct {
	EntryThreshold float64 `yaml:"entry_threshold"`
	ExitThreshold  float64 `yaml:"exit_threshold"`
	// FactorDecay is attached to every emitted alpha factor. Defaults to
	// exp(-0.1) when zero.
	FactorDecay float64 `yaml:"factor_decay"`
}

// Risk encodes guard-rails for how much size the engine may take on.
type Risk struct {
	MaxPositionSize        float64 `yaml:"max_position_size"`
	DailyLossLimit         float64 `yaml:"daily_loss_limit"`
	MaxDrawdown            float64 `yaml:"max_drawdown"`
	ConcentrationLimit     float64 `yaml:"concentration_limit"`
	LeverageLimit          float64 `yaml:"leverage_limit"`
	StopLossPercent        float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent      float64 `yaml:"take_profit_percent"`
	MaxCorrelatedPositions int     `yaml:"max_correlated_positions"`
}

// Pair configures one stat-arb trading pair.
type Pair struct {
	Symbol1             string  `yaml:"symbol1"`
	Symbol2             string  `yaml:"symbol2"`
	HedgeRatio          float64 `yaml:"hedge_ratio"`
	Correlation         float64 `yaml:"correlation"`
	CointegrationPValue float64 `yaml:"cointegration_pvalue"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App    App    `yaml:"app"`
	Feed   Feed   `yaml:"feed"`
	Engine Engine `yaml:"engine"`
	Risk   Risk   `yaml:"risk"`
	Pairs  []Pair `yaml:"pairs"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
