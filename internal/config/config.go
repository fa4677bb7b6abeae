// Package config provides configuration management for the coaching terminal.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Market      MarketConfig `mapstructure:"market"`
	Coach       CoachConfig  `mapstructure:"coach"`
	Judge       JudgeConfig  `mapstructure:"judge"`
	UI          UIConfig     `mapstructure:"ui"`
	Credentials Credentials  `mapstructure:"-"` // Loaded separately
}

// MarketConfig holds market data configuration.
type MarketConfig struct {
	Symbol       string `mapstructure:"symbol"`
	Interval     string `mapstructure:"interval"` // 1m, 5m, 15m, 1h
	HistoryLimit int    `mapstructure:"history_limit"`
	RESTBase     string `mapstructure:"rest_base"`
	WSBase       string `mapstructure:"ws_base"`
}

// CoachConfig holds session behavior configuration.
type CoachConfig struct {
	CountdownSeconds int    `mapstructure:"countdown_seconds"`
	CandleCap        int    `mapstructure:"candle_cap"`
	DatabasePath     string `mapstructure:"database_path"`
}

// JudgeConfig holds LLM judge configuration.
type JudgeConfig struct {
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
}

// Credentials holds API credentials.
type Credentials struct {
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/ghost-coach"
	}
	return filepath.Join(home, ".config", "ghost-coach")
}

// DefaultDatabasePath returns the default SQLite database location.
func DefaultDatabasePath() string {
	return filepath.Join(DefaultConfigDir(), "ghost.db")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyDefaults(cfg *Config) {
	if cfg.Market.Symbol == "" {
		cfg.Market.Symbol = "BTCUSDT"
	}
	if cfg.Market.Interval == "" {
		cfg.Market.Interval = "1m"
	}
	if cfg.Market.HistoryLimit == 0 {
		cfg.Market.HistoryLimit = 200
	}
	if cfg.Market.RESTBase == "" {
		cfg.Market.RESTBase = "https://api.binance.com"
	}
	if cfg.Market.WSBase == "" {
		cfg.Market.WSBase = "wss://stream.binance.com:9443/ws"
	}
	if cfg.Coach.CountdownSeconds == 0 {
		cfg.Coach.CountdownSeconds = 10
	}
	if cfg.Coach.CandleCap == 0 {
		cfg.Coach.CandleCap = 200
	}
	if cfg.Coach.DatabasePath == "" {
		cfg.Coach.DatabasePath = DefaultDatabasePath()
	}
	if cfg.Judge.Model == "" {
		cfg.Judge.Model = "gpt-4o"
	}
	if cfg.Judge.TimeoutSeconds == 0 {
		cfg.Judge.TimeoutSeconds = 30
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("GHOST_SYMBOL"); v != "" {
		cfg.Market.Symbol = v
	}
	if v := os.Getenv("BINANCE_API_BASE"); v != "" {
		cfg.Market.RESTBase = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Market.Symbol == "" {
		return fmt.Errorf("market symbol must not be empty")
	}
	switch c.Market.Interval {
	case "1m", "5m", "15m", "1h":
	default:
		return fmt.Errorf("invalid interval: %s (must be one of 1m, 5m, 15m, 1h)", c.Market.Interval)
	}
	if c.Market.HistoryLimit < 1 || c.Market.HistoryLimit > 1000 {
		return fmt.Errorf("history_limit must be between 1 and 1000")
	}
	if c.Coach.CountdownSeconds < 0 {
		return fmt.Errorf("countdown_seconds must be non-negative")
	}
	if c.Coach.CandleCap < 1 {
		return fmt.Errorf("candle_cap must be positive")
	}
	if c.Judge.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	return nil
}

// HasJudge returns true if an LLM API key is configured.
func (c *Config) HasJudge() bool {
	return c.Credentials.OpenAI.APIKey != ""
}
