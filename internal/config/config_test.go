package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, "BTCUSDT", cfg.Market.Symbol)
	assert.Equal(t, "1m", cfg.Market.Interval)
	assert.Equal(t, 200, cfg.Market.HistoryLimit)
	assert.Equal(t, 10, cfg.Coach.CountdownSeconds)
	assert.Equal(t, 200, cfg.Coach.CandleCap)
	assert.Equal(t, "gpt-4o", cfg.Judge.Model)
	assert.Equal(t, 30, cfg.Judge.TimeoutSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Market.Symbol = "ETHUSDT"
	cfg.Coach.CountdownSeconds = 5
	applyDefaults(cfg)

	assert.Equal(t, "ETHUSDT", cfg.Market.Symbol)
	assert.Equal(t, 5, cfg.Coach.CountdownSeconds)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"empty symbol", func(c *Config) { c.Market.Symbol = "" }, true},
		{"bad interval", func(c *Config) { c.Market.Interval = "1d" }, true},
		{"history limit too high", func(c *Config) { c.Market.HistoryLimit = 5000 }, true},
		{"negative countdown", func(c *Config) { c.Coach.CountdownSeconds = -1 }, true},
		{"zero countdown allowed", func(c *Config) { c.Coach.CountdownSeconds = 0 }, false},
		{"zero candle cap", func(c *Config) { c.Coach.CandleCap = 0 }, true},
		{"zero judge timeout", func(c *Config) { c.Judge.TimeoutSeconds = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadCreatesTemplates(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	require.Error(t, err)

	// Both template files were written for the user to fill in.
	if _, statErr := os.Stat(filepath.Join(dir, "config.toml")); statErr != nil {
		t.Errorf("config.toml not created: %v", statErr)
	}
}

func TestHasJudge(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.HasJudge())

	cfg.Credentials.OpenAI.APIKey = "sk-test"
	assert.True(t, cfg.HasJudge())
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GHOST_SYMBOL", "SOLUSDT")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := validConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "SOLUSDT", cfg.Market.Symbol)
	assert.Equal(t, "sk-env", cfg.Credentials.OpenAI.APIKey)
}
