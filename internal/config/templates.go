package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Ghost Coach Configuration

[market]
# Binance spot symbol
symbol = "BTCUSDT"
# Candle interval: 1m, 5m, 15m, 1h
interval = "1m"
# Number of historical candles to load on startup (max 1000)
history_limit = 200
# Binance REST API base URL
rest_base = "https://api.binance.com"
# Binance websocket base URL
ws_base = "wss://stream.binance.com:9443/ws"

[coach]
# Seconds the proceed option stays locked during an intervention
countdown_seconds = 10
# Maximum candles kept in memory and on disk per symbol
candle_cap = 200
# SQLite database path (empty = default under the config dir)
database_path = ""

[judge]
# LLM model used for judgment, narration and playbook synthesis
model = "gpt-4o"
# Per-call timeout in seconds
timeout_seconds = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "02-Jan-2006"
# Time format
time_format = "15:04:05"
`

const credentialsTemplate = `# Ghost Coach Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[openai]
api_key = ""
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return fmt.Errorf("credentials file not found, created template at %s", path)
}
