// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Broker  BrokerConfig  `mapstructure:"broker"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Trading TradingConfig `mapstructure:"trading"`
	Volume  VolumeConfig  `mapstructure:"volume"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// BrokerConfig holds broker session configuration.
type BrokerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	ClientID       int    `mapstructure:"client_id"`
	PaperTrading   bool   `mapstructure:"paper_trading"`
	RequestTimeout int    `mapstructure:"request_timeout_seconds"`
	MaxInflight    int    `mapstructure:"max_inflight_requests"`
}

// FeedConfig holds market-data feed configuration.
type FeedConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// TradingConfig holds position sizing configuration.
type TradingConfig struct {
	AccountValue     float64 `mapstructure:"account_value"`
	TradeSizePercent float64 `mapstructure:"trade_size_percent"`
}

// VolumeConfig holds the volume gate configuration.
type VolumeConfig struct {
	MaxVolumePercent float64 `mapstructure:"max_volume_percent"`
	VolumePriceRatio float64 `mapstructure:"volume_price_ratio"`
}

// MonitorConfig holds per-monitor state machine configuration.
type MonitorConfig struct {
	FastModeExitMinutes int `mapstructure:"fast_mode_exit_minutes"`
	CooldownMinutes     int `mapstructure:"cooldown_minutes"`
	BuyTimeoutSeconds   int `mapstructure:"buy_timeout_seconds"`
	MaxTradeMinutes     int `mapstructure:"max_trade_minutes"`
}

// PathsConfig holds file locations for the journal and ticker universe.
type PathsConfig struct {
	TickersFile  string `mapstructure:"tickers_file"`
	TradableFile string `mapstructure:"tradable_file"`
	JournalFile  string `mapstructure:"journal_file"`
	DatabaseFile string `mapstructure:"database_file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/momentum-trader"
	}
	return filepath.Join(home, ".config", "momentum-trader")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := DefaultConfigDir()
	return &Config{
		Broker: BrokerConfig{
			Host:           "127.0.0.1",
			Port:           7497,
			ClientID:       0,
			PaperTrading:   true,
			RequestTimeout: 5,
			MaxInflight:    8,
		},
		Feed: FeedConfig{
			BaseURL:           "https://api.polygon.io",
			TimeoutSeconds:    10,
			RequestsPerSecond: 10,
		},
		Trading: TradingConfig{
			AccountValue:     25000,
			TradeSizePercent: 100.0,
		},
		Volume: VolumeConfig{
			MaxVolumePercent: 0.001,
			VolumePriceRatio: 1000,
		},
		Monitor: MonitorConfig{
			FastModeExitMinutes: 20,
			CooldownMinutes:     5,
			BuyTimeoutSeconds:   60,
			MaxTradeMinutes:     10,
		},
		Paths: PathsConfig{
			TickersFile:  filepath.Join(dir, "tickers.json"),
			TradableFile: filepath.Join(dir, "tradable.json"),
			JournalFile:  filepath.Join(dir, "trades.csv"),
			DatabaseFile: filepath.Join(dir, "trader.db"),
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file falls back to defaults; anything else is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("POLYGON_API_KEY"); key != "" {
		cfg.Feed.APIKey = key
	}
	if host := os.Getenv("BROKER_HOST"); host != "" {
		cfg.Broker.Host = host
	}
	if port := os.Getenv("BROKER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Broker.Port = p
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		return fmt.Errorf("broker.port out of range: %d", c.Broker.Port)
	}
	if c.Broker.RequestTimeout <= 0 {
		return fmt.Errorf("broker.request_timeout_seconds must be positive")
	}
	if c.Broker.MaxInflight <= 0 {
		return fmt.Errorf("broker.max_inflight_requests must be positive")
	}
	if c.Trading.AccountValue <= 0 {
		return fmt.Errorf("trading.account_value must be positive")
	}
	if c.Trading.TradeSizePercent <= 0 || c.Trading.TradeSizePercent > 100 {
		return fmt.Errorf("trading.trade_size_percent must be in (0, 100]")
	}
	if c.Feed.RequestsPerSecond <= 0 {
		return fmt.Errorf("feed.requests_per_second must be positive")
	}
	if c.Monitor.FastModeExitMinutes <= 0 {
		return fmt.Errorf("monitor.fast_mode_exit_minutes must be positive")
	}
	if c.Monitor.CooldownMinutes < 0 {
		return fmt.Errorf("monitor.cooldown_minutes must not be negative")
	}
	return nil
}

// WriteDefault writes the default config file to the given directory,
// creating the directory if needed. Existing files are left alone.
func WriteDefault(configDir string) (string, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.WriteFile(path, []byte(defaultConfigTOML), 0644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}

const defaultConfigTOML = `[broker]
host = "127.0.0.1"
port = 7497
client_id = 0
paper_trading = true
request_timeout_seconds = 5
max_inflight_requests = 8

[feed]
api_key = ""
base_url = "https://api.polygon.io"
timeout_seconds = 10
requests_per_second = 10.0

[trading]
account_value = 25000.0
trade_size_percent = 100.0

[volume]
max_volume_percent = 0.001
volume_price_ratio = 1000.0

[monitor]
fast_mode_exit_minutes = 20
cooldown_minutes = 5
buy_timeout_seconds = 60
max_trade_minutes = 10
`
