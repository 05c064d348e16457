package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Broker.Port != 7497 || !cfg.Broker.PaperTrading {
		t.Fatalf("broker config = %+v", cfg.Broker)
	}
	if cfg.Trading.AccountValue != 25000 {
		t.Fatalf("account value = %v", cfg.Trading.AccountValue)
	}
}

func TestWriteDefaultThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDefault(dir)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("config written to %s", path)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Volume.MaxVolumePercent != 0.001 || cfg.Volume.VolumePriceRatio != 1000 {
		t.Fatalf("volume config = %+v", cfg.Volume)
	}
	if cfg.Monitor.BuyTimeoutSeconds != 60 || cfg.Monitor.FastModeExitMinutes != 20 {
		t.Fatalf("monitor config = %+v", cfg.Monitor)
	}
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	dir := t.TempDir()
	toml := `[trading]
account_value = 50000.0
trade_size_percent = 50.0

[broker]
port = 4002
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Trading.AccountValue != 50000 || cfg.Trading.TradeSizePercent != 50 {
		t.Fatalf("trading config = %+v", cfg.Trading)
	}
	if cfg.Broker.Port != 4002 {
		t.Fatalf("port = %d", cfg.Broker.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Monitor.CooldownMinutes != 5 {
		t.Fatalf("cooldown = %d", cfg.Monitor.CooldownMinutes)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POLYGON_API_KEY", "pk_test_123")
	t.Setenv("BROKER_PORT", "4001")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.APIKey != "pk_test_123" {
		t.Fatalf("api key = %q", cfg.Feed.APIKey)
	}
	if cfg.Broker.Port != 4001 {
		t.Fatalf("port = %d", cfg.Broker.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Broker.Port = 0 }},
		{"zero timeout", func(c *Config) { c.Broker.RequestTimeout = 0 }},
		{"zero inflight", func(c *Config) { c.Broker.MaxInflight = 0 }},
		{"negative account", func(c *Config) { c.Trading.AccountValue = -1 }},
		{"oversized trade", func(c *Config) { c.Trading.TradeSizePercent = 150 }},
		{"zero feed rate", func(c *Config) { c.Feed.RequestsPerSecond = 0 }},
		{"zero fast mode exit", func(c *Config) { c.Monitor.FastModeExitMinutes = 0 }},
		{"negative cooldown", func(c *Config) { c.Monitor.CooldownMinutes = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
