// Package config loads the tracker configuration from a YAML file with
// sane defaults for everything optional.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultQuoteAsset       = "USDT"
	DefaultSnapshotSchedule = "@every 1h"
	DefaultAlertSchedule    = "@every 5m"
	DefaultAlertDedupWindow = 6 * time.Hour
	DefaultDataDir          = "data"
	DefaultWebAddr          = ":8080"
)

type Config struct {
	Platform         string
	Portfolios       []string
	QuoteAsset       string
	Stablecoin       string
	SnapshotSchedule string
	AlertSchedule    string
	AlertDedupWindow time.Duration
	WebhookURL       string
	WebAddr          string
	TLSDomains       []string
	DataDir          string
}

type ConfigTmp struct {
	Platform         string        `yaml:"platform"`
	Portfolios       []string      `yaml:"portfolios"`
	QuoteAsset       string        `yaml:"quote_asset,omitempty"`
	Stablecoin       string        `yaml:"stablecoin,omitempty"`
	SnapshotSchedule string        `yaml:"snapshot_schedule,omitempty"`
	AlertSchedule    string        `yaml:"alert_schedule,omitempty"`
	AlertDedupWindow time.Duration `yaml:"alert_dedup_window,omitempty"`
	WebhookURL       string        `yaml:"webhook_url,omitempty"`
	WebAddr          string        `yaml:"web_addr,omitempty"`
	TLSDomains       []string      `yaml:"tls_domains,omitempty"`
	DataDir          string        `yaml:"data_dir,omitempty"`
}

// Get reads the config path from the -config flag and loads it.
func Get() (Config, error) {
	path := flag.String("config", "folio.yaml", "path to yaml config")
	flag.Parse()
	return FromFile(*path)
}

// FromFile loads and validates configuration from a YAML file.
func FromFile(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Platform:         tmp.Platform,
		Portfolios:       tmp.Portfolios,
		QuoteAsset:       tmp.QuoteAsset,
		Stablecoin:       tmp.Stablecoin,
		SnapshotSchedule: tmp.SnapshotSchedule,
		AlertSchedule:    tmp.AlertSchedule,
		AlertDedupWindow: tmp.AlertDedupWindow,
		WebhookURL:       tmp.WebhookURL,
		WebAddr:          tmp.WebAddr,
		TLSDomains:       tmp.TLSDomains,
		DataDir:          tmp.DataDir,
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.QuoteAsset == "" {
		c.QuoteAsset = DefaultQuoteAsset
	}
	if c.Stablecoin == "" {
		c.Stablecoin = c.QuoteAsset
	}
	if c.SnapshotSchedule == "" {
		c.SnapshotSchedule = DefaultSnapshotSchedule
	}
	if c.AlertSchedule == "" {
		c.AlertSchedule = DefaultAlertSchedule
	}
	if c.AlertDedupWindow <= 0 {
		c.AlertDedupWindow = DefaultAlertDedupWindow
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.WebAddr == "" {
		c.WebAddr = DefaultWebAddr
	}
	if len(c.Portfolios) == 0 {
		c.Portfolios = []string{"main"}
	}
}

func (c Config) validate() error {
	switch c.Platform {
	case "binance", "bybit":
	case "":
		return fmt.Errorf("'platform' param missing in config (binance or bybit)")
	default:
		return fmt.Errorf("unsupported platform %q (binance or bybit)", c.Platform)
	}
	for _, p := range c.Portfolios {
		if p == "" {
			return fmt.Errorf("empty portfolio name in config")
		}
	}
	return nil
}
