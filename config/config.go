// Package config holds process configuration: defaults, an optional YAML
// or JSON file, and environment overrides, applied in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete process configuration.
type Config struct {
	// Symbol is the single instrument the ledger tracks.
	Symbol string `json:"symbol" yaml:"symbol"`

	Dhan   DhanConfig   `json:"dhan" yaml:"dhan"`
	Upstox UpstoxConfig `json:"upstox" yaml:"upstox"`
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`
	Market MarketConfig `json:"market" yaml:"market"`
	Scan   ScanConfig   `json:"scan" yaml:"scan"`

	// PriceFallback is "zero" (mark at 0 when the price lookup fails,
	// the historical behavior) or "fail" (abort the run).
	PriceFallback string `json:"price_fallback" yaml:"price_fallback"`

	// Schedule is an optional cron spec; empty means run once and exit.
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// DhanConfig holds order-book API credentials.
type DhanConfig struct {
	ClientID    string `json:"client_id" yaml:"client_id"`
	AccessToken string `json:"access_token" yaml:"access_token"`
}

// UpstoxConfig holds market-data API credentials.
type UpstoxConfig struct {
	AccessToken string `json:"access_token" yaml:"access_token"`
}

// LedgerConfig selects and locates the row store.
type LedgerConfig struct {
	Backend string `json:"backend" yaml:"backend"` // "csv" or "sqlite"
	CSVPath string `json:"csv_path,omitempty" yaml:"csv_path,omitempty"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// MarketConfig describes the market calendar and data files.
type MarketConfig struct {
	InstrumentFile string `json:"instrument_file" yaml:"instrument_file"`
	// BhavcopyFile, when set, marks the book from the end-of-day
	// bhavcopy instead of the live quote.
	BhavcopyFile string `json:"bhavcopy_file,omitempty" yaml:"bhavcopy_file,omitempty"`
	Timezone     string `json:"timezone" yaml:"timezone"`
	CloseTime    string `json:"close_time" yaml:"close_time"` // "15:04"
}

// ScanConfig parameterizes the universe scan and the averaging-down pick.
type ScanConfig struct {
	TopN                  int     `json:"top_n" yaml:"top_n"`
	BuyQuantity           int64   `json:"buy_quantity" yaml:"buy_quantity"`
	AveragingThresholdPct float64 `json:"averaging_threshold_pct" yaml:"averaging_threshold_pct"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Symbol: "NIFTYBEES",
		Ledger: LedgerConfig{
			Backend: "csv",
			CSVPath: "./ledger.csv",
			DBPath:  "./ledger.db",
		},
		Market: MarketConfig{
			InstrumentFile: "./NSE.json",
			Timezone:       "Asia/Kolkata",
			CloseTime:      "15:30",
		},
		Scan: ScanConfig{
			TopN:                  5,
			BuyQuantity:           1,
			AveragingThresholdPct: -2.0,
		},
		PriceFallback: "zero",
	}
}

// Load builds the configuration: defaults, then the file (if any), then
// the environment. A .env file in the working directory is honored.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// YAML first, JSON as the fallback, like the file extension
		// usually suggests.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			if jerr := json.Unmarshal(data, cfg); jerr != nil {
				return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	setStr(&c.Symbol, "SYMBOL", "MONEYTREE_SYMBOL")
	setStr(&c.Dhan.ClientID, "DHAN_CLIENT_ID")
	setStr(&c.Dhan.AccessToken, "DHAN_ACCESS_TOKEN")
	setStr(&c.Upstox.AccessToken, "UPSTOX_ACCESS_TOKEN")
	setStr(&c.Ledger.Backend, "MONEYTREE_LEDGER_BACKEND")
	setStr(&c.Ledger.CSVPath, "MONEYTREE_LEDGER_CSV")
	setStr(&c.Ledger.DBPath, "MONEYTREE_LEDGER_DB")
	setStr(&c.Market.InstrumentFile, "MONEYTREE_INSTRUMENTS")
	setStr(&c.Market.BhavcopyFile, "MONEYTREE_BHAVCOPY")
	setStr(&c.Market.Timezone, "MONEYTREE_TIMEZONE")
	setStr(&c.PriceFallback, "MONEYTREE_PRICE_FALLBACK")
	setStr(&c.Schedule, "MONEYTREE_SCHEDULE")

	if v, ok := os.LookupEnv("MONEYTREE_AVERAGING_THRESHOLD_PCT"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Scan.AveragingThresholdPct = f
		}
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	switch c.Ledger.Backend {
	case "csv":
		if c.Ledger.CSVPath == "" {
			return fmt.Errorf("ledger.csv_path required for csv backend")
		}
	case "sqlite":
		if c.Ledger.DBPath == "" {
			return fmt.Errorf("ledger.db_path required for sqlite backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be 'csv' or 'sqlite'")
	}
	if c.PriceFallback != "zero" && c.PriceFallback != "fail" {
		return fmt.Errorf("price_fallback must be 'zero' or 'fail'")
	}
	if c.Scan.TopN <= 0 {
		return fmt.Errorf("scan.top_n must be positive")
	}
	if c.Scan.AveragingThresholdPct >= 0 {
		return fmt.Errorf("scan.averaging_threshold_pct must be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, _, err := c.MarketClose(); err != nil {
		return err
	}
	return nil
}

// Location resolves the market timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market.timezone: %w", err)
	}
	return loc, nil
}

// MarketClose parses the close time into hour and minute.
func (c *Config) MarketClose() (hour, minute int, err error) {
	parts := strings.SplitN(c.Market.CloseTime, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("market.close_time must be HH:MM, got %q", c.Market.CloseTime)
	}
	hour, err = strconv.Atoi(parts[0])
	if err == nil {
		minute, err = strconv.Atoi(parts[1])
	}
	if err != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("market.close_time must be HH:MM, got %q", c.Market.CloseTime)
	}
	return hour, minute, nil
}
