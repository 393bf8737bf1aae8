package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"AllowanceLogger/internal/model"
)

const (
	DefaultAPIURL     = "https://api-galaswap.gala.com/galachain/api"
	DefaultCollection = "GALA"
	DefaultLogDir     = "allowance_logs"
	DefaultFooter     = "Gala Chain Balance Logger"
)

// Config holds all application configuration.
type Config struct {
	Mode       string            `yaml:"mode"`
	Wallets    map[string]string `yaml:"wallets"`
	WebhookURL string            `yaml:"webhook_url"`

	// Keys of the original config.json. JSON parses as YAML, so the old file loads as-is.
	LegacyWallets    map[string]string `yaml:"WALLET_ADDRESSES"`
	LegacyWebhookURL string            `yaml:"DISCORD_WEBHOOK_URL"`

	API struct {
		BaseURL           string  `yaml:"base_url"`
		Collection        string  `yaml:"collection"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"api"`
	Poll struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"poll"`
	Notify struct {
		Footer string `yaml:"footer"`
		Symbol string `yaml:"symbol"`
	} `yaml:"notify"`
	LogDir   string `yaml:"log_dir"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`

	intervalSet bool
}

// Load reads config from a YAML (or JSON) file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if len(cfg.Wallets) == 0 && len(cfg.LegacyWallets) > 0 {
		cfg.Wallets = cfg.LegacyWallets
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = cfg.LegacyWebhookURL
	}

	// Environment variable overrides
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("GALA_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("LOGGER_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse POLL_INTERVAL: %w", err)
		}
		cfg.Poll.Interval = d
	}
	if v := os.Getenv("API_REQUESTS_PER_SECOND"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.API.RequestsPerSecond = rps
		}
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	cfg.intervalSet = cfg.Poll.Interval != 0
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills every unset field. It is re-run by SetMode since the poll
// interval default depends on the mode.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = string(model.ModeChange)
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIURL
	}
	if c.API.Collection == "" {
		c.API.Collection = DefaultCollection
	}
	if c.API.RequestsPerSecond == 0 {
		c.API.RequestsPerSecond = 5
	}
	if c.Poll.Interval == 0 {
		if mode, err := model.ParseMode(c.Mode); err == nil && mode == model.ModeReward {
			c.Poll.Interval = time.Hour
		} else {
			c.Poll.Interval = time.Minute
		}
	}
	if c.Notify.Footer == "" {
		c.Notify.Footer = DefaultFooter
	}
	if c.Notify.Symbol == "" {
		c.Notify.Symbol = c.API.Collection
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/allowance_history.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// SetMode overrides the mode, e.g. from a command-line flag. An interval that was
// only defaulted follows the new mode.
func (c *Config) SetMode(mode string) {
	c.Mode = mode
	if !c.intervalSet {
		c.Poll.Interval = 0
	}
	c.applyDefaults()
}

// ParsedMode returns the configured mode.
func (c *Config) ParsedMode() model.Mode {
	m, _ := model.ParseMode(c.Mode)
	return m
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if len(c.Wallets) == 0 {
		return fmt.Errorf("wallets is required")
	}
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}
	if _, err := model.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must not be negative")
	}
	return nil
}
