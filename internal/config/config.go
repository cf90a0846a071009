package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	User     string         `mapstructure:"user"`
	Quotes   QuotesConfig   `mapstructure:"quotes"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Holdings HoldingsConfig `mapstructure:"holdings"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// QuotesConfig holds live quote polling configuration
type QuotesConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
}

// BatchConfig holds the server batch document endpoints
type BatchConfig struct {
	CustomURL       string        `mapstructure:"custom_url"`
	MoversURL       string        `mapstructure:"movers_url"`
	HiLoURL         string        `mapstructure:"hilo_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	SparseThreshold int           `mapstructure:"sparse_threshold"`
}

// AlertsConfig holds alerting behavior configuration
type AlertsConfig struct {
	Defaults AlertDefaultsConfig `mapstructure:"defaults"`
}

// AlertDefaultsConfig seeds the movers rule when no saved rule exists.
// Dollar thresholds are pointers so that an absent key stays nil (no
// dollar gate) while an explicit 0 disables the leg.
type AlertDefaultsConfig struct {
	UpPercent        *float64 `mapstructure:"up_percent"`
	UpDollar         *float64 `mapstructure:"up_dollar"`
	DownPercent      *float64 `mapstructure:"down_percent"`
	DownDollar       *float64 `mapstructure:"down_dollar"`
	MinPrice         *float64 `mapstructure:"min_price"`
	HiLoMinPrice     *float64 `mapstructure:"hilo_min_price"`
	MoversEnabled    bool     `mapstructure:"movers_enabled"`
	ActiveIndustries []string `mapstructure:"active_industries"`
}

// HoldingsConfig holds the watchlist file location
type HoldingsConfig struct {
	File string `mapstructure:"file"`
}

// ServerConfig holds the websocket server configuration
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("ASXTRACKER")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Quotes defaults
	v.SetDefault("quotes.poll_interval", "1m")
	v.SetDefault("quotes.timeout", "15s")
	v.SetDefault("quotes.rate_limit", 5)

	// Batch defaults
	v.SetDefault("batch.timeout", "20s")
	v.SetDefault("batch.sparse_threshold", 20)

	// Alert defaults. Dollar thresholds have no default on purpose: an
	// unset key means the dollar leg is not evaluated at all.
	v.SetDefault("alerts.defaults.up_percent", 5.0)
	v.SetDefault("alerts.defaults.down_percent", 5.0)
	v.SetDefault("alerts.defaults.min_price", 0.0)
	v.SetDefault("alerts.defaults.hilo_min_price", 0.0)
	v.SetDefault("alerts.defaults.movers_enabled", true)

	// Server defaults
	v.SetDefault("server.addr", ":8980")
	v.SetDefault("server.enabled", true)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/asxtracker.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Quotes config
	if c.Quotes.Endpoint == "" {
		return fmt.Errorf("quotes.endpoint is required")
	}
	if c.Quotes.PollInterval < 5*time.Second {
		return fmt.Errorf("quotes.poll_interval must be at least 5 seconds")
	}
	if c.Quotes.RateLimit < 1 {
		return fmt.Errorf("quotes.rate_limit must be at least 1")
	}

	// Validate Batch config
	if c.Batch.SparseThreshold < 0 {
		return fmt.Errorf("batch.sparse_threshold must not be negative")
	}

	// Validate alert defaults
	if err := validateThreshold("alerts.defaults.up_percent", c.Alerts.Defaults.UpPercent); err != nil {
		return err
	}
	if err := validateThreshold("alerts.defaults.up_dollar", c.Alerts.Defaults.UpDollar); err != nil {
		return err
	}
	if err := validateThreshold("alerts.defaults.down_percent", c.Alerts.Defaults.DownPercent); err != nil {
		return err
	}
	if err := validateThreshold("alerts.defaults.down_dollar", c.Alerts.Defaults.DownDollar); err != nil {
		return err
	}
	if err := validateThreshold("alerts.defaults.min_price", c.Alerts.Defaults.MinPrice); err != nil {
		return err
	}
	if err := validateThreshold("alerts.defaults.hilo_min_price", c.Alerts.Defaults.HiLoMinPrice); err != nil {
		return err
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when server is enabled")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

func validateThreshold(key string, value *float64) error {
	if value != nil && *value < 0 {
		return fmt.Errorf("%s must not be negative", key)
	}
	return nil
}

// GetQuotesConfig returns the Quotes configuration
func (c *Config) GetQuotesConfig() QuotesConfig {
	return c.Quotes
}

// GetBatchConfig returns the Batch configuration
func (c *Config) GetBatchConfig() BatchConfig {
	return c.Batch
}

// GetAlertsConfig returns the Alerts configuration
func (c *Config) GetAlertsConfig() AlertsConfig {
	return c.Alerts
}

// GetHoldingsConfig returns the Holdings configuration
func (c *Config) GetHoldingsConfig() HoldingsConfig {
	return c.Holdings
}

// GetServerConfig returns the Server configuration
func (c *Config) GetServerConfig() ServerConfig {
	return c.Server
}

// GetStorageConfig returns the Storage configuration
func (c *Config) GetStorageConfig() StorageConfig {
	return c.Storage
}

// GetTelegramConfig returns the Telegram configuration
func (c *Config) GetTelegramConfig() TelegramConfig {
	return c.Telegram
}

// GetLoggingConfig returns the Logging configuration
func (c *Config) GetLoggingConfig() LoggingConfig {
	return c.Logging
}
