// Package config loads and validates application configuration from a YAML
// file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Hard caps on abuse-prone settings. Exceeding them is a config error,
// never silently clamped.
const (
	MaxGlobalPerHourCap  = 200
	MaxChannelPerHourCap = 50
	MaxMessageLengthCap  = 10000
)

// Placeholder values shipped in config.example.yaml. Finding one of these at
// startup means the user never configured real credentials.
var placeholders = map[string]bool{
	"YOUR_API_ID_HERE":   true,
	"YOUR_API_HASH_HERE": true,
	"YOUR_USER_ID_HERE":  true,
	"+1234567890":        true,
}

// TelegramConfig holds Telegram API credentials.
type TelegramConfig struct {
	APIID         int    `yaml:"api_id"`
	APIHash       string `yaml:"api_hash"`
	PhoneNumber   string `yaml:"phone_number"`
	SessionName   string `yaml:"session_name"`
	SessionString string `yaml:"-"` // env only, never from file
}

// RetryConfig controls retry behavior for transient forward failures.
type RetryConfig struct {
	MaxAttempts        int `yaml:"max_attempts"`
	BaseBackoffSeconds int `yaml:"base_backoff_seconds"`
}

// BaseBackoff returns the base backoff as a duration.
func (r RetryConfig) BaseBackoff() time.Duration {
	return time.Duration(r.BaseBackoffSeconds) * time.Second
}

// Config is the immutable application configuration for one run.
type Config struct {
	Telegram        TelegramConfig `yaml:"telegram"`
	ForwardToUserID int64          `yaml:"forward_to_user_id"`
	Channels        []string       `yaml:"channels"`
	Keywords        []string       `yaml:"keywords"`

	// TimeWindowHours bounds the historical scan. 0 disables backfill.
	TimeWindowHours int `yaml:"time_window_hours"`

	// ForwardDelaySeconds is the pause after each successful forward.
	ForwardDelaySeconds int `yaml:"forward_delay"`

	MaxMessagesPerHour           int `yaml:"max_messages_per_hour"`
	MaxMessagesPerChannelPerHour int `yaml:"max_messages_per_channel_per_hour"`
	MaxMessageLength             int `yaml:"max_message_length"`
	RateWindowSeconds            int `yaml:"rate_window_seconds"`

	Retry RetryConfig `yaml:"retry"`

	HTTPPort     int    `yaml:"http_port"`
	NatsURL      string `yaml:"nats_url"`
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`
	LogFile      string `yaml:"log_file"`

	// SeedDedupFromLog pre-loads the run's dedup set from the forward log,
	// preventing re-forwarding across restarts.
	SeedDedupFromLog bool `yaml:"seed_dedup_from_log"`
}

// ForwardDelay returns the inter-forward delay as a duration.
func (c *Config) ForwardDelay() time.Duration {
	return time.Duration(c.ForwardDelaySeconds) * time.Second
}

// RateWindow returns the rate-limit window as a duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}

// TimeWindow returns the historical scan window as a duration.
func (c *Config) TimeWindow() time.Duration {
	return time.Duration(c.TimeWindowHours) * time.Hour
}

// Load reads configuration from the given YAML file, applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	normalize(cfg)
	return cfg, nil
}

// applyEnv overrides credentials from the environment when set.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_API_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Telegram.APIID = id
		}
	}
	if v := os.Getenv("TELEGRAM_API_HASH"); v != "" {
		cfg.Telegram.APIHash = v
	}
	if v := os.Getenv("TELEGRAM_PHONE"); v != "" {
		cfg.Telegram.PhoneNumber = v
	}
	cfg.Telegram.SessionString = os.Getenv("TG_SESSION_STRING")
}

func applyDefaults(cfg *Config) {
	if cfg.Telegram.SessionName == "" {
		cfg.Telegram.SessionName = "telescout_session"
	}
	if cfg.ForwardDelaySeconds == 0 {
		cfg.ForwardDelaySeconds = 5
	}
	if cfg.MaxMessagesPerHour == 0 {
		cfg.MaxMessagesPerHour = 60
	}
	if cfg.MaxMessagesPerChannelPerHour == 0 {
		cfg.MaxMessagesPerChannelPerHour = 20
	}
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 4000
	}
	if cfg.RateWindowSeconds == 0 {
		cfg.RateWindowSeconds = 3600
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseBackoffSeconds == 0 {
		cfg.Retry.BaseBackoffSeconds = 2
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 3200
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "./telescout.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks credentials, required fields, and limit bounds.
// Security-relevant settings fail hard; nothing is silently substituted.
func (c *Config) Validate() error {
	if c.Telegram.APIID == 0 {
		return errors.New("telegram.api_id is required (set it in config.yaml or TELEGRAM_API_ID)")
	}
	if c.Telegram.APIHash == "" || placeholders[c.Telegram.APIHash] {
		return errors.New("telegram.api_hash is required (set it in config.yaml or TELEGRAM_API_HASH)")
	}
	if c.Telegram.PhoneNumber == "" || placeholders[c.Telegram.PhoneNumber] {
		return errors.New("telegram.phone_number is required (set it in config.yaml or TELEGRAM_PHONE)")
	}
	if c.ForwardToUserID == 0 {
		return errors.New("forward_to_user_id is required")
	}
	if len(c.Channels) == 0 {
		return errors.New("at least one channel must be configured")
	}
	if len(c.Keywords) == 0 {
		return errors.New("at least one keyword must be configured")
	}

	if c.MaxMessagesPerHour < 1 || c.MaxMessagesPerChannelPerHour < 1 {
		return errors.New("rate limits must be positive integers")
	}
	if c.MaxMessagesPerHour > MaxGlobalPerHourCap {
		return fmt.Errorf("max_messages_per_hour cannot exceed %d", MaxGlobalPerHourCap)
	}
	if c.MaxMessagesPerChannelPerHour > MaxChannelPerHourCap {
		return fmt.Errorf("max_messages_per_channel_per_hour cannot exceed %d", MaxChannelPerHourCap)
	}
	if c.MaxMessageLength > MaxMessageLengthCap {
		return fmt.Errorf("max_message_length cannot exceed %d characters", MaxMessageLengthCap)
	}
	if c.RateWindowSeconds < 1 {
		return errors.New("rate_window_seconds must be positive")
	}
	if c.TimeWindowHours < 0 {
		return errors.New("time_window_hours cannot be negative")
	}
	if c.ForwardDelaySeconds < 0 {
		return errors.New("forward_delay cannot be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be positive")
	}
	return nil
}

// normalize lowercases keywords and removes duplicate keywords and channels,
// preserving first-seen order.
func normalize(cfg *Config) {
	seen := make(map[string]bool, len(cfg.Keywords))
	keywords := cfg.Keywords[:0]
	for _, kw := range cfg.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}
	cfg.Keywords = keywords

	seenCh := make(map[string]bool, len(cfg.Channels))
	channels := cfg.Channels[:0]
	for _, ch := range cfg.Channels {
		ch = strings.TrimSpace(ch)
		if ch == "" || seenCh[ch] {
			continue
		}
		seenCh[ch] = true
		channels = append(channels, ch)
	}
	cfg.Channels = channels
}
