package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	AppEnv    string `yaml:"app_env"`
	Port      string `yaml:"port"`
	DBPath    string `yaml:"db_path"`
	LinesPath string `yaml:"lines_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	PollInterval time.Duration `yaml:"poll_interval"`

	Alerting AlertingConfig `yaml:"alerting"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Telegram TelegramConfig `yaml:"telegram"`
	Digest   DigestConfig   `yaml:"digest"`
}

// AlertingConfig is the threshold surface consumed by the alert machine.
type AlertingConfig struct {
	ScoreThreshold      float64       `yaml:"score_threshold"`
	CountLimit          int           `yaml:"count_limit"`
	Cooldown            time.Duration `yaml:"cooldown"`
	DeliverTimeout      time.Duration `yaml:"deliver_timeout"`
	MaxDeliveryAttempts int           `yaml:"max_delivery_attempts"`
}

// SMTPConfig configures the email delivery channel. The password is never
// stored in the config file: PasswordEnv names the environment variable
// that holds it, and the value is treated as opaque (never logged).
type SMTPConfig struct {
	FromAddress string `yaml:"from_address"`
	ToAddress   string `yaml:"to_address"`
	Server      string `yaml:"server"`
	Port        int    `yaml:"port"`
	PasswordEnv string `yaml:"password_env"`
}

// Configured reports whether the channel has enough settings to be used.
func (c SMTPConfig) Configured() bool {
	return c.FromAddress != "" && c.ToAddress != "" && c.Server != ""
}

// TelegramConfig configures the Telegram delivery channel. TokenEnv names
// the environment variable holding the bot token.
type TelegramConfig struct {
	TokenEnv string `yaml:"token_env"`
	ChatID   int64  `yaml:"chat_id"`
}

// Configured reports whether the channel has enough settings to be used.
func (c TelegramConfig) Configured() bool {
	return c.TokenEnv != "" && c.ChatID != 0
}

// DigestConfig configures the optional daily mood summary.
type DigestConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Time     string `yaml:"time"`
	Timezone string `yaml:"timezone"`
}

// Defaults returns a Config with all default values set.
func Defaults() Config {
	return Config{
		AppEnv:       "development",
		Port:         "8477",
		DBPath:       "./sentiguard.db",
		LinesPath:    "./keystrokes.txt",
		LogLevel:     "info",
		LogFormat:    "text",
		PollInterval: 2 * time.Second,
		Alerting: AlertingConfig{
			ScoreThreshold:      -0.5,
			CountLimit:          5,
			Cooldown:            time.Hour,
			DeliverTimeout:      15 * time.Second,
			MaxDeliveryAttempts: 10,
		},
		SMTP: SMTPConfig{
			Port:        465,
			PasswordEnv: "SENTIGUARD_SMTP_PASSWORD",
		},
		Telegram: TelegramConfig{
			TokenEnv: "SENTIGUARD_TELEGRAM_TOKEN",
		},
		Digest: DigestConfig{
			Time:     "20:00",
			Timezone: "Local",
		},
	}
}

// Load reads a YAML config file and returns a validated Config. A missing
// file is not an error: defaults apply, so the monitor can start with zero
// setup. Environment variables SENTIGUARD_CONFIG, SENTIGUARD_DB and
// SENTIGUARD_LINES override the file path, db path and line source path.
func Load(path string) (Config, error) {
	if envPath := os.Getenv("SENTIGUARD_CONFIG"); envPath != "" {
		path = envPath
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	if envDB := os.Getenv("SENTIGUARD_DB"); envDB != "" {
		cfg.DBPath = envDB
	}
	if envLines := os.Getenv("SENTIGUARD_LINES"); envLines != "" {
		cfg.LinesPath = envLines
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that required fields are present and values are valid.
func (c *Config) Validate() error {
	if c.Alerting.ScoreThreshold < -1 || c.Alerting.ScoreThreshold > 1 {
		return fmt.Errorf("score_threshold must be in [-1, 1], got %v", c.Alerting.ScoreThreshold)
	}
	if c.Alerting.CountLimit < 1 {
		return fmt.Errorf("count_limit must be at least 1, got %d", c.Alerting.CountLimit)
	}
	if c.Alerting.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive, got %v", c.Alerting.Cooldown)
	}
	if c.Alerting.DeliverTimeout <= 0 {
		return fmt.Errorf("deliver_timeout must be positive, got %v", c.Alerting.DeliverTimeout)
	}
	if c.Alerting.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("max_delivery_attempts must be at least 1, got %d", c.Alerting.MaxDeliveryAttempts)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.LinesPath == "" {
		return fmt.Errorf("lines_path is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	if c.Digest.Enabled {
		if err := ValidateTime(c.Digest.Time); err != nil {
			return err
		}
		if _, err := time.LoadLocation(c.Digest.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Digest.Timezone, err)
		}
	}

	return nil
}

// ValidateTime checks that a time string is in valid HH:MM 24-hour format.
func ValidateTime(t string) error {
	if len(t) != 5 || t[2] != ':' {
		return fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	if t[0] < '0' || t[0] > '9' || t[1] < '0' || t[1] > '9' ||
		t[3] < '0' || t[3] > '9' || t[4] < '0' || t[4] > '9' {
		return fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	hour := (int(t[0]-'0') * 10) + int(t[1]-'0')
	minute := (int(t[3]-'0') * 10) + int(t[4]-'0')

	if hour > 23 {
		return fmt.Errorf("invalid time %q: hour must be 0-23", t)
	}
	if minute > 59 {
		return fmt.Errorf("invalid time %q: minute must be 0-59", t)
	}

	return nil
}
