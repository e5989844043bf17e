// Package config loads client configuration. Values come from three
// layers, each overriding the last: built-in defaults, an optional YAML
// file, and PRSINET_* environment variables. A missing config file is
// not an error; the defaults are a complete working setup.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full client configuration. Interval fields are in
// milliseconds, the unit the protocol timings were specified in.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig addresses the game server and sets the connection policy.
type ServerConfig struct {
	Host string `yaml:"host" env:"PRSINET_HOST"`
	Port int    `yaml:"port" env:"PRSINET_PORT"`

	// ConnectTimeoutMS bounds a single connect attempt.
	ConnectTimeoutMS int `yaml:"connect_timeout_ms" env:"PRSINET_CONNECT_TIMEOUT_MS"`

	// PingIntervalMS is the keepalive cadence; PongTimeoutMS is how
	// long a ping may stay unanswered before the connection counts as
	// dead.
	PingIntervalMS int `yaml:"ping_interval_ms" env:"PRSINET_PING_INTERVAL_MS"`
	PongTimeoutMS  int `yaml:"pong_timeout_ms" env:"PRSINET_PONG_TIMEOUT_MS"`

	// ReconnectDelayMS spaces automatic reconnect attempts;
	// MaxReconnectAttempts caps them within one outage.
	ReconnectDelayMS     int `yaml:"reconnect_delay_ms" env:"PRSINET_RECONNECT_DELAY_MS"`
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" env:"PRSINET_MAX_RECONNECT_ATTEMPTS"`

	// PollIntervalMS is the control-loop drain cadence.
	PollIntervalMS int `yaml:"poll_interval_ms" env:"PRSINET_POLL_INTERVAL_MS"`
}

// SessionConfig selects where session tokens are persisted.
type SessionConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `yaml:"backend" env:"PRSINET_SESSION_BACKEND"`
	// Path locates the file or database; ignored for "memory".
	Path string `yaml:"path" env:"PRSINET_SESSION_PATH"`
}

// LogConfig mirrors the usual rotating-file setup.
type LogConfig struct {
	Level          string `yaml:"level" env:"PRSINET_LOG_LEVEL"`
	ConsoleEnabled bool   `yaml:"console_enabled" env:"PRSINET_LOG_CONSOLE"`

	FileEnabled    bool   `yaml:"file_enabled" env:"PRSINET_LOG_FILE"`
	FilePath       string `yaml:"file_path" env:"PRSINET_LOG_FILE_PATH"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// Default returns the built-in configuration: the protocol's standard
// timings and a file-backed session store.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                 "127.0.0.1",
			Port:                 4242,
			ConnectTimeoutMS:     5000,
			PingIntervalMS:       5000,
			PongTimeoutMS:        15000,
			ReconnectDelayMS:     5000,
			MaxReconnectAttempts: 8,
			PollIntervalMS:       50,
		},
		Session: SessionConfig{
			Backend: "file",
			Path:    ".game_session.json",
		},
		Log: LogConfig{
			Level:          "info",
			ConsoleEnabled: true,
			FileEnabled:    false,
			FilePath:       "prsinet.log",
			FileMaxSizeMB:  10,
			FileMaxBackups: 3,
			FileMaxAgeDays: 14,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when the file does not exist) and environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read config %s failed", path)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s failed", path)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment overrides failed")
	}
	return cfg, nil
}

// Duration accessors; the raw fields stay ints for YAML readability.

func (s ServerConfig) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutMS) * time.Millisecond
}

func (s ServerConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalMS) * time.Millisecond
}

func (s ServerConfig) PongTimeout() time.Duration {
	return time.Duration(s.PongTimeoutMS) * time.Millisecond
}

func (s ServerConfig) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelayMS) * time.Millisecond
}

func (s ServerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}
