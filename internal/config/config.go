// Package config provides configuration for the server and CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Streaming pace between consecutive span events. Zero disables pacing.
	StreamDelay time.Duration

	// Journal
	JournalDSN string

	// WebSocket settings
	WSWriteTimeout time.Duration

	// Client settings
	ServerURL         string
	InactivityTimeout time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:          getEnvInt("HTTP_PORT", 8000),
		StreamDelay:       time.Duration(getEnvInt("STREAM_DELAY_MS", 20)) * time.Millisecond,
		JournalDSN:        getEnv("JOURNAL_DSN", "file:agui-journal?mode=memory&cache=shared"),
		WSWriteTimeout:    time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ServerURL:         getEnv("SERVER_URL", "http://localhost:8000"),
		InactivityTimeout: time.Duration(getEnvInt("INACTIVITY_TIMEOUT_MS", 30000)) * time.Millisecond,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// fileConfig is the YAML schema. Durations are plain milliseconds; unset
// keys keep their environment-derived values.
type fileConfig struct {
	HTTPPort            *int    `yaml:"http_port"`
	StreamDelayMS       *int    `yaml:"stream_delay_ms"`
	JournalDSN          *string `yaml:"journal_dsn"`
	WSWriteTimeoutMS    *int    `yaml:"ws_write_timeout_ms"`
	ServerURL           *string `yaml:"server_url"`
	InactivityTimeoutMS *int    `yaml:"inactivity_timeout_ms"`
	LogLevel            *string `yaml:"log_level"`
}

// LoadFile loads configuration from environment variables, then overlays
// values set in the YAML file at path.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.HTTPPort != nil {
		cfg.HTTPPort = *fc.HTTPPort
	}
	if fc.StreamDelayMS != nil {
		cfg.StreamDelay = time.Duration(*fc.StreamDelayMS) * time.Millisecond
	}
	if fc.JournalDSN != nil {
		cfg.JournalDSN = *fc.JournalDSN
	}
	if fc.WSWriteTimeoutMS != nil {
		cfg.WSWriteTimeout = time.Duration(*fc.WSWriteTimeoutMS) * time.Millisecond
	}
	if fc.ServerURL != nil {
		cfg.ServerURL = *fc.ServerURL
	}
	if fc.InactivityTimeoutMS != nil {
		cfg.InactivityTimeout = time.Duration(*fc.InactivityTimeoutMS) * time.Millisecond
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
