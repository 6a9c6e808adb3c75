// Package config holds runtime settings with defaults < environment <
// file precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Session   *SessionConfig   `json:"session"`
	Archive   *ArchiveConfig   `json:"archive"`
}

// HTTPConfig configures the combined API and websocket server.
type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// WebSocketConfig configures per-connection behavior.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// SessionConfig configures the default session and the background
// cadence shared by all sessions.
type SessionConfig struct {
	DefaultID           string        `json:"default_id"`
	FocusLength         int           `json:"focus_length"` // minutes
	BreakLength         int           `json:"break_length"` // minutes
	PhaseTick           time.Duration `json:"phase_tick"`
	SweepInterval       time.Duration `json:"sweep_interval"`
	InactivityThreshold time.Duration `json:"inactivity_threshold"`
	MessageCap          int           `json:"message_cap"`
}

// ArchiveConfig configures the sqlite chat archive.
type ArchiveConfig struct {
	Path         string        `json:"path"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns production defaults: 20 minute focus, 5 minute
// break, 1s phase tick, 60s inactivity sweep, 5 minute threshold.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         3003,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Session: &SessionConfig{
			DefaultID:           "default",
			FocusLength:         20,
			BreakLength:         5,
			PhaseTick:           time.Second,
			SweepInterval:       60 * time.Second,
			InactivityThreshold: 5 * time.Minute,
			MessageCap:          500,
		},
		Archive: &ArchiveConfig{
			Path:         "./focusisle.db",
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket intervals must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("websocket buffer size must be positive")
	}

	if c.Session == nil {
		return fmt.Errorf("session configuration is required")
	}
	if c.Session.DefaultID == "" {
		return fmt.Errorf("default session id cannot be empty")
	}
	if c.Session.FocusLength <= 0 || c.Session.BreakLength <= 0 {
		return fmt.Errorf("focus and break lengths must be positive")
	}
	if c.Session.PhaseTick <= 0 || c.Session.SweepInterval <= 0 || c.Session.InactivityThreshold <= 0 {
		return fmt.Errorf("session cadence intervals must be positive")
	}
	if c.Session.MessageCap <= 0 {
		return fmt.Errorf("message cap must be positive")
	}

	if c.Archive == nil {
		return fmt.Errorf("archive configuration is required")
	}
	if c.Archive.Path == "" {
		return fmt.Errorf("archive path cannot be empty")
	}
	if c.Archive.WriteTimeout <= 0 {
		return fmt.Errorf("archive write timeout must be positive")
	}

	return nil
}

// LoadFromEnv overlays FOCUSISLE_* environment variables on the defaults.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("FOCUSISLE_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("FOCUSISLE_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if v := os.Getenv("FOCUSISLE_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("FOCUSISLE_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.WriteTimeout = d
		}
	}

	if v := os.Getenv("FOCUSISLE_WS_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.PingInterval = d
		}
	}
	if v := os.Getenv("FOCUSISLE_WS_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.ReadTimeout = d
		}
	}
	if v := os.Getenv("FOCUSISLE_WS_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.WriteTimeout = d
		}
	}
	if v := os.Getenv("FOCUSISLE_WS_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.WebSocket.BufferSize = n
		}
	}

	if v := os.Getenv("FOCUSISLE_SESSION_DEFAULT_ID"); v != "" {
		config.Session.DefaultID = v
	}
	if v := os.Getenv("FOCUSISLE_SESSION_FOCUS_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Session.FocusLength = n
		}
	}
	if v := os.Getenv("FOCUSISLE_SESSION_BREAK_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Session.BreakLength = n
		}
	}
	if v := os.Getenv("FOCUSISLE_SESSION_PHASE_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Session.PhaseTick = d
		}
	}
	if v := os.Getenv("FOCUSISLE_SESSION_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Session.SweepInterval = d
		}
	}
	if v := os.Getenv("FOCUSISLE_SESSION_INACTIVITY_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Session.InactivityThreshold = d
		}
	}
	if v := os.Getenv("FOCUSISLE_SESSION_MESSAGE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Session.MessageCap = n
		}
	}

	if v := os.Getenv("FOCUSISLE_ARCHIVE_PATH"); v != "" {
		config.Archive.Path = v
	}
	if v := os.Getenv("FOCUSISLE_ARCHIVE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Archive.WriteTimeout = d
		}
	}

	return config
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		BufferSize   int    `json:"buffer_size"`
	} `json:"websocket"`
	Session *struct {
		DefaultID           string `json:"default_id"`
		FocusLength         int    `json:"focus_length"`
		BreakLength         int    `json:"break_length"`
		PhaseTick           string `json:"phase_tick"`
		SweepInterval       string `json:"sweep_interval"`
		InactivityThreshold string `json:"inactivity_threshold"`
		MessageCap          int    `json:"message_cap"`
	} `json:"session"`
	Archive *struct {
		Path         string `json:"path"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"archive"`
}

// LoadFromFile parses a JSON config file over the defaults. Duration
// fields use Go duration strings ("30s", "5m").
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := DefaultConfig()

	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		setDuration(&config.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		setDuration(&config.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}

	if file.WebSocket != nil {
		if file.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
		setDuration(&config.WebSocket.PingInterval, file.WebSocket.PingInterval)
		setDuration(&config.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		setDuration(&config.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
	}

	if file.Session != nil {
		if file.Session.DefaultID != "" {
			config.Session.DefaultID = file.Session.DefaultID
		}
		if file.Session.FocusLength > 0 {
			config.Session.FocusLength = file.Session.FocusLength
		}
		if file.Session.BreakLength > 0 {
			config.Session.BreakLength = file.Session.BreakLength
		}
		if file.Session.MessageCap > 0 {
			config.Session.MessageCap = file.Session.MessageCap
		}
		setDuration(&config.Session.PhaseTick, file.Session.PhaseTick)
		setDuration(&config.Session.SweepInterval, file.Session.SweepInterval)
		setDuration(&config.Session.InactivityThreshold, file.Session.InactivityThreshold)
	}

	if file.Archive != nil {
		if file.Archive.Path != "" {
			config.Archive.Path = file.Archive.Path
		}
		setDuration(&config.Archive.WriteTimeout, file.Archive.WriteTimeout)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > environment
// > defaults. File errors fall back silently; env and defaults still work.
func LoadConfigWithPrecedence(path string) *Config {
	config := LoadFromEnv()

	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
	}

	return config
}

func setDuration(dst *time.Duration, value string) {
	if value == "" {
		return
	}
	if d, err := time.ParseDuration(value); err == nil {
		*dst = d
	}
}
