package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable the server reads
const EnvPrefix = "CHATMATCH_"

// Config is the complete server configuration
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Matching  *MatchingConfig  `json:"matching"`
	Database  *DatabaseConfig  `json:"database"`
	Log       *LogConfig       `json:"log"`
}

// HTTPConfig controls the listener. AllowedOrigins gates the WebSocket
// handshake: "*" allows every origin and an empty list allows same-origin only.
type HTTPConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	AllowedOrigins []string      `json:"allowed_origins"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
}

// WebSocketConfig controls heartbeat and buffering for each connection
type WebSocketConfig struct {
	PingInterval   time.Duration `json:"ping_interval"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	BufferSize     int           `json:"buffer_size"`
	MaxMessageSize int64         `json:"max_message_size"`
}

// MatchingConfig holds the user-facing texts and registration policy
type MatchingConfig struct {
	WelcomeMessage             string `json:"welcome_message"`
	PartnerDisconnectedMessage string `json:"partner_disconnected_message"`
	DefaultInterest            string `json:"default_interest"`
	GenerateUserIDs            bool   `json:"generate_user_ids"`
	MaxInterests               int    `json:"max_interests"`
}

// DatabaseConfig controls the optional statistics store
type DatabaseConfig struct {
	Enabled bool          `json:"enabled"`
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// LogConfig selects the zap level and encoder
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns the settings used when nothing else is configured
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			AllowedOrigins: []string{"http://localhost:3000"},
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			BufferSize:     100,
			MaxMessageSize: 64 * 1024,
		},
		Matching: &MatchingConfig{
			MaxInterests: 16,
		},
		Database: &DatabaseConfig{
			Enabled: false,
			Path:    "./chatmatch.db",
			Timeout: 30 * time.Second,
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	for _, origin := range c.HTTP.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("allowed origins cannot contain empty entries")
		}
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("WebSocket max message size must be positive")
	}

	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if c.Matching.MaxInterests < 0 {
		return fmt.Errorf("max interests cannot be negative")
	}

	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty when statistics are enabled")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console")
	}

	return nil
}

// Addr returns the host:port listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// LoadFromEnv returns defaults overridden by CHATMATCH_* variables
func LoadFromEnv() *Config {
	config := DefaultConfig()
	applyEnv(config, os.LookupEnv)
	return config
}

type lookupFunc func(key string) (string, bool)

func applyEnv(config *Config, lookup lookupFunc) {
	get := func(name string) (string, bool) {
		value, ok := lookup(EnvPrefix + name)
		if !ok || value == "" {
			return "", false
		}
		return value, true
	}
	setInt := func(name string, target *int) {
		if value, ok := get(name); ok {
			if n, err := strconv.Atoi(value); err == nil {
				*target = n
			}
		}
	}
	setDuration := func(name string, target *time.Duration) {
		if value, ok := get(name); ok {
			if d, err := time.ParseDuration(value); err == nil {
				*target = d
			}
		}
	}
	setBool := func(name string, target *bool) {
		if value, ok := get(name); ok {
			if b, err := strconv.ParseBool(value); err == nil {
				*target = b
			}
		}
	}
	setString := func(name string, target *string) {
		if value, ok := get(name); ok {
			*target = value
		}
	}

	// Plain PORT is honoured for platform deployments; the prefixed form wins
	if port, ok := lookup("PORT"); ok && port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	setInt("HTTP_PORT", &config.HTTP.Port)
	setString("HTTP_HOST", &config.HTTP.Host)
	setDuration("HTTP_READ_TIMEOUT", &config.HTTP.ReadTimeout)
	setDuration("HTTP_WRITE_TIMEOUT", &config.HTTP.WriteTimeout)
	if origins, ok := get("ALLOWED_ORIGINS"); ok {
		config.HTTP.AllowedOrigins = splitList(origins)
	}

	setDuration("WEBSOCKET_PING_INTERVAL", &config.WebSocket.PingInterval)
	setDuration("WEBSOCKET_READ_TIMEOUT", &config.WebSocket.ReadTimeout)
	setDuration("WEBSOCKET_WRITE_TIMEOUT", &config.WebSocket.WriteTimeout)
	setInt("WEBSOCKET_BUFFER_SIZE", &config.WebSocket.BufferSize)
	if size, ok := get("WEBSOCKET_MAX_MESSAGE_SIZE"); ok {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			config.WebSocket.MaxMessageSize = n
		}
	}

	setString("MATCHING_WELCOME_MESSAGE", &config.Matching.WelcomeMessage)
	setString("MATCHING_PARTNER_DISCONNECTED_MESSAGE", &config.Matching.PartnerDisconnectedMessage)
	setString("MATCHING_DEFAULT_INTEREST", &config.Matching.DefaultInterest)
	setBool("MATCHING_GENERATE_USER_IDS", &config.Matching.GenerateUserIDs)
	setInt("MATCHING_MAX_INTERESTS", &config.Matching.MaxInterests)

	setBool("DATABASE_ENABLED", &config.Database.Enabled)
	setString("DATABASE_PATH", &config.Database.Path)
	setDuration("DATABASE_TIMEOUT", &config.Database.Timeout)

	setString("LOG_LEVEL", &config.Log.Level)
	setString("LOG_FORMAT", &config.Log.Format)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
