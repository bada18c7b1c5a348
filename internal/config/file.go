package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ConfigFile mirrors Config for file parsing. Durations are strings
// ("30s") and every field is optional; only fields present in the file
// override the defaults.
type ConfigFile struct {
	HTTP      *HTTPConfigFile      `json:"http" yaml:"http" toml:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket" yaml:"websocket" toml:"websocket"`
	Matching  *MatchingConfigFile  `json:"matching" yaml:"matching" toml:"matching"`
	Database  *DatabaseConfigFile  `json:"database" yaml:"database" toml:"database"`
	Log       *LogConfigFile       `json:"log" yaml:"log" toml:"log"`
}

type HTTPConfigFile struct {
	Host           *string  `json:"host" yaml:"host" toml:"host"`
	Port           *int     `json:"port" yaml:"port" toml:"port"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	ReadTimeout    string   `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout   string   `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
}

type WebSocketConfigFile struct {
	PingInterval   string `json:"ping_interval" yaml:"ping_interval" toml:"ping_interval"`
	ReadTimeout    string `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout   string `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
	BufferSize     *int   `json:"buffer_size" yaml:"buffer_size" toml:"buffer_size"`
	MaxMessageSize *int64 `json:"max_message_size" yaml:"max_message_size" toml:"max_message_size"`
}

type MatchingConfigFile struct {
	WelcomeMessage             *string `json:"welcome_message" yaml:"welcome_message" toml:"welcome_message"`
	PartnerDisconnectedMessage *string `json:"partner_disconnected_message" yaml:"partner_disconnected_message" toml:"partner_disconnected_message"`
	DefaultInterest            *string `json:"default_interest" yaml:"default_interest" toml:"default_interest"`
	GenerateUserIDs            *bool   `json:"generate_user_ids" yaml:"generate_user_ids" toml:"generate_user_ids"`
	MaxInterests               *int    `json:"max_interests" yaml:"max_interests" toml:"max_interests"`
}

type DatabaseConfigFile struct {
	Enabled *bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Path    *string `json:"path" yaml:"path" toml:"path"`
	Timeout string  `json:"timeout" yaml:"timeout" toml:"timeout"`
}

type LogConfigFile struct {
	Level  *string `json:"level" yaml:"level" toml:"level"`
	Format *string `json:"format" yaml:"format" toml:"format"`
}

// ParseFile decodes a configuration file, choosing the format by extension:
// .json and .jsonc (comments and trailing commas allowed), .yaml/.yml, .toml
func ParseFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &file)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		_, err = toml.Decode(string(data), &file)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &file, nil
}

// LoadFromFile returns defaults overridden by the file, validated
func LoadFromFile(path string) (*Config, error) {
	file, err := ParseFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := file.apply(config); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

func parseDuration(field, value string, target *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*target = d
	return nil
}

func (f *ConfigFile) apply(config *Config) error {
	if h := f.HTTP; h != nil {
		setIf(&config.HTTP.Host, h.Host)
		setIf(&config.HTTP.Port, h.Port)
		if h.AllowedOrigins != nil {
			config.HTTP.AllowedOrigins = h.AllowedOrigins
		}
		if err := parseDuration("http.read_timeout", h.ReadTimeout, &config.HTTP.ReadTimeout); err != nil {
			return err
		}
		if err := parseDuration("http.write_timeout", h.WriteTimeout, &config.HTTP.WriteTimeout); err != nil {
			return err
		}
	}

	if w := f.WebSocket; w != nil {
		if err := parseDuration("websocket.ping_interval", w.PingInterval, &config.WebSocket.PingInterval); err != nil {
			return err
		}
		if err := parseDuration("websocket.read_timeout", w.ReadTimeout, &config.WebSocket.ReadTimeout); err != nil {
			return err
		}
		if err := parseDuration("websocket.write_timeout", w.WriteTimeout, &config.WebSocket.WriteTimeout); err != nil {
			return err
		}
		setIf(&config.WebSocket.BufferSize, w.BufferSize)
		setIf(&config.WebSocket.MaxMessageSize, w.MaxMessageSize)
	}

	if m := f.Matching; m != nil {
		setIf(&config.Matching.WelcomeMessage, m.WelcomeMessage)
		setIf(&config.Matching.PartnerDisconnectedMessage, m.PartnerDisconnectedMessage)
		setIf(&config.Matching.DefaultInterest, m.DefaultInterest)
		setIf(&config.Matching.GenerateUserIDs, m.GenerateUserIDs)
		setIf(&config.Matching.MaxInterests, m.MaxInterests)
	}

	if d := f.Database; d != nil {
		setIf(&config.Database.Enabled, d.Enabled)
		setIf(&config.Database.Path, d.Path)
		if err := parseDuration("database.timeout", d.Timeout, &config.Database.Timeout); err != nil {
			return err
		}
	}

	if l := f.Log; l != nil {
		setIf(&config.Log.Level, l.Level)
		setIf(&config.Log.Format, l.Format)
	}
	return nil
}

func setIf[T any](target *T, value *T) {
	if value != nil {
		*target = *value
	}
}
