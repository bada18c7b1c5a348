package config

import "os"

// Overrides carries command-line values. Nil fields were not set on the
// command line and leave the lower layers untouched.
type Overrides struct {
	Host           *string
	Port           *int
	AllowedOrigins []string
	LogLevel       *string
	StatsDB        *string
}

func (o Overrides) apply(config *Config) {
	setIf(&config.HTTP.Host, o.Host)
	setIf(&config.HTTP.Port, o.Port)
	if len(o.AllowedOrigins) > 0 {
		config.HTTP.AllowedOrigins = o.AllowedOrigins
	}
	setIf(&config.Log.Level, o.LogLevel)
	if o.StatsDB != nil {
		config.Database.Enabled = true
		config.Database.Path = *o.StatsDB
	}
}

// LoadConfigWithPrecedence layers defaults < file < environment < flags and
// validates the result. An empty path skips the file layer; a path that
// cannot be read or parsed is an error.
func LoadConfigWithPrecedence(path string, overrides Overrides) (*Config, error) {
	return load(path, os.LookupEnv, overrides)
}

func load(path string, lookup lookupFunc, overrides Overrides) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		file, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		if err := file.apply(config); err != nil {
			return nil, err
		}
	}

	applyEnv(config, lookup)
	overrides.apply(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
