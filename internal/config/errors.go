package config

import "errors"

// ErrUnsupportedFormat is returned for config files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported config file format")
