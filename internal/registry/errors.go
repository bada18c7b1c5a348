package registry

import "errors"

// Registry-related errors
var (
	ErrNilConnection = errors.New("connection cannot be nil")
	ErrEmptyID       = errors.New("connection id cannot be empty")
)
