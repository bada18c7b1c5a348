package session

import "errors"

// Session bookkeeping errors
var (
	ErrSessionNotFound = errors.New("session not found")
)
