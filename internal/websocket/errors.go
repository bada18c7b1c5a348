package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrEncodeFailed     = errors.New("failed to encode event")
)

// Handler-related errors
var (
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrNilDispatcher    = errors.New("dispatcher cannot be nil")
)
