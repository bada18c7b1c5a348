package hub

import "errors"

// Hub-specific error types
var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrHubStopped        = errors.New("hub has been stopped and cannot restart")
	ErrNilOutbound       = errors.New("outbound cannot be nil")
)
