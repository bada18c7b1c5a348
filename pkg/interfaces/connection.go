package interfaces

// Outbound is the server -> client half of a live connection as seen by the core.
// Implementations must be safe for concurrent use and must not block: the hub
// calls Send while processing events and never waits on network I/O.
type Outbound interface {
	// Send queues one event for delivery. data may be nil for events without payload.
	Send(event string, data any) error

	// Close tears down the underlying transport. Safe to call more than once.
	Close() error
}
