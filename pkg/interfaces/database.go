package interfaces

import (
	"context"
	"time"

	"chatmatch/pkg/types"
)

// StatsRecorder receives anonymous pair-session events.
// Implementations must return quickly; the hub goroutine calls them inline.
type StatsRecorder interface {
	RecordSessionStart(record types.SessionRecord)
	RecordSessionEnd(sessionID string, endedAt time.Time, reason string)
}

// StatsStore is the read side of the statistics store used by the HTTP API
type StatsStore interface {
	StatsRecorder

	// SessionSummary aggregates all recorded sessions
	SessionSummary(ctx context.Context) (*types.SessionSummary, error)

	// TopInterests returns the interests most often shared by paired users
	TopInterests(ctx context.Context, limit int) ([]types.InterestCount, error)

	// HealthCheck verifies database connectivity
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and closes the database
	Close() error
}
