package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

// Manager implements interfaces.SessionTracker.
// It keeps the open pair sessions in memory and forwards start/end events to
// an optional statistics recorder. It never stores user ids or message text.
type Manager struct {
	recorder       interfaces.StatsRecorder
	logger         *zap.Logger
	activeSessions map[string]*types.SessionRecord // sessionID -> record
	mu             sync.RWMutex
	now            func() time.Time
}

// NewManager creates a new session manager. recorder may be nil.
func NewManager(recorder interfaces.StatsRecorder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		recorder:       recorder,
		logger:         logger,
		activeSessions: make(map[string]*types.SessionRecord),
		now:            time.Now,
	}
}

// Open starts a new pair session and returns its id
func (m *Manager) Open(sharedInterests []string) string {
	record := &types.SessionRecord{
		ID:              uuid.New().String(),
		SharedInterests: append([]string(nil), sharedInterests...),
		StartedAt:       m.now(),
	}

	m.mu.Lock()
	m.activeSessions[record.ID] = record
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.RecordSessionStart(*record)
	}

	m.logger.Debug("pair session opened",
		zap.String("session_id", record.ID),
		zap.Strings("shared_interests", record.SharedInterests))
	return record.ID
}

// Close ends a pair session. Unknown ids are ignored so double-close is harmless.
func (m *Manager) Close(sessionID, reason string) {
	m.mu.Lock()
	record, exists := m.activeSessions[sessionID]
	if exists {
		delete(m.activeSessions, sessionID)
	}
	m.mu.Unlock()

	if !exists {
		return
	}

	endedAt := m.now()
	if m.recorder != nil {
		m.recorder.RecordSessionEnd(sessionID, endedAt, reason)
	}

	m.logger.Debug("pair session closed",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Duration("duration", endedAt.Sub(record.StartedAt)))
}

// CloseAll ends every open session, used on shutdown
func (m *Manager) CloseAll(reason string) int {
	m.mu.RLock()
	ids := make([]string, 0, len(m.activeSessions))
	for id := range m.activeSessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id, reason)
	}
	return len(ids)
}

// Get returns a copy of an open session record
func (m *Manager) Get(sessionID string) (types.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.activeSessions[sessionID]
	if !exists {
		return types.SessionRecord{}, ErrSessionNotFound
	}
	copied := *record
	copied.SharedInterests = append([]string(nil), record.SharedInterests...)
	return copied, nil
}

// Active returns the number of open sessions
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeSessions)
}
