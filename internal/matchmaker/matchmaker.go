package matchmaker

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatmatch/internal/registry"
	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

// Options tunes registration handling
type Options struct {
	Policy types.RegistrationPolicy
	// GenerateUserIDs assigns "stranger-xxxxxxxx" labels to clients that send no userId
	GenerateUserIDs bool
}

// Matchmaker pairs a newly registered connection with the first waiting
// connection, in registry insertion order, that shares at least one interest.
// It must only be called from the hub goroutine.
type Matchmaker struct {
	registry *registry.Registry
	sessions interfaces.SessionTracker
	options  Options
	logger   *zap.Logger
}

// NewMatchmaker creates a matchmaker over the given registry
func NewMatchmaker(reg *registry.Registry, sessions interfaces.SessionTracker, options Options, logger *zap.Logger) *Matchmaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matchmaker{
		registry: reg,
		sessions: sessions,
		options:  options,
		logger:   logger,
	}
}

// Register validates a registration, marks the connection registered and
// tries to pair it. A waiting result is not an error: the connection stays
// discoverable by later registrants and never scans again by itself.
func (m *Matchmaker) Register(connID, userID string, interests []string) (types.MatchResult, error) {
	conn, exists := m.registry.Lookup(connID)
	if !exists {
		return types.MatchResult{}, types.ErrUnknownConnection
	}

	if conn.State != types.StateUnregistered {
		notify(m.logger, conn, types.EventError, "You are already registered")
		return types.MatchResult{}, types.ErrAlreadyRegistered
	}

	if m.options.GenerateUserIDs && strings.TrimSpace(userID) == "" {
		userID = "stranger-" + uuid.New().String()[:8]
	}

	userID, interests, err := types.ValidateRegistration(userID, interests, m.options.Policy)
	if err != nil {
		m.logger.Info("registration rejected", zap.String("conn_id", connID), zap.Error(err))
		notify(m.logger, conn, types.EventError, errorText(err))
		return types.MatchResult{}, err
	}

	partner, shared := m.findPartner(connID, interests)

	var sessionID string
	if partner != nil {
		sessionID = m.sessions.Open(shared)
	}

	m.registry.Update(func() {
		conn.UserID = userID
		conn.Interests = interests
		conn.State = types.StateRegistered
		conn.RegisteredAt = time.Now()
		if partner != nil {
			registry.Pair(conn, partner, sessionID)
		}
	})

	if partner == nil {
		m.logger.Info("connection waiting for partner",
			zap.String("conn_id", connID),
			zap.String("user_id", userID),
			zap.Strings("interests", interests))
		return types.MatchResult{Outcome: types.OutcomeWaiting}, nil
	}

	notify(m.logger, conn, types.EventMatched, types.MatchedPayload{
		UserID:    partner.UserID,
		Interests: append([]string(nil), partner.Interests...),
	})
	notify(m.logger, partner, types.EventMatched, types.MatchedPayload{
		UserID:    conn.UserID,
		Interests: append([]string(nil), conn.Interests...),
	})

	m.logger.Info("connections matched",
		zap.String("conn_id", connID),
		zap.String("partner_id", partner.ID),
		zap.String("session_id", sessionID),
		zap.Strings("shared_interests", shared))

	return types.MatchResult{
		Outcome:          types.OutcomeMatched,
		PartnerID:        partner.ID,
		PartnerUserID:    partner.UserID,
		PartnerInterests: append([]string(nil), partner.Interests...),
		SharedInterests:  shared,
		SessionID:        sessionID,
	}, nil
}

// findPartner scans in insertion order and returns the first eligible candidate.
// No scoring: the earliest waiting connection with any overlap wins.
func (m *Matchmaker) findPartner(connID string, interests []string) (*registry.Connection, []string) {
	for _, candidate := range m.registry.All() {
		if candidate.ID == connID || !candidate.Waiting() {
			continue
		}
		if shared := types.SharedInterests(interests, candidate.Interests); len(shared) > 0 {
			return candidate, shared
		}
	}
	return nil, nil
}

// notify sends one event and logs delivery failures. Failed sends never roll
// back state; a broken transport is cleaned up by its own disconnect.
func notify(logger *zap.Logger, conn *registry.Connection, event string, data any) {
	if conn.Out == nil {
		return
	}
	if err := conn.Out.Send(event, data); err != nil {
		logger.Warn("failed to notify connection",
			zap.String("conn_id", conn.ID),
			zap.String("event", event),
			zap.Error(err))
	}
}

// errorText turns a registration error into the message shown to the client
func errorText(err error) string {
	text := err.Error()
	if idx := strings.Index(text, ": "); idx >= 0 {
		text = text[idx+2:]
	}
	if text == "" {
		return "registration failed"
	}
	return text
}
