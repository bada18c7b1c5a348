package lifecycle

import (
	"go.uber.org/zap"

	"chatmatch/internal/registry"
	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

// DefaultPartnerDisconnectedMessage is sent to the surviving member of a pair
const DefaultPartnerDisconnectedMessage = "Your chat partner has disconnected."

// Manager removes terminated connections and dissolves their pair sessions
type Manager struct {
	registry       *registry.Registry
	sessions       interfaces.SessionTracker
	partnerGoneMsg string
	logger         *zap.Logger
}

// NewManager creates a lifecycle manager. An empty message selects the default text.
func NewManager(reg *registry.Registry, sessions interfaces.SessionTracker, partnerGoneMsg string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if partnerGoneMsg == "" {
		partnerGoneMsg = DefaultPartnerDisconnectedMessage
	}
	return &Manager{
		registry:       reg,
		sessions:       sessions,
		partnerGoneMsg: partnerGoneMsg,
		logger:         logger,
	}
}

// OnDisconnect handles the termination of a connection. It is idempotent:
// an id that is no longer registered is ignored. Returns true when a
// connection was actually removed.
func (m *Manager) OnDisconnect(connID string) bool {
	conn, exists := m.registry.Lookup(connID)
	if !exists {
		return false
	}

	var partner *registry.Connection
	if conn.PartnerID != "" {
		if p, ok := m.registry.Lookup(conn.PartnerID); ok && p.PartnerID == conn.ID {
			partner = p
		}
	}
	sessionID := conn.SessionID

	m.registry.Update(func() {
		if partner != nil {
			registry.Unpair(partner)
		}
		conn.PartnerID = ""
		conn.SessionID = ""
	})
	m.registry.Remove(connID)

	if sessionID != "" && m.sessions != nil {
		m.sessions.Close(sessionID, types.EndReasonPartnerDisconnected)
	}

	if partner != nil && partner.Out != nil {
		if err := partner.Out.Send(types.EventChatPartnerDisconnected, m.partnerGoneMsg); err != nil {
			m.logger.Warn("failed to notify surviving partner",
				zap.String("conn_id", partner.ID),
				zap.Error(err))
		}
	}

	fields := []zap.Field{zap.String("conn_id", connID), zap.String("user_id", conn.UserID)}
	if partner != nil {
		fields = append(fields, zap.String("partner_id", partner.ID), zap.String("session_id", sessionID))
	}
	m.logger.Info("connection removed", fields...)
	return true
}
