package relay

import (
	"go.uber.org/zap"

	"chatmatch/internal/registry"
	"chatmatch/pkg/types"
)

// Relay forwards chat messages and typing signals strictly between the two
// members of a pair. Delivery is best-effort: a missing partner drops the
// event silently and nothing is ever queued for later.
type Relay struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// NewRelay creates a relay over the given registry
func NewRelay(reg *registry.Registry, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		registry: reg,
		logger:   logger,
	}
}

// RelayMessage forwards text verbatim to the sender's current partner.
// An empty text is dropped rather than relayed: the browser client never sends
// one, so it can only come from a misbehaving client and would show the
// partner an empty bubble.
// It reports whether the message was handed to the partner's connection.
func (r *Relay) RelayMessage(fromID, text string) bool {
	if text == "" {
		return false
	}
	partner, ok := r.partnerOf(fromID)
	if !ok {
		r.logger.Debug("message dropped, no partner", zap.String("conn_id", fromID))
		return false
	}
	return r.deliver(fromID, partner, types.EventReceiveMessage, text)
}

// RelayTyping forwards a typing or stopTyping signal to the sender's partner
func (r *Relay) RelayTyping(fromID string, isTyping bool) bool {
	partner, ok := r.partnerOf(fromID)
	if !ok {
		return false
	}
	event := types.EventStopTyping
	if isTyping {
		event = types.EventTyping
	}
	return r.deliver(fromID, partner, event, nil)
}

// partnerOf resolves the sender's partner through the registry. The partner
// reference is only trusted when it points back at the sender.
func (r *Relay) partnerOf(fromID string) (*registry.Connection, bool) {
	sender, exists := r.registry.Lookup(fromID)
	if !exists || sender.PartnerID == "" {
		return nil, false
	}
	partner, exists := r.registry.Lookup(sender.PartnerID)
	if !exists || partner.PartnerID != sender.ID {
		r.logger.Warn("stale partner reference",
			zap.String("conn_id", fromID),
			zap.String("partner_id", sender.PartnerID))
		return nil, false
	}
	return partner, true
}

func (r *Relay) deliver(fromID string, partner *registry.Connection, event string, data any) bool {
	if partner.Out == nil {
		return false
	}
	if err := partner.Out.Send(event, data); err != nil {
		r.logger.Warn("relay delivery failed",
			zap.String("conn_id", fromID),
			zap.String("partner_id", partner.ID),
			zap.String("event", event),
			zap.Error(err))
		return false
	}
	return true
}
