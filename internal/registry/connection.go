package registry

import (
	"time"

	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

// Connection is the registry entry for one live client attachment.
// Fields are only mutated by the hub goroutine through the core components;
// other goroutines only see them through Registry.GetStats.
type Connection struct {
	ID           string
	UserID       string
	Interests    []string
	State        types.ConnState
	PartnerID    string // non-owning; resolve through Registry.Lookup
	SessionID    string
	Out          interfaces.Outbound
	AttachedAt   time.Time
	RegisteredAt time.Time
}

// NewConnection creates an unregistered entry
func NewConnection(id string, out interfaces.Outbound) *Connection {
	return &Connection{
		ID:         id,
		State:      types.StateUnregistered,
		Out:        out,
		AttachedAt: time.Now(),
	}
}

// Waiting reports whether the connection is registered and unpaired
func (c *Connection) Waiting() bool {
	return c.State == types.StateRegistered && c.PartnerID == ""
}

// Pair links a and b symmetrically under one session id
func Pair(a, b *Connection, sessionID string) {
	a.PartnerID, b.PartnerID = b.ID, a.ID
	a.SessionID, b.SessionID = sessionID, sessionID
	a.State, b.State = types.StateMatched, types.StateMatched
}

// Unpair drops c's side of a pair and returns it to the registered state
func Unpair(c *Connection) {
	c.PartnerID = ""
	c.SessionID = ""
	c.State = types.StateRegistered
}
