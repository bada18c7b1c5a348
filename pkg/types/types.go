package types

import "time"

// Client -> server event names, exactly as the browser client emits them
const (
	EventRegister    = "register"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
)

// Server -> client event names. Typing events reuse EventTyping/EventStopTyping.
const (
	EventWelcome                 = "welcome"
	EventMatched                 = "matched"
	EventReceiveMessage          = "receiveMessage"
	EventError                   = "error"
	EventChatPartnerDisconnected = "chatPartnerDisconnected"
)

// ConnState is the registration state of a single connection.
// Transitions: unregistered -> registered -> matched -> registered (partner left).
// Removal from the registry is terminal and has no state value.
type ConnState int

const (
	StateUnregistered ConnState = iota
	StateRegistered
	StateMatched
)

func (s ConnState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateMatched:
		return "matched"
	default:
		return "unknown"
	}
}

// RegisterRequest is the payload of a client "register" event
type RegisterRequest struct {
	UserID    string   `json:"userId" cbor:"userId"`
	Interests []string `json:"interests" cbor:"interests"`
}

// MatchedPayload describes the partner to each member of a new pair
type MatchedPayload struct {
	UserID    string   `json:"userId" cbor:"userId"`
	Interests []string `json:"interests" cbor:"interests"`
}

// MatchOutcome distinguishes an immediate pairing from a waiting registration
type MatchOutcome int

const (
	OutcomeWaiting MatchOutcome = iota
	OutcomeMatched
)

// MatchResult is returned by the matchmaker for every successful registration.
// Partner fields are only populated when Outcome is OutcomeMatched.
type MatchResult struct {
	Outcome          MatchOutcome
	PartnerID        string
	PartnerUserID    string
	PartnerInterests []string
	SharedInterests  []string
	SessionID        string
}

// Matched reports whether the registration produced a pair
func (r MatchResult) Matched() bool {
	return r.Outcome == OutcomeMatched
}

// SessionRecord is the anonymous statistics row for one pair session.
// It deliberately carries no user ids and no message content.
type SessionRecord struct {
	ID              string     `json:"id"`
	SharedInterests []string   `json:"shared_interests"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	EndReason       string     `json:"end_reason,omitempty"`
}

// SessionSummary aggregates persisted pair sessions
type SessionSummary struct {
	TotalSessions          int64   `json:"total_sessions"`
	EndedSessions          int64   `json:"ended_sessions"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
}

// InterestCount is one row of the top-interests report
type InterestCount struct {
	Interest string `json:"interest"`
	Sessions int64  `json:"sessions"`
}

// Session end reasons recorded in statistics
const (
	EndReasonPartnerDisconnected = "partner_disconnected"
	EndReasonShutdown            = "shutdown"
)
