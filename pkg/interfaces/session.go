package interfaces

// SessionTracker keeps bookkeeping for pair sessions. The registry's partner
// references remain authoritative; the tracker only mints ids and records
// start/end for statistics.
type SessionTracker interface {
	// Open starts a session between two freshly paired connections and returns its id
	Open(sharedInterests []string) string

	// Close ends a session. Unknown or already closed ids are ignored.
	Close(sessionID, reason string)
}
