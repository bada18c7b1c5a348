package testutil

import (
	"errors"
	"sync"
)

// ErrRecorderClosed is returned by Send after Close
var ErrRecorderClosed = errors.New("recorder closed")

// Event is one server -> client event captured by a Recorder
type Event struct {
	Name string
	Data any
}

// Recorder is an in-memory interfaces.Outbound that captures everything sent to it
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	closed  bool
	SendErr error
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send records the event, or fails with SendErr when set
func (r *Recorder) Send(event string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	if r.SendErr != nil {
		return r.SendErr
	}
	r.events = append(r.events, Event{Name: event, Data: data})
	return nil
}

// Close marks the recorder closed
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Events returns a copy of the captured events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the captured events with the given name
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, event := range r.Events() {
		if event.Name == name {
			out = append(out, event)
		}
	}
	return out
}

// Count returns how many events with the given name were captured
func (r *Recorder) Count(name string) int {
	return len(r.Named(name))
}

// Reset discards captured events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
