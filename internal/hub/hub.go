package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"chatmatch/internal/lifecycle"
	"chatmatch/internal/matchmaker"
	"chatmatch/internal/registry"
	"chatmatch/internal/relay"
	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

// DefaultWelcomeMessage is sent once to every new connection
const DefaultWelcomeMessage = "Welcome! Choose your interests to meet someone who shares them."

// Components are the core operations the hub serialises
type Components struct {
	Registry   *registry.Registry
	Matchmaker *matchmaker.Matchmaker
	Relay      *relay.Relay
	Lifecycle  *lifecycle.Manager
	Sessions   SessionCloser
}

// SessionCloser closes every open pair session on shutdown
type SessionCloser interface {
	CloseAll(reason string) int
}

// Options tunes the hub
type Options struct {
	WelcomeMessage string
	QueueSize      int
}

type eventKind int

const (
	eventAttach eventKind = iota
	eventRegister
	eventMessage
	eventTyping
	eventDisconnect
	eventSync
)

// event is one connection-originated request. A single ordered queue keeps
// per-connection ordering (register before sendMessage) intact.
type event struct {
	kind      eventKind
	connID    string
	out       interfaces.Outbound
	userID    string
	interests []string
	text      string
	typing    bool
	done      chan error
}

// Hub is the single coordination goroutine. Every registry mutation happens
// inside one event handler, run to completion before the next event starts,
// so registration, matching, relay and disconnect cleanup never interleave.
type Hub struct {
	events          chan event
	shutdownChannel chan struct{}
	stopped         chan struct{}

	components Components
	welcome    string
	logger     *zap.Logger

	processed atomic.Uint64

	running bool
	mu      sync.RWMutex
}

// NewHub creates a new hub
func NewHub(components Components, options Options, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.QueueSize <= 0 {
		options.QueueSize = 1000
	}
	if options.WelcomeMessage == "" {
		options.WelcomeMessage = DefaultWelcomeMessage
	}
	return &Hub{
		events:          make(chan event, options.QueueSize),
		shutdownChannel: make(chan struct{}),
		stopped:         make(chan struct{}),
		components:      components,
		welcome:         options.WelcomeMessage,
		logger:          logger,
	}
}

// Start begins hub processing
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	select {
	case <-h.stopped:
		h.mu.Unlock()
		return ErrHubStopped
	default:
	}
	h.running = true
	h.mu.Unlock()

	h.logger.Info("starting hub")
	go h.run(ctx)
	return nil
}

// Stop shuts the hub down and waits for the processing goroutine to exit.
// Remaining connections are closed and their sessions recorded as ended.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}
	h.mu.Unlock()

	h.logger.Info("stopping hub")
	<-h.stopped
	return nil
}

// Attach inserts a new unregistered connection and sends it the welcome
// message. It waits for the hub so a duplicate id is reported to the caller.
func (h *Hub) Attach(ctx context.Context, connID string, out interfaces.Outbound) error {
	if out == nil {
		return ErrNilOutbound
	}
	done := make(chan error, 1)
	if err := h.enqueue(ctx, event{kind: eventAttach, connID: connID, out: out, done: done}); err != nil {
		return err
	}
	return h.wait(ctx, done)
}

// Register queues a registration request
func (h *Hub) Register(ctx context.Context, connID, userID string, interests []string) error {
	return h.enqueue(ctx, event{kind: eventRegister, connID: connID, userID: userID, interests: interests})
}

// SendMessage queues a chat message for relay to the sender's partner
func (h *Hub) SendMessage(ctx context.Context, connID, text string) error {
	return h.enqueue(ctx, event{kind: eventMessage, connID: connID, text: text})
}

// Typing queues a typing (true) or stopTyping (false) signal
func (h *Hub) Typing(ctx context.Context, connID string, isTyping bool) error {
	return h.enqueue(ctx, event{kind: eventTyping, connID: connID, typing: isTyping})
}

// Disconnect queues the termination of a connection
func (h *Hub) Disconnect(ctx context.Context, connID string) error {
	return h.enqueue(ctx, event{kind: eventDisconnect, connID: connID})
}

// Sync returns once every event queued before it has been processed
func (h *Hub) Sync(ctx context.Context) error {
	done := make(chan error, 1)
	if err := h.enqueue(ctx, event{kind: eventSync, done: done}); err != nil {
		return err
	}
	return h.wait(ctx, done)
}

// Processed returns the number of events handled so far
func (h *Hub) Processed() uint64 {
	return h.processed.Load()
}

// IsRunning reports whether the hub accepts events
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func (h *Hub) enqueue(ctx context.Context, ev event) error {
	if !h.IsRunning() {
		return ErrHubNotRunning
	}
	select {
	case h.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		return ErrHubNotRunning
	}
}

func (h *Hub) wait(ctx context.Context, done chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		return ErrHubNotRunning
	}
}

// run is the main hub processing loop
func (h *Hub) run(ctx context.Context) {
	defer close(h.stopped)
	defer h.closeAll()

	for {
		select {
		case ev := <-h.events:
			h.handle(ev)
			h.processed.Add(1)

		case <-h.shutdownChannel:
			h.logger.Info("hub shutdown requested")
			return

		case <-ctx.Done():
			h.logger.Info("hub context cancelled")
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) handle(ev event) {
	switch ev.kind {
	case eventAttach:
		ev.done <- h.handleAttach(ev.connID, ev.out)

	case eventRegister:
		// Rejections are reported to the client by the matchmaker itself
		_, _ = h.components.Matchmaker.Register(ev.connID, ev.userID, ev.interests)

	case eventMessage:
		h.components.Relay.RelayMessage(ev.connID, ev.text)

	case eventTyping:
		h.components.Relay.RelayTyping(ev.connID, ev.typing)

	case eventDisconnect:
		h.components.Lifecycle.OnDisconnect(ev.connID)

	case eventSync:
		ev.done <- nil
	}
}

func (h *Hub) handleAttach(connID string, out interfaces.Outbound) error {
	if err := h.components.Registry.Insert(registry.NewConnection(connID, out)); err != nil {
		h.logger.Error("connection attach failed", zap.String("conn_id", connID), zap.Error(err))
		return err
	}
	if err := out.Send(types.EventWelcome, h.welcome); err != nil {
		h.logger.Warn("failed to send welcome", zap.String("conn_id", connID), zap.Error(err))
	}
	h.logger.Debug("connection attached", zap.String("conn_id", connID))
	return nil
}

// closeAll tears down every remaining connection when the hub exits
func (h *Hub) closeAll() {
	if h.components.Sessions != nil {
		if closed := h.components.Sessions.CloseAll(types.EndReasonShutdown); closed > 0 {
			h.logger.Info("closed pair sessions on shutdown", zap.Int("sessions", closed))
		}
	}
	for _, conn := range h.components.Registry.All() {
		if conn.Out != nil {
			_ = conn.Out.Close()
		}
		h.components.Registry.Remove(conn.ID)
	}
	h.logger.Info("hub processing stopped")
}
