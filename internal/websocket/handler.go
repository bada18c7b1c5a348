package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatmatch/internal/codec"
	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

// Dispatcher receives connection events, in order, for one connection at a time
type Dispatcher interface {
	Attach(ctx context.Context, connID string, out interfaces.Outbound) error
	Register(ctx context.Context, connID, userID string, interests []string) error
	SendMessage(ctx context.Context, connID, text string) error
	Typing(ctx context.Context, connID string, isTyping bool) error
	Disconnect(ctx context.Context, connID string) error
}

// Options configures the upgrade handler and per-connection timing
type Options struct {
	AllowedOrigins   []string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	BufferSize       int
	MaxMessageSize   int64
}

// DefaultOptions returns the production heartbeat settings
func DefaultOptions() Options {
	return Options{
		AllowedOrigins:   []string{"*"},
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     DefaultWriteTimeout,
		BufferSize:       DefaultBufferSize,
		MaxMessageSize:   64 * 1024,
	}
}

// Handler upgrades HTTP requests to chat connections and pumps decoded
// client events into the dispatcher
type Handler struct {
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	options    Options
	logger     *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(dispatcher Dispatcher, options Options, logger *zap.Logger) (*Handler, error) {
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if options.PingInterval <= 0 {
		options.PingInterval = defaults.PingInterval
	}
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = defaults.ReadTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaults.WriteTimeout
	}
	if options.BufferSize <= 0 {
		options.BufferSize = defaults.BufferSize
	}
	if options.MaxMessageSize <= 0 {
		options.MaxMessageSize = defaults.MaxMessageSize
	}

	h := &Handler{
		dispatcher: dispatcher,
		options:    options,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: options.HandshakeTimeout,
		Subprotocols:     codec.Subprotocols(),
		CheckOrigin: func(r *http.Request) bool {
			if err := h.CheckOrigin(r); err != nil {
				h.logger.Warn("rejected websocket upgrade",
					zap.String("origin", r.Header.Get("Origin")), zap.Error(err))
				return false
			}
			return true
		},
	}
	return h, nil
}

// CheckOrigin applies the allowed-origin list. "*" allows everything, an
// empty list allows only same-origin requests, and requests without an
// Origin header (non-browser clients) are always allowed.
func (h *Handler) CheckOrigin(r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}

	if len(h.options.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err == nil && strings.EqualFold(u.Host, r.Host) {
			return nil
		}
		return ErrOriginNotAllowed
	}

	for _, allowed := range h.options.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return nil
		}
	}
	return ErrOriginNotAllowed
}

// HandleWebSocket upgrades the request and attaches the new connection
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error response
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c, err := codec.ByName(conn.Subprotocol())
	if err != nil {
		c = codec.Default()
	}

	wsConn := NewConnection(uuid.NewString(), conn, c, h.options.BufferSize, h.options.WriteTimeout, h.logger)

	ctx, cancel := context.WithTimeout(context.Background(), h.options.HandshakeTimeout)
	err = h.dispatcher.Attach(ctx, wsConn.ID(), wsConn)
	cancel()
	if err != nil {
		h.logger.Error("failed to attach connection", zap.String("conn_id", wsConn.ID()), zap.Error(err))
		_ = wsConn.Close()
		return
	}

	h.logger.Info("client connected",
		zap.String("conn_id", wsConn.ID()),
		zap.String("codec", c.Name()),
		zap.String("remote_addr", r.RemoteAddr))

	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump and heartbeat until the client leaves
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		if err := h.dispatcher.Disconnect(context.Background(), conn.ID()); err != nil {
			h.logger.Debug("disconnect not dispatched", zap.String("conn_id", conn.ID()), zap.Error(err))
		}
		_ = conn.Close()
		h.logger.Info("client disconnected", zap.String("conn_id", conn.ID()))
	}()

	conn.conn.SetReadLimit(h.options.MaxMessageSize)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.options.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.options.ReadTimeout))
	})

	go h.heartbeat(conn)

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Debug("websocket read error", zap.String("conn_id", conn.ID()), zap.Error(err))
			}
			return
		}
		if !h.dispatch(conn, data) {
			return
		}
	}
}

func (h *Handler) heartbeat(conn *Connection) {
	ticker := time.NewTicker(h.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.options.WriteTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		case <-conn.Done():
			return
		}
	}
}

// dispatch decodes one client frame and forwards it. It returns false once
// the dispatcher no longer accepts events.
func (h *Handler) dispatch(conn *Connection, frame []byte) bool {
	in, err := conn.Codec().Decode(frame)
	if err != nil {
		h.logger.Debug("malformed frame", zap.String("conn_id", conn.ID()), zap.Error(err))
		_ = conn.Send(types.EventError, "Malformed message")
		return true
	}

	ctx := context.Background()
	switch in.Event {
	case types.EventRegister:
		var req types.RegisterRequest
		if err := in.Bind(&req); err != nil && !errors.Is(err, codec.ErrMissingData) {
			_ = conn.Send(types.EventError, "Invalid registration payload")
			return true
		}
		err = h.dispatcher.Register(ctx, conn.ID(), req.UserID, req.Interests)

	case types.EventSendMessage:
		var text string
		if err := in.Bind(&text); err != nil {
			_ = conn.Send(types.EventError, "Invalid message payload")
			return true
		}
		err = h.dispatcher.SendMessage(ctx, conn.ID(), text)

	case types.EventTyping:
		err = h.dispatcher.Typing(ctx, conn.ID(), true)

	case types.EventStopTyping:
		err = h.dispatcher.Typing(ctx, conn.ID(), false)

	default:
		_ = conn.Send(types.EventError, "Unknown event: "+in.Event)
		return true
	}

	if err != nil {
		h.logger.Debug("event not dispatched",
			zap.String("conn_id", conn.ID()), zap.String("event", in.Event), zap.Error(err))
		return false
	}
	return true
}
