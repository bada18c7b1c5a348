package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatmatch/internal/codec"
)

// Default connection settings
const (
	DefaultBufferSize   = 100
	DefaultWriteTimeout = 5 * time.Second
)

// Connection implements interfaces.Outbound on top of a gorilla connection.
// All frames go through a single writer goroutine; Send never blocks.
type Connection struct {
	id           string
	conn         *websocket.Conn
	codec        codec.Codec
	writeCh      chan []byte
	writeTimeout time.Duration
	logger       *zap.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
	writerDone   chan struct{}
}

// NewConnection wraps conn and starts its writer goroutine
func NewConnection(id string, conn *websocket.Conn, c codec.Codec, bufferSize int, writeTimeout time.Duration, logger *zap.Logger) *Connection {
	if c == nil {
		c = codec.Default()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	wc := &Connection{
		id:           id,
		conn:         conn,
		codec:        c,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		logger:       logger.With(zap.String("conn_id", id)),
		ctx:          ctx,
		cancel:       cancel,
		writerDone:   make(chan struct{}),
	}

	go wc.writeLoop()

	return wc
}

// ID returns the connection id
func (c *Connection) ID() string {
	return c.id
}

// Codec returns the negotiated codec
func (c *Connection) Codec() codec.Codec {
	return c.codec
}

// Done is closed once the connection has been closed
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Connection) frameType() int {
	if c.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// writeLoop is the only goroutine that writes data or close frames. It
// closes the socket when it exits.
func (c *Connection) writeLoop() {
	defer close(c.writerDone)
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.fail(err)
				return
			}
			if err := c.conn.WriteMessage(c.frameType(), data); err != nil {
				c.fail(err)
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (c *Connection) fail(err error) {
	c.logger.Debug("write failed", zap.Error(err))
	c.closeOnce.Do(c.cancel)
}

// Send encodes the event and queues it for the writer. A full queue means
// the client cannot keep up; the socket is dropped without a close frame and
// ErrSendBufferFull returned. Send never waits on the network.
func (c *Connection) Send(event string, data any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	frame, err := c.codec.Encode(event, data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	select {
	case c.writeCh <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("send buffer full, dropping slow connection", zap.String("event", event))
		c.abort()
		return ErrSendBufferFull
	}
}

// WriteControl sends a control frame such as a ping. Gorilla allows control
// frames concurrently with the writer goroutine.
func (c *Connection) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return c.conn.WriteControl(messageType, data, deadline)
}

// Close asks the writer to send a close frame and release the socket. It
// returns immediately and is safe to call repeatedly.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.writerDone == nil && c.conn != nil {
			_ = c.conn.Close()
		}
	})
	return nil
}

// abort closes the socket at once. Closing the network connection does not
// take gorilla's write lock, so a writer stuck on a peer that stopped reading
// is unblocked instead of waited for.
func (c *Connection) abort() {
	c.closeOnce.Do(c.cancel)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
