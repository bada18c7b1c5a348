package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatmatch/internal/codec"
)

// ErrClientClosed is returned when the client has been closed or the server hung up
var ErrClientClosed = errors.New("client disconnected")

// Client is a WebSocket chat client for end-to-end tests
type Client struct {
	ServerURL string
	Origin    string

	codec  codec.Codec
	conn   *websocket.Conn
	events chan *codec.Inbound
	errors chan error
	done   chan struct{}

	mu        sync.RWMutex
	closed    bool
	connected bool
	doneOnce  sync.Once
}

// NewClient creates a client for serverURL (http:// or ws://) speaking the given codec.
// A nil codec means JSON.
func NewClient(serverURL string, c codec.Codec) *Client {
	if c == nil {
		c = codec.Default()
	}
	return &Client{
		ServerURL: serverURL,
		codec:     c,
		events:    make(chan *codec.Inbound, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}
}

// Connect dials the /ws endpoint and starts reading events
func (tc *Client) Connect(ctx context.Context) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.connected {
		return fmt.Errorf("client already connected")
	}

	u, err := url.Parse(tc.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	header := http.Header{}
	if tc.Origin != "" {
		header.Set("Origin", tc.Origin)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
		Subprotocols:     []string{tc.codec.Subprotocol()},
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}

	tc.conn = conn
	tc.connected = true
	go tc.readLoop()
	return nil
}

// Subprotocol returns the subprotocol the server accepted
func (tc *Client) Subprotocol() string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.conn == nil {
		return ""
	}
	return tc.conn.Subprotocol()
}

func (tc *Client) readLoop() {
	defer func() {
		tc.mu.Lock()
		tc.connected = false
		tc.mu.Unlock()
		tc.signalDone()
	}()

	for {
		tc.mu.RLock()
		conn, closed := tc.conn, tc.closed
		tc.mu.RUnlock()
		if closed || conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}

		in, err := tc.codec.Decode(frame)
		if err != nil {
			select {
			case tc.errors <- fmt.Errorf("decode error: %w", err):
			default:
			}
			continue
		}

		select {
		case tc.events <- in:
		default:
			select {
			case tc.errors <- fmt.Errorf("event channel full, dropping %s", in.Event):
			default:
			}
		}
	}
}

// Emit sends one event with an optional payload
func (tc *Client) Emit(event string, data any) error {
	tc.mu.RLock()
	conn, connected := tc.conn, tc.connected
	tc.mu.RUnlock()
	if !connected || conn == nil {
		return fmt.Errorf("client not connected")
	}

	frame, err := tc.codec.Encode(event, data)
	if err != nil {
		return err
	}
	return tc.WriteRaw(frame)
}

// WriteRaw sends a frame as-is, using the codec's frame type
func (tc *Client) WriteRaw(frame []byte) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.conn == nil || tc.closed {
		return ErrClientClosed
	}
	messageType := websocket.TextMessage
	if tc.codec.Binary() {
		messageType = websocket.BinaryMessage
	}
	_ = tc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return tc.conn.WriteMessage(messageType, frame)
}

// Receive waits for the next event
func (tc *Client) Receive(timeout time.Duration) (*codec.Inbound, error) {
	select {
	case in := <-tc.events:
		return in, nil
	case err := <-tc.errors:
		return nil, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout waiting for event")
	case <-tc.done:
		// Events read before the server hung up are still delivered
		select {
		case in := <-tc.events:
			return in, nil
		default:
			return nil, ErrClientClosed
		}
	}
}

// Expect waits for the next event and fails unless it is named event.
// When v is non-nil the payload is bound into it.
func (tc *Client) Expect(event string, v any, timeout time.Duration) error {
	in, err := tc.Receive(timeout)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", event, err)
	}
	if in.Event != event {
		return fmt.Errorf("expected event %s, got %s", event, in.Event)
	}
	if v != nil {
		return in.Bind(v)
	}
	return nil
}

// ExpectNone fails if any event arrives within wait
func (tc *Client) ExpectNone(wait time.Duration) error {
	select {
	case in := <-tc.events:
		return fmt.Errorf("unexpected event %s", in.Event)
	case <-time.After(wait):
		return nil
	}
}

// Done is closed when the connection ends
func (tc *Client) Done() <-chan struct{} {
	return tc.done
}

// Close sends a normal close frame and releases the connection
func (tc *Client) Close() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.closed {
		return nil
	}
	tc.closed = true

	if tc.conn != nil {
		_ = tc.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = tc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = tc.conn.Close()
	}
	tc.signalDone()
	return nil
}

func (tc *Client) signalDone() {
	tc.doneOnce.Do(func() { close(tc.done) })
}
