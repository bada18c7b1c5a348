package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatmatch/internal/codec"
	"chatmatch/pkg/interfaces"
	"chatmatch/pkg/types"
)

// Test WebSocket upgrader for creating test connections
var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestConnection_InterfaceCompliance(t *testing.T) {
	var _ interfaces.Outbound = &Connection{}
}

func TestConnection_NewConnectionInitialization(t *testing.T) {
	conn := NewConnection("c1", createTestWebSocketConnection(t, nil), nil, 0, 0, nil)
	defer conn.Close()

	if conn.ID() != "c1" {
		t.Errorf("ID() = %q", conn.ID())
	}
	if cap(conn.writeCh) != DefaultBufferSize {
		t.Errorf("Expected write channel buffer of %d, got %d", DefaultBufferSize, cap(conn.writeCh))
	}
	if conn.Codec().Name() != "json" {
		t.Errorf("Expected json codec by default, got %s", conn.Codec().Name())
	}
}

func TestConnection_SendDeliversFrame(t *testing.T) {
	frames := make(chan []byte, 1)
	conn := NewConnection("c1", createTestWebSocketConnection(t, frames), codec.JSON{}, 10, time.Second, nil)
	defer conn.Close()

	if err := conn.Send(types.EventReceiveMessage, "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case frame := <-frames:
		want := `{"event":"receiveMessage","data":"hello"}`
		if string(frame) != want {
			t.Errorf("frame = %s, want %s", frame, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestConnection_SendEncodeError(t *testing.T) {
	conn := NewConnection("c1", createTestWebSocketConnection(t, nil), codec.JSON{}, 10, time.Second, nil)
	defer conn.Close()

	err := conn.Send(types.EventError, map[string]any{"func": func() {}})
	if !errors.Is(err, ErrEncodeFailed) {
		t.Errorf("Expected ErrEncodeFailed, got %v", err)
	}
}

func TestConnection_SendBufferFullClosesConnection(t *testing.T) {
	// No writer goroutine, so the queue is never drained
	ctx, cancel := context.WithCancel(context.Background())
	conn := &Connection{
		id:      "slow",
		codec:   codec.JSON{},
		writeCh: make(chan []byte, 1),
		ctx:     ctx,
		cancel:  cancel,
		logger:  zap.NewNop(),
	}

	if err := conn.Send(types.EventTyping, nil); err != nil {
		t.Fatalf("first Send should fit in the buffer: %v", err)
	}
	if err := conn.Send(types.EventTyping, nil); err != ErrSendBufferFull {
		t.Fatalf("Expected ErrSendBufferFull, got %v", err)
	}
	select {
	case <-conn.Done():
	default:
		t.Error("slow connection should be closed")
	}
	if err := conn.Send(types.EventTyping, nil); err != ErrConnectionClosed {
		t.Errorf("Expected ErrConnectionClosed after overflow, got %v", err)
	}
}

func TestConnection_CloseIdempotent(t *testing.T) {
	conn := NewConnection("c1", createTestWebSocketConnection(t, nil), nil, 0, 0, nil)

	for i := 0; i < 3; i++ {
		if err := conn.Close(); err != nil {
			t.Errorf("Close #%d failed: %v", i+1, err)
		}
	}
}

func TestConnection_WriteAfterClose(t *testing.T) {
	conn := NewConnection("c1", createTestWebSocketConnection(t, nil), nil, 0, 0, nil)
	_ = conn.Close()

	if err := conn.Send(types.EventWelcome, "hi"); err != ErrConnectionClosed {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
}

func TestConnection_ConcurrentSends(t *testing.T) {
	conn := NewConnection("c1", createTestWebSocketConnection(t, nil), nil, 1000, time.Second, nil)
	defer conn.Close()

	const numGoroutines = 10
	const messagesPerGoroutine = 10

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < messagesPerGoroutine; j++ {
				if err := conn.Send(types.EventReceiveMessage, "x"); err != nil {
					t.Errorf("Send failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}

func TestConnection_WriterStopsOnClose(t *testing.T) {
	conn := NewConnection("c1", createTestWebSocketConnection(t, nil), nil, 0, 0, nil)
	_ = conn.Close()

	select {
	case <-conn.writerDone:
	case <-time.After(time.Second):
		t.Fatal("writer goroutine did not exit")
	}
}

func TestConnection_OverflowDoesNotWaitOnStalledPeer(t *testing.T) {
	// The peer never reads, so the writer eventually blocks inside WriteMessage
	conn := NewConnection("stalled", createStalledWebSocketConnection(t), codec.JSON{}, 1, 10*time.Second, nil)
	defer conn.Close()

	payload := strings.Repeat("x", 4<<20)
	overflowed := false
	for i := 0; i < 64 && !overflowed; i++ {
		start := time.Now()
		err := conn.Send(types.EventReceiveMessage, payload)
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Fatalf("Send %d blocked for %v", i, elapsed)
		}
		switch err {
		case nil:
		case ErrSendBufferFull:
			overflowed = true
		default:
			t.Fatalf("Send %d: unexpected error %v", i, err)
		}
	}
	if !overflowed {
		t.Fatal("expected the send buffer to overflow")
	}

	select {
	case <-conn.writerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("writer stayed blocked after the socket was dropped")
	}
}

func TestConnection_CloseDoesNotBlock(t *testing.T) {
	conn := NewConnection("stalled", createStalledWebSocketConnection(t), codec.JSON{}, 4, 10*time.Second, nil)
	_ = conn.Send(types.EventReceiveMessage, strings.Repeat("x", 4<<20))
	_ = conn.Send(types.EventReceiveMessage, strings.Repeat("x", 4<<20))

	start := time.Now()
	_ = conn.Close()
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Close took %v", elapsed)
	}
}

// createStalledWebSocketConnection dials a server that upgrades and then
// never reads again.
func createStalledWebSocketConnection(t *testing.T) *websocket.Conn {
	t.Helper()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to create test WebSocket connection: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// createTestWebSocketConnection dials a throwaway server. Frames the server
// reads are forwarded to frames when it is non-nil.
func createTestWebSocketConnection(t *testing.T, frames chan<- []byte) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if frames != nil {
				frames <- data
			}
		}
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to create test WebSocket connection: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
