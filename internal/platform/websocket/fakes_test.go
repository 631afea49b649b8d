package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var errFakeClosed = errors.New("fake: use of closed connection")

// fakeConn records written frames and blocks reads until a frame is pushed
// or the connection is closed.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	writeErr error
	closed   bool

	inbound   chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 8),
		done:    make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-f.inbound:
		return gorillawebsocket.TextMessage, msg, nil
	case <-f.done:
		return 0, nil, errFakeClosed
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFakeClosed
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.done)
	})
	return nil
}

// failWrites makes every following write fail while reads keep blocking.
func (f *fakeConn) failWrites() {
	f.mu.Lock()
	f.writeErr = errors.New("fake: broken pipe")
	f.mu.Unlock()
}

func (f *fakeConn) send(msg string) {
	f.inbound <- []byte(msg)
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) events(t *testing.T) []Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, 0, len(f.frames))
	for _, raw := range f.frames {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("frame is not an event: %v (%s)", err, raw)
		}
		out = append(out, ev)
	}
	return out
}

func newTestHub(t *testing.T) (*Hub, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	hub := NewHub(zerolog.Nop(), Options{
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      time.Second,
		QueueSize:         64,
		Clock:             clock,
	})
	t.Cleanup(hub.Close)
	return hub, clock
}

// openClient registers an already-open client without running its liveness loop.
func openClient(hub *Hub, id string) (*Client, *fakeConn) {
	conn := newFakeConn()
	c := hub.NewClient(id, conn)
	c.markOpen()
	hub.Registry().Add(c)
	return c, conn
}
