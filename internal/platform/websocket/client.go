package websocket

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// State is the lifecycle state of a dashboard connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrClientClosed is returned when sending on a client that is no longer open.
var ErrClientClosed = errors.New("websocket: client closed")

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client represents a single dashboard connection. Writes are serialized by
// writeMu; gorilla connections support one concurrent writer only.
type Client struct {
	ID string

	conn         Conn
	clock        clockwork.Clock
	writeTimeout time.Duration

	state     atomic.Int32
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewClient wraps conn. The client starts in StateConnecting and becomes open
// when the hub serves it.
func NewClient(id string, conn Conn, clock clockwork.Clock, writeTimeout time.Duration) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Client{
		ID:           id,
		conn:         conn,
		clock:        clock,
		writeTimeout: writeTimeout,
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// State reports the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) markOpen() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// Send serializes ev and writes it as a text frame.
func (c *Client) Send(ev Event) error {
	data, err := ev.Encode()
	if err != nil {
		return &DeliveryError{Reason: ReasonSerialization, Err: err}
	}
	return c.SendRaw(data)
}

// SendRaw writes an already encoded frame.
func (c *Client) SendRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(data)
}

func (c *Client) writeLocked(data []byte) error {
	if c.State() != StateOpen {
		return &DeliveryError{Reason: ReasonClosed, Err: ErrClientClosed}
	}
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(c.clock.Now().Add(c.writeTimeout)); err != nil {
			return &DeliveryError{Reason: ReasonTransport, Err: err}
		}
	}
	if err := c.conn.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
		return &DeliveryError{Reason: ReasonTransport, Err: err}
	}
	return nil
}

// Close moves the client to StateClosed and closes the transport. It is safe
// to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		err = c.conn.Close()
		c.state.Store(int32(StateClosed))
	})
	return err
}

// Delivery failure reasons, used as metric labels.
const (
	ReasonTransport     = "transport"
	ReasonSerialization = "serialization"
	ReasonClosed        = "closed"
)

// DeliveryError describes why a frame could not be delivered to one client.
type DeliveryError struct {
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("websocket: %s failure: %v", e.Reason, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func failureReason(err error) string {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ReasonTransport
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) SetWriteDeadline(t time.Time) error {
	return a.conn.SetWriteDeadline(t)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
