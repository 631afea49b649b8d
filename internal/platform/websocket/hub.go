// Package websocket provides the real-time dashboard channel. A Hub owns the
// registry of open clients, fans events out to all of them and keeps each
// connection alive with heartbeats while it is idle.
package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/medsoft/medsoft/internal/platform/metrics"
)

// ErrHubClosed is returned when a client is served after Close.
var ErrHubClosed = errors.New("websocket: hub closed")

// EventPublisher is the write-path view of the hub.
type EventPublisher interface {
	Publish(event Event) bool
}

// Options tunes the hub.
type Options struct {
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	QueueSize         int
	Clock             clockwork.Clock
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      10 * time.Second,
		QueueSize:         64,
		Clock:             clockwork.NewRealClock(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = d.HeartbeatInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.QueueSize <= 0 {
		o.QueueSize = d.QueueSize
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	return o
}

// Hub is the central connection manager. Events handed to Publish are
// delivered by a single dispatcher goroutine (see Run), so every client
// observes them in publication order.
type Hub struct {
	registry *Registry
	opts     Options
	logger   zerolog.Logger

	queue     chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

// NewHub creates a Hub ready to manage dashboard clients.
func NewHub(logger zerolog.Logger, opts Options) *Hub {
	opts = opts.withDefaults()
	return &Hub{
		registry: NewRegistry(),
		opts:     opts,
		logger:   logger.With().Str("component", "websocket").Logger(),
		queue:    make(chan Event, opts.QueueSize),
		closed:   make(chan struct{}),
	}
}

// Registry exposes the client registry for inspection.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// NewClient builds a client bound to the hub's clock and write timeout.
func (h *Hub) NewClient(id string, conn Conn) *Client {
	return NewClient(id, conn, h.opts.Clock, h.opts.WriteTimeout)
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	return h.registry.Len()
}

// Broadcast delivers event to every client registered at call time and
// returns once each attempt has completed or failed. Clients that fail are
// removed and closed; failures never reach the caller.
func (h *Hub) Broadcast(event Event) {
	clients := h.registry.Snapshot()
	metrics.WebSocketBroadcasts.WithLabelValues(event.Type).Inc()
	if len(clients) == 0 {
		return
	}

	start := h.opts.Clock.Now()
	data, encErr := event.Encode()
	if encErr != nil {
		encErr = &DeliveryError{Reason: ReasonSerialization, Err: encErr}
	}

	var wg conc.WaitGroup
	for _, c := range clients {
		c := c
		wg.Go(func() {
			err := encErr
			if err == nil {
				err = c.SendRaw(data)
			}
			if err != nil {
				h.drop(c, err)
			}
		})
	}
	wg.Wait()

	metrics.WebSocketSendDuration.Observe(h.opts.Clock.Since(start).Seconds())
}

// Publish queues event for background delivery and returns immediately.
// It reports false when the hub is closed or the queue is full, in which
// case the event is dropped.
func (h *Hub) Publish(event Event) bool {
	select {
	case <-h.closed:
		return false
	default:
	}

	select {
	case h.queue <- event:
		return true
	default:
		metrics.WebSocketDroppedEvents.Inc()
		h.logger.Warn().Str("type", event.Type).Msg("dispatch queue full, event dropped")
		return false
	}
}

// Run drains the publish queue until done is closed or the hub is closed.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-h.closed:
			return
		case event := <-h.queue:
			h.Broadcast(event)
		}
	}
}

// Close stops the dispatcher and closes every registered client, which
// makes their liveness loops exit on the next read.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.closed)
		for _, c := range h.registry.Snapshot() {
			h.release(c)
		}
		h.logger.Info().Msg("hub closed")
	})
}

func (h *Hub) isClosed() bool {
	select {
	case <-h.closed:
		return true
	default:
		return false
	}
}

func (h *Hub) drop(c *Client, err error) {
	metrics.WebSocketDeliveryFailures.WithLabelValues(failureReason(err)).Inc()
	if h.registry.Remove(c) {
		h.logger.Debug().Err(err).Str("client_id", c.ID).Msg("client dropped after failed delivery")
	}
	_ = c.Close()
}

func (h *Hub) release(c *Client) {
	h.registry.Remove(c)
	_ = c.Close()
}
