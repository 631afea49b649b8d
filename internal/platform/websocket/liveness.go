package websocket

import (
	"context"
	"fmt"

	"github.com/medsoft/medsoft/internal/platform/metrics"
)

// SnapshotFunc computes the event a client receives as soon as it joins.
type SnapshotFunc func(ctx context.Context) (Event, error)

// Serve runs the lifecycle of one accepted client: it registers the client,
// sends the current snapshot, then waits for inbound frames and sends a
// heartbeat whenever the peer stays silent for HeartbeatInterval. Serve
// returns when the peer disconnects, a send fails, ctx is done or the hub is
// closed; the client is removed and closed on every exit path.
func (h *Hub) Serve(ctx context.Context, c *Client, snapshot SnapshotFunc) {
	log := h.logger.With().Str("client_id", c.ID).Logger()
	defer h.release(c)

	if err := h.open(ctx, c, snapshot); err != nil {
		metrics.WebSocketDeliveryFailures.WithLabelValues(failureReason(err)).Inc()
		log.Debug().Err(err).Msg("client failed to open")
		return
	}
	log.Debug().Int("clients", h.registry.Len()).Msg("client connected")

	inbound := make(chan struct{}, 1)
	readErr := make(chan error, 1)
	go readLoop(c.conn, inbound, readErr)

	interval := h.opts.HeartbeatInterval
	timer := h.opts.Clock.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("client context done")
			return
		case <-h.closed:
			return
		case err := <-readErr:
			log.Debug().Err(err).Msg("client disconnected")
			return
		case <-inbound:
			// Client frames carry no commands; they only prove liveness.
			if !timer.Stop() {
				select {
				case <-timer.Chan():
				default:
				}
			}
			timer.Reset(interval)
		case <-timer.Chan():
			if err := c.Send(PingEvent()); err != nil {
				metrics.WebSocketDeliveryFailures.WithLabelValues(failureReason(err)).Inc()
				log.Debug().Err(err).Msg("heartbeat failed")
				return
			}
			metrics.WebSocketHeartbeats.Inc()
			timer.Reset(interval)
		}
	}
}

// open registers c and writes the snapshot while holding the client's write
// lock, so a concurrent broadcast cannot reach the client before it.
func (h *Hub) open(ctx context.Context, c *Client, snapshot SnapshotFunc) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if h.isClosed() {
		return ErrHubClosed
	}
	if !c.markOpen() {
		return &DeliveryError{Reason: ReasonClosed, Err: ErrClientClosed}
	}
	h.registry.Add(c)

	if snapshot == nil {
		return nil
	}
	event, err := snapshot(ctx)
	if err != nil {
		return fmt.Errorf("compute snapshot: %w", err)
	}
	data, err := event.Encode()
	if err != nil {
		return &DeliveryError{Reason: ReasonSerialization, Err: err}
	}
	return c.writeLocked(data)
}

// readLoop reports every inbound frame on inbound (coalesced) and the first
// read error on readErr. It exits once the connection is closed.
func readLoop(conn Conn, inbound chan<- struct{}, readErr chan<- error) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			readErr <- err
			return
		}
		select {
		case inbound <- struct{}{}:
		default:
		}
	}
}
