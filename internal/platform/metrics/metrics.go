// Package metrics declares the Prometheus collectors shared by the reception
// and chief servers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dashboard channel metrics
var (
	// WebSocketConnections tracks currently registered dashboard clients
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_current",
			Help: "Number of registered dashboard WebSocket clients",
		},
	)

	// WebSocketBroadcasts counts broadcast cycles by event type
	WebSocketBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_broadcasts_total",
			Help: "Total broadcast cycles by event type",
		},
		[]string{"type"},
	)

	// WebSocketDeliveryFailures counts per-client delivery failures by reason
	WebSocketDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_delivery_failures_total",
			Help: "Total failed deliveries to a single client by reason",
		},
		[]string{"reason"},
	)

	// WebSocketHeartbeats counts heartbeat frames sent to idle clients
	WebSocketHeartbeats = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_heartbeats_total",
			Help: "Total heartbeat frames sent",
		},
	)

	// WebSocketDroppedEvents counts events dropped because the dispatch queue was full
	WebSocketDroppedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_dropped_events_total",
			Help: "Total events dropped because the dispatch queue was full",
		},
	)

	// WebSocketSendDuration tracks the time spent delivering one broadcast
	WebSocketSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_broadcast_duration_seconds",
			Help:    "Time to deliver one broadcast to all clients",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
	)
)

// HTTP metrics
var (
	// HTTPRequests counts handled requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Reception to chief notification metrics
var (
	// ChiefNotifications counts notifications by protocol and result
	ChiefNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chief_notifications_total",
			Help: "Total notifications sent to the chief server by protocol and result",
		},
		[]string{"protocol", "result"},
	)
)
