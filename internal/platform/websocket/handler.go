package websocket

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WebSocketHandler handles HTTP-to-WebSocket upgrades for dashboard clients.
type WebSocketHandler struct {
	hub      *Hub
	snapshot SnapshotFunc
	origins  map[string]bool
	upgrader gorillawebsocket.Upgrader
}

// NewWebSocketHandler creates a handler bound to hub. New clients receive the
// event returned by snapshot before anything else. allowedOrigins may contain
// "*" to accept any browser origin.
func NewWebSocketHandler(hub *Hub, snapshot SnapshotFunc, allowedOrigins []string) *WebSocketHandler {
	wsh := &WebSocketHandler{
		hub:      hub,
		snapshot: snapshot,
		origins:  make(map[string]bool, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		wsh.origins[o] = true
	}
	wsh.upgrader = gorillawebsocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     wsh.checkOrigin,
	}
	return wsh
}

// RegisterRoutes registers the dashboard endpoint.
func (wsh *WebSocketHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/chief", wsh.HandleConnect)
}

// HandleConnect upgrades the request and serves the client until it goes away.
func (wsh *WebSocketHandler) HandleConnect(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		wsh.hub.logger.Debug().Err(err).Str("remote_ip", c.RealIP()).Msg("websocket upgrade failed")
		return nil
	}

	client := wsh.hub.NewClient(uuid.New().String(), &gorillaConnAdapter{ws})
	wsh.hub.Serve(c.Request().Context(), client, wsh.snapshot)
	return nil
}

func (wsh *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || wsh.origins["*"] || wsh.origins[origin] {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Host == r.Host
}
