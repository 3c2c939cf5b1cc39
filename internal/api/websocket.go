package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/line-kiosk/backend/internal/broker"
	"github.com/line-kiosk/backend/internal/hub"
)

// WebSocketHandler owns the three realtime endpoints: dashboard telemetry
// subscription, telemetry source ingest, and layout-sync coordination.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	broker   *broker.Broker
	handler  *Handler
}

// NewWebSocketHandler creates the realtime endpoint handler.
func NewWebSocketHandler(h *Handler, telemetryHub *hub.Hub, lockBroker *broker.Broker, maxMessageKB int) *WebSocketHandler {
	if maxMessageKB <= 0 {
		maxMessageKB = 1024
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Kiosk deployments sit on closed plant networks.
				return true
			},
			ReadBufferSize:  maxMessageKB * 1024,
			WriteBufferSize: maxMessageKB * 1024,
		},
		hub:     telemetryHub,
		broker:  lockBroker,
		handler: h,
	}
}

// HandleTelemetrySocket upgrades a dashboard client and subscribes it to the
// telemetry fan-out.
func (wsh *WebSocketHandler) HandleTelemetrySocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	wsh.hub.Subscribe(ws)
	return nil
}

// HandleTelemetryIngestSocket upgrades a telemetry source connection and
// feeds its frames into the ingest path. Malformed frames are dropped
// without closing the connection.
func (wsh *WebSocketHandler) HandleTelemetryIngestSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Println("[Ingest] Telemetry source connected")
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("[Ingest] Source connection error: %v\n", err)
			}
			break
		}
		if _, err := wsh.handler.Ingest(frame); err != nil {
			fmt.Printf("[Ingest] Dropped malformed frame: %v\n", err)
		}
	}
	fmt.Println("[Ingest] Telemetry source disconnected")
	return nil
}

// HandleLayoutSocket upgrades a layout-sync client and hands it to the lock
// broker.
func (wsh *WebSocketHandler) HandleLayoutSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	wsh.broker.Serve(ws)
	return nil
}
