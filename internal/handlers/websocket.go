package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/scan"
)

const (
	wsRequestTimeout = 30 * time.Second
	wsWriteTimeout   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler runs one scan per connection. The client sends
// {"url": "...", "device": "..."} and receives every stream event as a JSON
// message; the server closes the connection after the terminal event.
// GET /ws/analyze
func (h *AnalyzeHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	var req scan.Request
	conn.SetReadDeadline(time.Now().Add(wsRequestTimeout))
	if err := conn.ReadJSON(&req); err != nil {
		h.writeClose(conn, models.StreamEvent{Stage: models.StageError, Message: "Expected a JSON scan request",
			Payload: models.ErrorPayload{Error: "Expected a JSON scan request"}, Timestamp: time.Now().UTC()})
		return
	}
	conn.SetReadDeadline(time.Time{})

	req, err = req.Normalize()
	if err != nil {
		message := requestError(err)
		h.writeClose(conn, models.StreamEvent{Stage: models.StageError, Message: message,
			Payload: models.ErrorPayload{Error: message}, Timestamp: time.Now().UTC()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read loop only detects the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pub := h.start(ctx, req)
	ticker := time.NewTicker(h.heartbeat())
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-pub.Events():
			if !open {
				h.writeClose(conn)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug().Err(err).Str("job_id", pub.JobID()).Msg("WebSocket client gone")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// writeClose sends any final events then a normal close frame
func (h *AnalyzeHandler) writeClose(conn *websocket.Conn, events ...models.StreamEvent) {
	for _, ev := range events {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan finished"),
		time.Now().Add(wsWriteTimeout))
}
