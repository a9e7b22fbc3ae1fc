package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pickup-service/internal/models"
	"pickup-service/internal/observability"
)

// Hub maintains active websocket rooms, one per chat session. Both
// participants of a session share the room; every appended message and
// every negotiation transition is fanned out to it in append order.
type Hub struct {
	rooms    map[int]map[*websocket.Conn]bool
	connInfo map[int]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[int]map[*websocket.Conn]bool),
		connInfo: make(map[int]map[*websocket.Conn]ConnInfo),
	}
}

// AddSessionClient registers a websocket connection to a session room.
func (h *Hub) AddSessionClient(sessionID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[sessionID]; !ok {
		h.rooms[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[sessionID][conn] = true
	if _, ok := h.connInfo[sessionID]; !ok {
		h.connInfo[sessionID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[sessionID][conn] = info
}

// RemoveSessionClient removes a session websocket connection.
func (h *Hub) RemoveSessionClient(sessionID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[sessionID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	if infos, ok := h.connInfo[sessionID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, sessionID)
		}
	}
}

// BroadcastSessionEvent sends an event to all clients in a session room.
func (h *Hub) BroadcastSessionEvent(sessionID int, event models.SessionEvent) {
	h.mu.RLock()
	conns := h.rooms[sessionID]
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logrus.WithError(err).Warn("websocket write error")
			conn.Close()
			h.RemoveSessionClient(sessionID, conn)
			h.publishWSError(sessionID, conn, err)
		}
	}
}

func (h *Hub) publishWSError(sessionID int, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(sessionID, conn)
	if !ok {
		return
	}

	payload := observability.WSEventPayload{
		SessionID:  sessionID,
		Event:      "ws_error",
		ConnID:     info.ConnID,
		DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
		Reason:     err.Error(),
		UserID:     info.UserID,
		DeviceID:   info.DeviceID,
		IP:         info.IP,
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("session", "ws_error")
}

func (h *Hub) getConnInfo(sessionID int, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[sessionID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}
