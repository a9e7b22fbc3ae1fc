package ws

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"pickup-service/internal/middleware"
	"pickup-service/internal/observability"
	"pickup-service/internal/repositories"
)

// SessionWebSocketHandler handles session websocket connections.
type SessionWebSocketHandler struct {
	hub       *Hub
	sessions  repositories.SessionRepository
	jwtSecret string
}

// NewSessionWebSocketHandler constructs a SessionWebSocketHandler.
func NewSessionWebSocketHandler(hub *Hub, sessions repositories.SessionRepository, jwtSecret string) *SessionWebSocketHandler {
	return &SessionWebSocketHandler{hub: hub, sessions: sessions, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client in the session
// room. The token may come from the Authorization header or, for browser
// websocket clients, the token query parameter.
func (h *SessionWebSocketHandler) Handle(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	ctx, span := otel.Tracer("pickup-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := middleware.ParseToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userID := int(claims.UserID)

	session, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil || !session.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for session"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddSessionClient(sessionID, conn, info)

	observability.IncWSActive("session")
	observability.IncWSEvent("session", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload: observability.WSEventPayload{
			SessionID: sessionID,
			Event:     "ws_connect",
			ConnID:    info.ConnID,
			UserID:    info.UserID,
			DeviceID:  info.DeviceID,
			IP:        info.IP,
		},
	}, observability.BuildHeaders(requestID, traceID))

	// Keep the connection alive and clean up on close.
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveSessionClient(sessionID, conn)
			observability.DecWSActive("session")
			observability.IncWSEvent("session", "ws_disconnect")
			_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload: observability.WSEventPayload{
					SessionID:  sessionID,
					Event:      "ws_disconnect",
					ConnID:     info.ConnID,
					DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
					Reason:     closeReason,
					UserID:     info.UserID,
					DeviceID:   info.DeviceID,
					IP:         info.IP,
				},
			}, observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("session", "ws_error")
				}
				return
			}
		}
	}()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
