package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pickup-service/internal/models"
	"pickup-service/internal/negotiation"
	"pickup-service/internal/repositories"
)

// ChatHandler manages chat session endpoints: listing sessions and reading
// or appending messages.
type ChatHandler struct {
	sessionRepo repositories.SessionRepository
	messageRepo repositories.MessageRepository
	negotiator  *negotiation.Service
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(sessionRepo repositories.SessionRepository, messageRepo repositories.MessageRepository, negotiator *negotiation.Service) *ChatHandler {
	return &ChatHandler{sessionRepo: sessionRepo, messageRepo: messageRepo, negotiator: negotiator}
}

// ListSessions returns the sessions the authenticated user participates in.
func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID := c.GetInt("userID")

	sessions, err := h.sessionRepo.ListSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession returns the negotiation snapshot for a session: effective
// state, negotiated price and remaining ad-gate seconds.
func (h *ChatHandler) GetSession(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	snapshot, err := h.negotiator.Snapshot(c.Request.Context(), sessionID, c.GetInt("userID"))
	if err != nil {
		writeNegotiationError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetMessages returns the full ordered message log of a session.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	userID := c.GetInt("userID")
	session, err := h.sessionRepo.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "session not found"})
		return
	}
	if !session.IsParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a session participant"})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage appends a participant message and broadcasts it. Content that
// is empty after trimming is rejected without touching the log.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req struct {
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is empty"})
		return
	}

	msgType := models.MessageType(req.Type)
	if req.Type == "" {
		msgType = models.MessageTypeText
	}
	switch msgType {
	case models.MessageTypeText, models.MessageTypeImage, models.MessageTypeLocation:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message type"})
		return
	}

	actor := negotiation.Actor{ID: c.GetInt("userID"), Name: c.GetString("userName")}
	msg, err := h.negotiator.AppendChatMessage(c.Request.Context(), sessionID, actor, content, msgType)
	if err != nil {
		writeNegotiationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}
