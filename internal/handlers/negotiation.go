package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pickup-service/internal/negotiation"
	"pickup-service/internal/repositories"
)

// NegotiationHandler exposes the price negotiation lifecycle over HTTP:
// offers, agreement, the ad gate, contact reveal, completion and rating.
type NegotiationHandler struct {
	negotiator *negotiation.Service
}

// NewNegotiationHandler builds a NegotiationHandler.
func NewNegotiationHandler(negotiator *negotiation.Service) *NegotiationHandler {
	return &NegotiationHandler{negotiator: negotiator}
}

func sessionActor(c *gin.Context) (int, negotiation.Actor, bool) {
	sessionID, err := strconv.Atoi(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, negotiation.Actor{}, false
	}
	return sessionID, negotiation.Actor{ID: c.GetInt("userID"), Name: c.GetString("userName")}, true
}

// ProposePrice records a price offer. The raw price is accepted as a string
// so the handler mirrors client input; non-numeric input coerces to zero.
func (h *NegotiationHandler) ProposePrice(c *gin.Context) {
	sessionID, actor, ok := sessionActor(c)
	if !ok {
		return
	}

	var req struct {
		Price string `json:"price" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price is required"})
		return
	}

	msg, price, err := h.negotiator.ProposePrice(c.Request.Context(), sessionID, actor, req.Price)
	if err != nil {
		writeNegotiationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg, "negotiated_price": price})
}

// Agree accepts the current offer. Under the mutual policy the first agree
// is pending until the counterpart confirms.
func (h *NegotiationHandler) Agree(c *gin.Context) {
	sessionID, actor, ok := sessionActor(c)
	if !ok {
		return
	}

	session, err := h.negotiator.Agree(c.Request.Context(), sessionID, actor)
	if err != nil {
		if errors.Is(err, negotiation.ErrAlreadyAgreed) {
			c.JSON(http.StatusAccepted, gin.H{"status": "pending", "session": session})
			return
		}
		writeNegotiationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// SkipAd ends the ad gate early and reveals contact details immediately.
func (h *NegotiationHandler) SkipAd(c *gin.Context) {
	sessionID, actor, ok := sessionActor(c)
	if !ok {
		return
	}

	session, err := h.negotiator.SkipAd(c.Request.Context(), sessionID, actor)
	if err != nil {
		writeNegotiationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// ContactCard returns the counterpart's contact details once the ad gate has
// elapsed (or been skipped). While the gate is open it reports the seconds
// remaining instead.
func (h *NegotiationHandler) ContactCard(c *gin.Context) {
	sessionID, actor, ok := sessionActor(c)
	if !ok {
		return
	}

	card, err := h.negotiator.ContactCard(c.Request.Context(), sessionID, actor)
	if err != nil {
		if errors.Is(err, negotiation.ErrGateClosed) {
			body := gin.H{"error": "contact details are still gated"}
			if snap, snapErr := h.negotiator.Snapshot(c.Request.Context(), sessionID, actor.ID); snapErr == nil {
				body["ad_seconds_left"] = snap.AdSecondsLeft
			}
			c.JSON(http.StatusForbidden, body)
			return
		}
		writeNegotiationError(c, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

// Complete marks the delivery as done and schedules the rating prompt.
func (h *NegotiationHandler) Complete(c *gin.Context) {
	sessionID, actor, ok := sessionActor(c)
	if !ok {
		return
	}

	session, err := h.negotiator.Complete(c.Request.Context(), sessionID, actor)
	if err != nil {
		writeNegotiationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// SubmitRating records the requester-side rating for a completed delivery.
func (h *NegotiationHandler) SubmitRating(c *gin.Context) {
	sessionID, actor, ok := sessionActor(c)
	if !ok {
		return
	}

	var req struct {
		Score   int    `json:"score"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rating, err := h.negotiator.SubmitRating(c.Request.Context(), sessionID, actor, req.Score, req.Comment)
	if err != nil {
		writeNegotiationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rating)
}

// ReplayState recomputes the negotiation state from the message log and
// reports it next to the stored state. Debug aid for log/row divergence.
func (h *NegotiationHandler) ReplayState(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	state, price, err := h.negotiator.ReplayState(c.Request.Context(), sessionID)
	if err != nil {
		writeNegotiationError(c, err)
		return
	}

	snap, err := h.negotiator.Snapshot(c.Request.Context(), sessionID, c.GetInt("userID"))
	if err != nil {
		writeNegotiationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"replayed_state":   state,
		"replayed_price":   price,
		"stored_state":     snap.State,
		"stored_price":     snap.NegotiatedPrice,
		"consistent":       state == snap.State && price == snap.NegotiatedPrice,
		"ad_seconds_left":  snap.AdSecondsLeft,
		"pending_agree_by": snap.PendingAgreeBy,
	})
}

// writeNegotiationError maps negotiation sentinel errors onto HTTP statuses.
func writeNegotiationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrSessionNotFound), errors.Is(err, repositories.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, negotiation.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, negotiation.ErrGateClosed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, negotiation.ErrInvalidTransition), errors.Is(err, negotiation.ErrOwnRequest), errors.Is(err, negotiation.ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrAlreadyRated):
		c.JSON(http.StatusConflict, gin.H{"error": "session already rated"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
