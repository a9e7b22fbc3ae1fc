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
	"pickup-service/internal/telemetry"
)

// RequestHandler manages pickup request endpoints. Accepting a request
// delegates to the negotiation core, which opens (or returns) the chat
// session between requester and collector.
type RequestHandler struct {
	requestRepo repositories.RequestRepository
	negotiator  *negotiation.Service
	audit       *telemetry.AuditEmitter
}

// NewRequestHandler builds a RequestHandler.
func NewRequestHandler(requestRepo repositories.RequestRepository, negotiator *negotiation.Service, audit *telemetry.AuditEmitter) *RequestHandler {
	return &RequestHandler{requestRepo: requestRepo, negotiator: negotiator, audit: audit}
}

// CreateRequest handles POST /requests.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Title            string  `json:"title" binding:"required"`
		Description      string  `json:"description"`
		PickupLocation   string  `json:"pickup_location" binding:"required"`
		PickupCity       string  `json:"pickup_city" binding:"required"`
		DeliveryLocation string  `json:"delivery_location" binding:"required"`
		DeliveryCity     string  `json:"delivery_city" binding:"required"`
		PackageSize      string  `json:"package_size" binding:"required"`
		Urgency          string  `json:"urgency" binding:"required"`
		SuggestedPrice   float64 `json:"suggested_price"`
		ContactPhone     string  `json:"contact_phone" binding:"required"`
		Notes            string  `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidPackageSize(models.PackageSize(req.PackageSize)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid package size"})
		return
	}
	if !models.ValidUrgency(models.Urgency(req.Urgency)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid urgency"})
		return
	}
	if req.SuggestedPrice < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "suggested price must be non-negative"})
		return
	}

	created, err := h.requestRepo.CreateRequest(c.Request.Context(), models.PickupRequest{
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		PickupLocation:   req.PickupLocation,
		PickupCity:       req.PickupCity,
		DeliveryLocation: req.DeliveryLocation,
		DeliveryCity:     req.DeliveryCity,
		PackageSize:      models.PackageSize(req.PackageSize),
		Urgency:          models.Urgency(req.Urgency),
		SuggestedPrice:   req.SuggestedPrice,
		ContactPhone:     req.ContactPhone,
		Notes:            req.Notes,
		RequesterID:      userID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create request"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "pickup request created", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusCreated, created)
}

// ListRequests returns open requests, optionally filtered by pickup city.
func (h *RequestHandler) ListRequests(c *gin.Context) {
	requests, err := h.requestRepo.ListOpenRequests(c.Request.Context(), c.Query("city"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// GetRequest returns a single pickup request.
func (h *RequestHandler) GetRequest(c *gin.Context) {
	requestID, err := strconv.Atoi(c.Param("request_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	request, err := h.requestRepo.GetRequest(c.Request.Context(), requestID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRequestNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "request not found"})
		return
	}

	c.JSON(http.StatusOK, request)
}

// AcceptRequest opens (or returns) the chat session between the collector
// and the request's owner. Idempotent per (request, collector).
func (h *RequestHandler) AcceptRequest(c *gin.Context) {
	requestID, err := strconv.Atoi(c.Param("request_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	actor := negotiation.Actor{ID: c.GetInt("userID"), Name: c.GetString("userName")}
	session, err := h.negotiator.Open(c.Request.Context(), requestID, actor)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrRequestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		case errors.Is(err, negotiation.ErrOwnRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot collect your own request"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open session"})
		}
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "pickup request accepted", requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "session": session})
}
