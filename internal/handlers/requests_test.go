package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pickup-service/internal/mocks"
	"pickup-service/internal/models"
	"pickup-service/internal/negotiation"
	"pickup-service/internal/repositories"
)

func setupRequestRouter(handler *RequestHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 2)
		c.Set("userName", "יוסי")
		c.Next()
	})
	r.POST("/requests", handler.CreateRequest)
	r.GET("/requests", handler.ListRequests)
	r.GET("/requests/:request_id", handler.GetRequest)
	r.POST("/requests/:request_id/accept", handler.AcceptRequest)
	return r
}

func validRequestBody() string {
	return `{
		"title": "חבילה קטנה",
		"pickup_location": "הרצל 1",
		"pickup_city": "תל אביב",
		"delivery_location": "הנמל 5",
		"delivery_city": "חיפה",
		"package_size": "small",
		"urgency": "normal",
		"suggested_price": 25,
		"contact_phone": "050-1234567"
	}`
}

func TestCreateRequestSuccess(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	handler := NewRequestHandler(requestRepo, nil, nil)
	router := setupRequestRouter(handler)

	requestRepo.On("CreateRequest", mock.Anything, mock.MatchedBy(func(req models.PickupRequest) bool {
		return req.Title == "חבילה קטנה" && req.RequesterID == 2 && req.SuggestedPrice == 25
	})).Return(models.PickupRequest{ID: 10, Title: "חבילה קטנה", Status: models.RequestStatusOpen}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewBufferString(validRequestBody()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	requestRepo.AssertExpectations(t)
}

func TestCreateRequestInvalidPackageSize(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	handler := NewRequestHandler(requestRepo, nil, nil)
	router := setupRequestRouter(handler)

	body := `{
		"title": "חבילה",
		"pickup_location": "א",
		"pickup_city": "תל אביב",
		"delivery_location": "ב",
		"delivery_city": "חיפה",
		"package_size": "huge",
		"urgency": "normal",
		"contact_phone": "050-1234567"
	}`
	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	requestRepo.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything)
}

func TestCreateRequestNegativePrice(t *testing.T) {
	handler := NewRequestHandler(new(mocks.RequestRepositoryMock), nil, nil)
	router := setupRequestRouter(handler)

	body := `{
		"title": "חבילה",
		"pickup_location": "א",
		"pickup_city": "תל אביב",
		"delivery_location": "ב",
		"delivery_city": "חיפה",
		"package_size": "small",
		"urgency": "normal",
		"suggested_price": -5,
		"contact_phone": "050-1234567"
	}`
	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRequestsFiltersByCity(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	handler := NewRequestHandler(requestRepo, nil, nil)
	router := setupRequestRouter(handler)

	requestRepo.On("ListOpenRequests", mock.Anything, "תל אביב").Return([]models.PickupRequest{{ID: 10}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/requests?city="+url.QueryEscape("תל אביב"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	requestRepo.AssertExpectations(t)
}

func TestGetRequestNotFound(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	handler := NewRequestHandler(requestRepo, nil, nil)
	router := setupRequestRouter(handler)

	requestRepo.On("GetRequest", mock.Anything, 404).Return(models.PickupRequest{}, repositories.ErrRequestNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/requests/404", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcceptRequestOpensSession(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	negotiator := negotiation.NewService(negotiation.Deps{
		Sessions: sessionRepo,
		Messages: messageRepo,
		Requests: requestRepo,
	}, negotiation.DefaultConfig())
	handler := NewRequestHandler(requestRepo, negotiator, nil)
	router := setupRequestRouter(handler)

	requestRepo.On("GetRequest", mock.Anything, 10).Return(models.PickupRequest{
		ID: 10, Title: "חבילה", RequesterID: 1, SuggestedPrice: 25, Status: models.RequestStatusOpen,
	}, nil).Once()
	sessionRepo.On("CreateOrGetSession", mock.Anything, 10, 1, 2, 25.0).Return(models.ChatSession{
		ID: 5, RequestID: 10, RequesterID: 1, CollectorID: 2, State: models.StateNegotiating, NegotiatedPrice: 25,
	}, true, nil).Once()
	messageRepo.On("AppendMessage", mock.Anything, 5, models.SystemSenderID, models.SystemSenderName, mock.Anything, models.MessageTypeSystem, mock.Anything).
		Return(models.Message{ID: 1, SessionID: 5, Type: models.MessageTypeSystem}, nil).Once()
	requestRepo.On("MarkAccepted", mock.Anything, 10, 2).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/requests/10/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 5.0, resp["session_id"])
	requestRepo.AssertExpectations(t)
	sessionRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestAcceptOwnRequestRejected(t *testing.T) {
	requestRepo := new(mocks.RequestRepositoryMock)
	negotiator := negotiation.NewService(negotiation.Deps{Requests: requestRepo}, negotiation.DefaultConfig())
	handler := NewRequestHandler(requestRepo, negotiator, nil)
	router := setupRequestRouter(handler)

	requestRepo.On("GetRequest", mock.Anything, 10).Return(models.PickupRequest{
		ID: 10, RequesterID: 2,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/requests/10/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
