package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pickup-service/internal/mocks"
	"pickup-service/internal/models"
	"pickup-service/internal/negotiation"
)

type negotiationMocks struct {
	sessions *mocks.SessionRepositoryMock
	messages *mocks.MessageRepositoryMock
	requests *mocks.RequestRepositoryMock
	users    *mocks.UserRepositoryMock
	ratings  *mocks.RatingRepositoryMock
}

func setupNegotiationRouter(t *testing.T, now time.Time) (*gin.Engine, *negotiationMocks) {
	t.Helper()
	m := &negotiationMocks{
		sessions: new(mocks.SessionRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		requests: new(mocks.RequestRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		ratings:  new(mocks.RatingRepositoryMock),
	}
	svc := negotiation.NewService(negotiation.Deps{
		Sessions: m.sessions,
		Messages: m.messages,
		Requests: m.requests,
		Users:    m.users,
		Ratings:  m.ratings,
		Clock:    func() time.Time { return now },
	}, negotiation.Config{AdGate: 5 * time.Second, AcceptPolicy: negotiation.AcceptPolicySingle})
	handler := NewNegotiationHandler(svc)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("userName", "דנה")
		c.Next()
	})
	r.POST("/sessions/:session_id/price", handler.ProposePrice)
	r.POST("/sessions/:session_id/agree", handler.Agree)
	r.POST("/sessions/:session_id/ad/skip", handler.SkipAd)
	r.GET("/sessions/:session_id/contact", handler.ContactCard)
	r.POST("/sessions/:session_id/complete", handler.Complete)
	r.POST("/sessions/:session_id/rating", handler.SubmitRating)
	return r, m
}

func negotiatingSession() models.ChatSession {
	return models.ChatSession{
		ID: 5, RequestID: 10, RequesterID: 1, CollectorID: 2,
		State: models.StateNegotiating, NegotiatedPrice: 25,
	}
}

func TestProposePriceSuccess(t *testing.T) {
	router, m := setupNegotiationRouter(t, time.Now())

	m.sessions.On("GetSession", mock.Anything, 5).Return(negotiatingSession(), nil).Once()
	m.sessions.On("UpdateNegotiatedPrice", mock.Anything, 5, 30.0).Return(nil).Once()
	m.messages.On("AppendMessage", mock.Anything, 5, 1, "דנה", "מציע מחיר: ₪30", models.MessageTypePriceOffer, &models.MessageMetadata{Price: 30}).
		Return(models.Message{ID: 3, SessionID: 5, Type: models.MessageTypePriceOffer}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/price", bytes.NewBufferString(`{"price":"30"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 30.0, resp["negotiated_price"])
	m.sessions.AssertExpectations(t)
	m.messages.AssertExpectations(t)
}

func TestProposePriceAfterAgreementRejected(t *testing.T) {
	router, m := setupNegotiationRouter(t, time.Now())

	agreed := negotiatingSession()
	agreed.State = models.StatePriceAgreed
	m.sessions.On("GetSession", mock.Anything, 5).Return(agreed, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/price", bytes.NewBufferString(`{"price":"40"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	m.sessions.AssertExpectations(t)
	m.messages.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProposePriceMissingBody(t *testing.T) {
	router, _ := setupNegotiationRouter(t, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/price", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgreeSuccess(t *testing.T) {
	now := time.Now()
	router, m := setupNegotiationRouter(t, now)

	m.sessions.On("GetSession", mock.Anything, 5).Return(negotiatingSession(), nil).Once()
	m.sessions.On("MarkAgreed", mock.Anything, 5, 25.0, now).Return(nil).Once()
	m.messages.On("AppendMessage", mock.Anything, 5, 1, "דנה", mock.Anything, models.MessageTypePriceAgreed, &models.MessageMetadata{Price: 25}).
		Return(models.Message{ID: 4, SessionID: 5, Type: models.MessageTypePriceAgreed}, nil).Once()
	m.requests.On("GetRequest", mock.Anything, 10).Return(models.PickupRequest{ID: 10, Title: "חבילה"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/agree", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Session models.ChatSession `json:"session"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatePriceAgreed, resp.Session.State)
	m.sessions.AssertExpectations(t)
	m.messages.AssertExpectations(t)
}

func TestContactCardGatedReportsSecondsLeft(t *testing.T) {
	now := time.Now()
	router, m := setupNegotiationRouter(t, now)

	agreedAt := now.Add(-2 * time.Second)
	gated := negotiatingSession()
	gated.State = models.StatePriceAgreed
	gated.NegotiatedPrice = 30
	gated.AgreedAt = &agreedAt
	m.sessions.On("GetSession", mock.Anything, 5).Return(gated, nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions/5/contact", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3.0, resp["ad_seconds_left"])
}

func TestContactCardAfterGate(t *testing.T) {
	now := time.Now()
	router, m := setupNegotiationRouter(t, now)

	agreedAt := now.Add(-6 * time.Second)
	open := negotiatingSession()
	open.State = models.StatePriceAgreed
	open.NegotiatedPrice = 30
	open.AgreedAt = &agreedAt
	m.sessions.On("GetSession", mock.Anything, 5).Return(open, nil).Once()
	m.sessions.On("MarkContactRevealed", mock.Anything, 5, now).Return(nil).Once()
	m.messages.On("AppendMessage", mock.Anything, 5, models.SystemSenderID, models.SystemSenderName, mock.Anything, models.MessageTypeSystem, mock.Anything).
		Return(models.Message{ID: 6, SessionID: 5, Type: models.MessageTypeSystem}, nil).Once()
	m.requests.On("GetRequest", mock.Anything, 10).Return(models.PickupRequest{
		ID: 10, RequesterName: "דנה", ContactPhone: "050-1234567", PickupCity: "תל אביב",
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/sessions/5/contact", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var card models.ContactCard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&card))
	assert.Equal(t, "050-1234567", card.ContactPhone)
	assert.Equal(t, 30.0, card.AgreedPrice)
	m.sessions.AssertExpectations(t)
}

func TestSkipAdWrongState(t *testing.T) {
	router, m := setupNegotiationRouter(t, time.Now())

	m.sessions.On("GetSession", mock.Anything, 5).Return(negotiatingSession(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/ad/skip", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRatingInvalidScore(t *testing.T) {
	router, m := setupNegotiationRouter(t, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/rating", bytes.NewBufferString(`{"score":0,"comment":"שירות מצוין"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	m.sessions.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestSubmitRatingShortComment(t *testing.T) {
	router, m := setupNegotiationRouter(t, time.Now())

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/rating", bytes.NewBufferString(`{"score":5,"comment":"טוב"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	m.ratings.AssertNotCalled(t, "CreateRating", mock.Anything, mock.Anything)
}

func TestSubmitRatingAlreadyRated(t *testing.T) {
	router, m := setupNegotiationRouter(t, time.Now())

	rated := negotiatingSession()
	rated.State = models.StateRated
	m.sessions.On("GetSession", mock.Anything, 5).Return(rated, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/rating", bytes.NewBufferString(`{"score":5,"comment":"מעולה!!!"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCompleteNotParticipant(t *testing.T) {
	router, m := setupNegotiationRouter(t, time.Now())

	other := negotiatingSession()
	other.RequesterID = 3
	other.CollectorID = 4
	m.sessions.On("GetSession", mock.Anything, 5).Return(other, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/complete", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
