package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pickup-service/internal/mocks"
	"pickup-service/internal/models"
	"pickup-service/internal/negotiation"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("userName", "דנה")
		c.Next()
	})
	r.GET("/sessions", handler.ListSessions)
	r.GET("/sessions/:session_id", handler.GetSession)
	r.GET("/sessions/:session_id/messages", handler.GetMessages)
	r.POST("/sessions/:session_id/messages", handler.PostMessage)
	return r
}

func newChatNegotiator(sessions *mocks.SessionRepositoryMock, messages *mocks.MessageRepositoryMock) *negotiation.Service {
	return negotiation.NewService(negotiation.Deps{
		Sessions: sessions,
		Messages: messages,
	}, negotiation.DefaultConfig())
}

func TestListSessionsSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewChatHandler(sessionRepo, new(mocks.MessageRepositoryMock), nil)
	router := setupChatRouter(handler)

	sessionRepo.On("ListSessions", mock.Anything, 1).Return([]models.SessionSummary{{SessionID: 3, RequestID: 10, State: models.StateNegotiating}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp, "sessions")
	sessionRepo.AssertExpectations(t)
}

func TestListSessionsRepoError(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewChatHandler(sessionRepo, new(mocks.MessageRepositoryMock), nil)
	router := setupChatRouter(handler)

	sessionRepo.On("ListSessions", mock.Anything, 1).Return(([]models.SessionSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	sessionRepo.AssertExpectations(t)
}

func TestGetSessionSnapshot(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewChatHandler(sessionRepo, new(mocks.MessageRepositoryMock), newChatNegotiator(sessionRepo, new(mocks.MessageRepositoryMock)))
	router := setupChatRouter(handler)

	sessionRepo.On("GetSession", mock.Anything, 5).Return(models.ChatSession{
		ID: 5, RequestID: 10, RequesterID: 1, CollectorID: 2,
		State: models.StateNegotiating, NegotiatedPrice: 25,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/sessions/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap negotiation.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, models.StateNegotiating, snap.State)
	assert.Equal(t, 25.0, snap.NegotiatedPrice)
	sessionRepo.AssertExpectations(t)
}

func TestGetMessagesForbiddenForOutsider(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(sessionRepo, messageRepo, nil)
	router := setupChatRouter(handler)

	sessionRepo.On("GetSession", mock.Anything, 5).Return(models.ChatSession{
		ID: 5, RequesterID: 3, CollectorID: 4,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/sessions/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
}

func TestGetMessagesSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(sessionRepo, messageRepo, nil)
	router := setupChatRouter(handler)

	sessionRepo.On("GetSession", mock.Anything, 5).Return(models.ChatSession{
		ID: 5, RequesterID: 1, CollectorID: 2,
	}, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, 5).Return([]models.Message{{ID: 1, SessionID: 5, Content: "שלום"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/sessions/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sessionRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(sessionRepo, messageRepo, newChatNegotiator(sessionRepo, messageRepo))
	router := setupChatRouter(handler)

	sessionRepo.On("GetSession", mock.Anything, 5).Return(models.ChatSession{
		ID: 5, RequesterID: 1, CollectorID: 2, State: models.StateNegotiating,
	}, nil).Once()
	messageRepo.On("AppendMessage", mock.Anything, 5, 1, "דנה", "שלום", models.MessageTypeText, (*models.MessageMetadata)(nil)).
		Return(models.Message{ID: 7, SessionID: 5, SenderID: 1, Content: "שלום", Type: models.MessageTypeText}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/messages", bytes.NewBufferString(`{"content":"שלום"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	sessionRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageEmptyContentRejectedWithoutAppend(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(sessionRepo, messageRepo, newChatNegotiator(sessionRepo, messageRepo))
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/messages", bytes.NewBufferString(`{"content":"   "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageInvalidType(t *testing.T) {
	handler := NewChatHandler(new(mocks.SessionRepositoryMock), new(mocks.MessageRepositoryMock), nil)
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/sessions/5/messages", bytes.NewBufferString(`{"content":"hi","type":"system"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageInvalidID(t *testing.T) {
	handler := NewChatHandler(new(mocks.SessionRepositoryMock), new(mocks.MessageRepositoryMock), nil)
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/sessions/bad/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
