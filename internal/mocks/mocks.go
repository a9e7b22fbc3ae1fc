package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"pickup-service/internal/models"
)

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) CreateOrGetSession(ctx context.Context, requestID, requesterID, collectorID int, initialPrice float64) (models.ChatSession, bool, error) {
	args := m.Called(ctx, requestID, requesterID, collectorID, initialPrice)
	var session models.ChatSession
	if val := args.Get(0); val != nil {
		session = val.(models.ChatSession)
	}
	return session, args.Bool(1), args.Error(2)
}

func (m *SessionRepositoryMock) GetSession(ctx context.Context, sessionID int) (models.ChatSession, error) {
	args := m.Called(ctx, sessionID)
	var session models.ChatSession
	if val := args.Get(0); val != nil {
		session = val.(models.ChatSession)
	}
	return session, args.Error(1)
}

func (m *SessionRepositoryMock) ListSessions(ctx context.Context, userID int) ([]models.SessionSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.SessionSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.SessionSummary)
	}
	return list, args.Error(1)
}

func (m *SessionRepositoryMock) UpdateNegotiatedPrice(ctx context.Context, sessionID int, price float64) error {
	args := m.Called(ctx, sessionID, price)
	return args.Error(0)
}

func (m *SessionRepositoryMock) SetPendingAgree(ctx context.Context, sessionID int, userID int) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *SessionRepositoryMock) MarkAgreed(ctx context.Context, sessionID int, price float64, at time.Time) error {
	args := m.Called(ctx, sessionID, price, at)
	return args.Error(0)
}

func (m *SessionRepositoryMock) MarkAdSkipped(ctx context.Context, sessionID int) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *SessionRepositoryMock) MarkContactRevealed(ctx context.Context, sessionID int, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}

func (m *SessionRepositoryMock) MarkCompleted(ctx context.Context, sessionID int, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}

func (m *SessionRepositoryMock) MarkRated(ctx context.Context, sessionID int, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) AppendMessage(ctx context.Context, sessionID, senderID int, senderName, content string, msgType models.MessageType, metadata *models.MessageMetadata) (models.Message, error) {
	args := m.Called(ctx, sessionID, senderID, senderName, content, msgType, metadata)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, sessionID int) ([]models.Message, error) {
	args := m.Called(ctx, sessionID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

type RequestRepositoryMock struct {
	mock.Mock
}

func (m *RequestRepositoryMock) CreateRequest(ctx context.Context, req models.PickupRequest) (models.PickupRequest, error) {
	args := m.Called(ctx, req)
	var created models.PickupRequest
	if val := args.Get(0); val != nil {
		created = val.(models.PickupRequest)
	}
	return created, args.Error(1)
}

func (m *RequestRepositoryMock) GetRequest(ctx context.Context, requestID int) (models.PickupRequest, error) {
	args := m.Called(ctx, requestID)
	var req models.PickupRequest
	if val := args.Get(0); val != nil {
		req = val.(models.PickupRequest)
	}
	return req, args.Error(1)
}

func (m *RequestRepositoryMock) ListOpenRequests(ctx context.Context, city string) ([]models.PickupRequest, error) {
	args := m.Called(ctx, city)
	var list []models.PickupRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.PickupRequest)
	}
	return list, args.Error(1)
}

func (m *RequestRepositoryMock) MarkAccepted(ctx context.Context, requestID, collectorID int) error {
	args := m.Called(ctx, requestID, collectorID)
	return args.Error(0)
}

func (m *RequestRepositoryMock) UpdateStatus(ctx context.Context, requestID int, status models.RequestStatus) error {
	args := m.Called(ctx, requestID, status)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var created models.User
	if val := args.Get(0); val != nil {
		created = val.(models.User)
	}
	return created, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByPhone(ctx context.Context, phone string) (models.User, error) {
	args := m.Called(ctx, phone)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ApplyRating(ctx context.Context, userID, score int) error {
	args := m.Called(ctx, userID, score)
	return args.Error(0)
}

func (m *UserRepositoryMock) IncrementCompletedDeliveries(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type RatingRepositoryMock struct {
	mock.Mock
}

func (m *RatingRepositoryMock) CreateRating(ctx context.Context, rating models.Rating) (models.Rating, error) {
	args := m.Called(ctx, rating)
	var created models.Rating
	if val := args.Get(0); val != nil {
		created = val.(models.Rating)
	}
	return created, args.Error(1)
}

func (m *RatingRepositoryMock) GetBySession(ctx context.Context, sessionID int) (models.Rating, error) {
	args := m.Called(ctx, sessionID)
	var rating models.Rating
	if val := args.Get(0); val != nil {
		rating = val.(models.Rating)
	}
	return rating, args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var created models.Notification
	if val := args.Get(0); val != nil {
		created = val.(models.Notification)
	}
	return created, args.Error(1)
}

func (m *NotificationRepositoryMock) ListNotifications(ctx context.Context, userID int) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, notificationID, userID int) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastSessionEvent(sessionID int, event models.SessionEvent) {
	m.Called(sessionID, event)
}
