package negotiation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"pickup-service/internal/models"
	"pickup-service/internal/observability"
	"pickup-service/internal/repositories"
)

// Broadcaster pushes session events to connected websocket clients.
type Broadcaster interface {
	BroadcastSessionEvent(sessionID int, event models.SessionEvent)
}

// EventPublisher mirrors negotiation events to the message broker for the
// notification pipeline. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// SnapshotCache caches session rows for the read path. Implementations must
// tolerate misses; a nil cache disables caching.
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Actor identifies the participant performing an operation. The core treats
// identity as opaque beyond the participant check.
type Actor struct {
	ID   int
	Name string
}

// Event is the structured payload published per transition.
type Event struct {
	Name       string    `json:"name"`
	SessionID  int       `json:"session_id"`
	RequestID  int       `json:"request_id"`
	ActorID    int       `json:"actor_id"`
	Price      *float64  `json:"price,omitempty"`
	Score      *int      `json:"score,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Config tunes the negotiation flow.
type Config struct {
	// AdGate is how long contact details stay hidden after agreement.
	AdGate time.Duration
	// RatingPromptDelay paces the rating prompt after completion. UX
	// pacing only, it does not gate submission.
	RatingPromptDelay time.Duration
	// AcceptPolicy selects single-sided or mutual price acceptance.
	AcceptPolicy AcceptPolicy
}

// DefaultConfig matches the production client: 5 second ad gate, 1 second
// rating prompt delay, single-sided accept.
func DefaultConfig() Config {
	return Config{
		AdGate:            5 * time.Second,
		RatingPromptDelay: time.Second,
		AcceptPolicy:      AcceptPolicySingle,
	}
}

// Deps bundles the collaborators a Service needs. Hub, Events and Cache may
// be nil; Clock defaults to time.Now.
type Deps struct {
	Sessions      repositories.SessionRepository
	Messages      repositories.MessageRepository
	Requests      repositories.RequestRepository
	Users         repositories.UserRepository
	Ratings       repositories.RatingRepository
	Notifications repositories.NotificationRepository
	Hub           Broadcaster
	Events        EventPublisher
	Cache         SnapshotCache
	Clock         func() time.Time
}

// Service implements the negotiation flow over a chat session: price
// proposal and agreement, the ad-gated contact reveal, delivery completion
// and rating capture. Every transition appends a chat message so the log
// remains a full audit trail of the negotiation.
type Service struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(deps Deps, cfg Config) *Service {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	if cfg.AcceptPolicy == "" {
		cfg.AcceptPolicy = AcceptPolicySingle
	}
	return &Service{deps: deps, cfg: cfg, now: now}
}

// Snapshot is the current negotiation view of a session. State is the
// effective state: a session whose ad gate has elapsed reads as
// contact_revealed even before the reveal is materialized.
type Snapshot struct {
	SessionID       int                 `json:"session_id"`
	RequestID       int                 `json:"request_id"`
	State           models.SessionState `json:"state"`
	NegotiatedPrice float64             `json:"negotiated_price"`
	PriceAgreed     bool                `json:"price_agreed"`
	AdSecondsLeft   int                 `json:"ad_seconds_left"`
	PendingAgreeBy  *int                `json:"pending_agree_by,omitempty"`
}

// Open creates or returns the chat session between the request's requester
// and the collector. Idempotent per (request, collector). The first open
// seeds the negotiated price from the suggested price, appends the system
// greeting, marks the request accepted and notifies the requester.
func (s *Service) Open(ctx context.Context, requestID int, collector Actor) (models.ChatSession, error) {
	req, err := s.deps.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return models.ChatSession{}, err
	}
	if req.RequesterID == collector.ID {
		return models.ChatSession{}, ErrOwnRequest
	}

	session, created, err := s.deps.Sessions.CreateOrGetSession(ctx, requestID, req.RequesterID, collector.ID, req.SuggestedPrice)
	if err != nil {
		return models.ChatSession{}, err
	}
	if !created {
		return session, nil
	}

	_, err = s.deps.Messages.AppendMessage(ctx, session.ID, models.SystemSenderID, models.SystemSenderName,
		openingNotice(req.Title), models.MessageTypeSystem,
		&models.MessageMetadata{Event: models.MetaEventSessionOpened, Price: req.SuggestedPrice})
	if err != nil {
		return models.ChatSession{}, err
	}

	if err := s.deps.Requests.MarkAccepted(ctx, requestID, collector.ID); err != nil {
		return models.ChatSession{}, err
	}

	s.notify(ctx, req.RequesterID, "מאסף התעניין בבקשה שלך",
		fmt.Sprintf("נפתח צ'אט לגבי: %s", req.Title), models.NotificationTypePickupAccepted, session.ID)
	s.publish(ctx, "negotiation.session_opened", Event{
		Name: "session_opened", SessionID: session.ID, RequestID: requestID,
		ActorID: collector.ID, OccurredAt: s.now(),
	})
	observability.IncNegotiationTransition(string(models.StateNegotiating))
	return session, nil
}

// AppendChatMessage appends a plain participant message. Content must be
// non-empty after trimming; the participant check is the caller's via the
// returned error.
func (s *Service) AppendChatMessage(ctx context.Context, sessionID int, actor Actor, content string, msgType models.MessageType) (models.Message, error) {
	session, err := s.deps.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return models.Message{}, err
	}
	if !session.IsParticipant(actor.ID) {
		return models.Message{}, ErrNotParticipant
	}

	msg, err := s.deps.Messages.AppendMessage(ctx, sessionID, actor.ID, actor.Name, content, msgType, nil)
	if err != nil {
		return models.Message{}, err
	}
	s.broadcastMessage(sessionID, msg)
	return msg, nil
}

// ProposePrice records a new price proposal. Allowed while negotiating only.
// Raw input is coerced, not validated: non-numeric proposals become 0. Last
// write wins across participants, there is no merge.
func (s *Service) ProposePrice(ctx context.Context, sessionID int, actor Actor, raw string) (models.Message, float64, error) {
	session, err := s.deps.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return models.Message{}, 0, err
	}
	if !session.IsParticipant(actor.ID) {
		return models.Message{}, 0, ErrNotParticipant
	}
	if session.State != models.StateNegotiating {
		return models.Message{}, 0, ErrInvalidTransition
	}

	price := CoercePrice(raw)
	if err := s.deps.Sessions.UpdateNegotiatedPrice(ctx, sessionID, price); err != nil {
		return models.Message{}, 0, err
	}
	msg, err := s.deps.Messages.AppendMessage(ctx, sessionID, actor.ID, actor.Name,
		offerNotice(price), models.MessageTypePriceOffer, &models.MessageMetadata{Price: price})
	if err != nil {
		return models.Message{}, 0, err
	}

	s.invalidate(ctx, sessionID)
	s.broadcastMessage(sessionID, msg)
	s.publish(ctx, "negotiation.price_offer", Event{
		Name: "price_offer", SessionID: sessionID, RequestID: session.RequestID,
		ActorID: actor.ID, Price: &price, OccurredAt: s.now(),
	})
	return msg, price, nil
}

// Agree accepts the current negotiated price. Under the single policy one
// participant's agree freezes the price and starts the ad gate. Under the
// mutual policy the first agree is recorded as pending and the transition
// fires when the other participant agrees; a new proposal clears the
// pending acceptance.
func (s *Service) Agree(ctx context.Context, sessionID int, actor Actor) (models.ChatSession, error) {
	session, err := s.deps.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, err
	}
	if !session.IsParticipant(actor.ID) {
		return models.ChatSession{}, ErrNotParticipant
	}
	if session.State != models.StateNegotiating {
		return models.ChatSession{}, ErrInvalidTransition
	}

	price := session.NegotiatedPrice
	if s.cfg.AcceptPolicy == AcceptPolicyMutual {
		if session.PendingAgreeBy == nil {
			if err := s.deps.Sessions.SetPendingAgree(ctx, sessionID, actor.ID); err != nil {
				return models.ChatSession{}, err
			}
			msg, err := s.deps.Messages.AppendMessage(ctx, sessionID, actor.ID, actor.Name,
				pendingAgreeNotice(price), models.MessageTypePriceAgreed,
				&models.MessageMetadata{Price: price, Pending: true})
			if err != nil {
				return models.ChatSession{}, err
			}
			s.invalidate(ctx, sessionID)
			s.broadcastMessage(sessionID, msg)
			session.PendingAgreeBy = &actor.ID
			return session, nil
		}
		if *session.PendingAgreeBy == actor.ID {
			return models.ChatSession{}, ErrAlreadyAgreed
		}
	}

	agreedAt := s.now()
	if err := s.deps.Sessions.MarkAgreed(ctx, sessionID, price, agreedAt); err != nil {
		return models.ChatSession{}, err
	}
	msg, err := s.deps.Messages.AppendMessage(ctx, sessionID, actor.ID, actor.Name,
		agreeNotice(price), models.MessageTypePriceAgreed, &models.MessageMetadata{Price: price})
	if err != nil {
		return models.ChatSession{}, err
	}

	session.State = models.StatePriceAgreed
	session.NegotiatedPrice = price
	session.AgreedAt = &agreedAt
	session.PendingAgreeBy = nil

	s.invalidate(ctx, sessionID)
	s.broadcastMessage(sessionID, msg)
	s.broadcastState(session)
	observability.IncNegotiationTransition(string(models.StatePriceAgreed))

	if req, err := s.deps.Requests.GetRequest(ctx, session.RequestID); err == nil {
		s.notify(ctx, session.Counterpart(actor.ID), "המחיר סוכם",
			fmt.Sprintf("המחיר סוכם על ₪%s עבור: %s", FormatPrice(price), req.Title),
			models.NotificationTypePriceAgreed, sessionID)
	}
	s.publish(ctx, "negotiation.price_agreed", Event{
		Name: "price_agreed", SessionID: sessionID, RequestID: session.RequestID,
		ActorID: actor.ID, Price: &price, OccurredAt: agreedAt,
	})
	return session, nil
}

// SkipAd short-circuits the ad gate and reveals contact details at once.
func (s *Service) SkipAd(ctx context.Context, sessionID int, actor Actor) (models.ChatSession, error) {
	session, err := s.deps.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, err
	}
	if !session.IsParticipant(actor.ID) {
		return models.ChatSession{}, ErrNotParticipant
	}
	if session.State != models.StatePriceAgreed {
		return models.ChatSession{}, ErrInvalidTransition
	}

	if err := s.deps.Sessions.MarkAdSkipped(ctx, sessionID); err != nil {
		return models.ChatSession{}, err
	}
	session.AdSkipped = true
	return s.reveal(ctx, session)
}

// ContactCard returns the requester's contact sheet once the ad gate has
// opened (deadline passed or skipped). The first successful read
// materializes the contact_revealed transition.
func (s *Service) ContactCard(ctx context.Context, sessionID int, actor Actor) (models.ContactCard, error) {
	session, err := s.deps.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return models.ContactCard{}, err
	}
	if !session.IsParticipant(actor.ID) {
		return models.ContactCard{}, ErrNotParticipant
	}

	switch session.State {
	case models.StateNegotiating:
		return models.ContactCard{}, ErrInvalidTransition
	case models.StatePriceAgreed:
		if !s.gateOpen(session) {
			return models.ContactCard{}, ErrGateClosed
		}
		if session, err = s.reveal(ctx, session); err != nil {
			return models.ContactCard{}, err
		}
	}

	req, err := s.deps.Requests.GetRequest(ctx, session.RequestID)
	if err != nil {
		return models.ContactCard{}, err
	}
	return models.ContactCard{
		RequesterName:    req.RequesterName,
		ContactPhone:     req.ContactPhone,
		PickupLocation:   req.PickupLocation,
		PickupCity:       req.PickupCity,
		DeliveryLocation: req.DeliveryLocation,
		DeliveryCity:     req.DeliveryCity,
		Description:      req.Description,
		AgreedPrice:      session.NegotiatedPrice,
	}, nil
}

// Complete marks the delivery done. Available once contact details are
// revealed (or the gate has elapsed). Appends the completion notice, closes
// the request, bumps the collector's delivery count and, after the
// configured delay, prompts for a rating.
func (s *Service) Complete(ctx context.Context, sessionID int, actor Actor) (models.ChatSession, error) {
	session, err := s.deps.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, err
	}
	if !session.IsParticipant(actor.ID) {
		return models.ChatSession{}, ErrNotParticipant
	}

	switch session.State {
	case models.StatePriceAgreed:
		if !s.gateOpen(session) {
			return models.ChatSession{}, ErrInvalidTransition
		}
		if session, err = s.reveal(ctx, session); err != nil {
			return models.ChatSession{}, err
		}
	case models.StateContactRevealed:
	default:
		return models.ChatSession{}, ErrInvalidTransition
	}

	completedAt := s.now()
	if err := s.deps.Sessions.MarkCompleted(ctx, sessionID, completedAt); err != nil {
		return models.ChatSession{}, err
	}
	msg, err := s.deps.Messages.AppendMessage(ctx, sessionID, actor.ID, actor.Name,
		completionNotice(), models.MessageTypeCompletion, nil)
	if err != nil {
		return models.ChatSession{}, err
	}

	session.State = models.StateDeliveryCompleted
	session.CompletedAt = &completedAt

	if err := s.deps.Requests.UpdateStatus(ctx, session.RequestID, models.RequestStatusCompleted); err != nil {
		logrus.WithError(err).WithField("request_id", session.RequestID).Error("failed to close request")
	}
	if err := s.deps.Users.IncrementCompletedDeliveries(ctx, session.CollectorID); err != nil {
		logrus.WithError(err).WithField("user_id", session.CollectorID).Error("failed to bump delivery count")
	}

	s.invalidate(ctx, sessionID)
	s.broadcastMessage(sessionID, msg)
	s.broadcastState(session)
	observability.IncNegotiationTransition(string(models.StateDeliveryCompleted))

	s.notify(ctx, session.Counterpart(actor.ID), "המשלוח הושלם",
		completionNotice(), models.NotificationTypePickupCompleted, sessionID)
	s.publish(ctx, "negotiation.delivery_completed", Event{
		Name: "delivery_completed", SessionID: sessionID, RequestID: session.RequestID,
		ActorID: actor.ID, OccurredAt: completedAt,
	})

	prompt := func() {
		if s.deps.Hub != nil {
			s.deps.Hub.BroadcastSessionEvent(sessionID, models.SessionEvent{Type: models.EventRatingPrompt})
		}
	}
	if s.cfg.RatingPromptDelay > 0 {
		time.AfterFunc(s.cfg.RatingPromptDelay, prompt)
	} else {
		prompt()
	}
	return session, nil
}

// SubmitRating validates and records the post-delivery rating: score 1-5
// (0 means not selected and is rejected), comment at least 5 characters
// after trimming. Rejection has no side effects. Success appends the rating
// summary to the chat, folds the score into the rated user's aggregate and
// moves the session to its terminal state.
func (s *Service) SubmitRating(ctx context.Context, sessionID int, actor Actor, score int, comment string) (models.Rating, error) {
	trimmed := strings.TrimSpace(comment)
	if score < 1 || score > 5 || utf8.RuneCountInString(trimmed) < 5 {
		return models.Rating{}, ErrInvalidRating
	}

	session, err := s.deps.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return models.Rating{}, err
	}
	if !session.IsParticipant(actor.ID) {
		return models.Rating{}, ErrNotParticipant
	}
	if session.State != models.StateDeliveryCompleted {
		if session.State == models.StateRated {
			return models.Rating{}, repositories.ErrAlreadyRated
		}
		return models.Rating{}, ErrInvalidTransition
	}

	ratedID := session.Counterpart(actor.ID)
	rating, err := s.deps.Ratings.CreateRating(ctx, models.Rating{
		SessionID: sessionID,
		RequestID: session.RequestID,
		RaterID:   actor.ID,
		RatedID:   ratedID,
		Score:     score,
		Comment:   trimmed,
	})
	if err != nil {
		return models.Rating{}, err
	}

	if err := s.deps.Users.ApplyRating(ctx, ratedID, score); err != nil {
		logrus.WithError(err).WithField("user_id", ratedID).Error("failed to apply rating aggregate")
	}

	ratedAt := s.now()
	if err := s.deps.Sessions.MarkRated(ctx, sessionID, ratedAt); err != nil {
		return models.Rating{}, err
	}
	msg, err := s.deps.Messages.AppendMessage(ctx, sessionID, actor.ID, actor.Name,
		ratingNotice(score, trimmed), models.MessageTypeRating, &models.MessageMetadata{Score: score})
	if err != nil {
		return models.Rating{}, err
	}

	session.State = models.StateRated
	session.RatedAt = &ratedAt

	s.invalidate(ctx, sessionID)
	s.broadcastMessage(sessionID, msg)
	s.broadcastState(session)
	observability.IncNegotiationTransition(string(models.StateRated))

	s.notify(ctx, ratedID, "קיבלת דירוג חדש",
		ratingNotice(score, trimmed), models.NotificationTypeRating, sessionID)
	s.publish(ctx, "negotiation.rated", Event{
		Name: "rated", SessionID: sessionID, RequestID: session.RequestID,
		ActorID: actor.ID, Score: &score, OccurredAt: ratedAt,
	})
	return rating, nil
}

// Snapshot returns the current negotiation view for a participant.
func (s *Service) Snapshot(ctx context.Context, sessionID int, userID int) (Snapshot, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if !session.IsParticipant(userID) {
		return Snapshot{}, ErrNotParticipant
	}

	state := session.State
	secondsLeft := 0
	if state == models.StatePriceAgreed {
		if s.gateOpen(session) {
			state = models.StateContactRevealed
		} else {
			secondsLeft = s.adSecondsLeft(session)
		}
	}
	return Snapshot{
		SessionID:       session.ID,
		RequestID:       session.RequestID,
		State:           state,
		NegotiatedPrice: session.NegotiatedPrice,
		PriceAgreed:     session.AgreedAt != nil,
		AdSecondsLeft:   secondsLeft,
		PendingAgreeBy:  session.PendingAgreeBy,
	}, nil
}

// ReplayState derives the session state and price from the message log.
// Used to verify the stored row against the audit trail.
func (s *Service) ReplayState(ctx context.Context, sessionID int) (models.SessionState, float64, error) {
	msgs, err := s.deps.Messages.ListMessages(ctx, sessionID)
	if err != nil {
		return "", 0, err
	}
	state, price := Replay(msgs)
	return state, price, nil
}

// reveal materializes the contact_revealed transition once the gate is open.
func (s *Service) reveal(ctx context.Context, session models.ChatSession) (models.ChatSession, error) {
	if session.State != models.StatePriceAgreed {
		return session, nil
	}
	revealedAt := s.now()
	if err := s.deps.Sessions.MarkContactRevealed(ctx, session.ID, revealedAt); err != nil {
		return models.ChatSession{}, err
	}
	msg, err := s.deps.Messages.AppendMessage(ctx, session.ID, models.SystemSenderID, models.SystemSenderName,
		revealNotice(session.NegotiatedPrice), models.MessageTypeSystem,
		&models.MessageMetadata{Event: models.MetaEventContactRevealed, Price: session.NegotiatedPrice})
	if err != nil {
		return models.ChatSession{}, err
	}

	session.State = models.StateContactRevealed
	session.ContactRevealedAt = &revealedAt

	s.invalidate(ctx, session.ID)
	s.broadcastMessage(session.ID, msg)
	s.broadcastState(session)
	observability.IncNegotiationTransition(string(models.StateContactRevealed))
	return session, nil
}

func (s *Service) gateOpen(session models.ChatSession) bool {
	if session.AdSkipped {
		return true
	}
	if session.AgreedAt == nil {
		return false
	}
	return !s.now().Before(session.AgreedAt.Add(s.cfg.AdGate))
}

func (s *Service) adSecondsLeft(session models.ChatSession) int {
	if session.AgreedAt == nil {
		return 0
	}
	remaining := session.AgreedAt.Add(s.cfg.AdGate).Sub(s.now())
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

const sessionCacheTTL = 30 * time.Second

func sessionCacheKey(sessionID int) string {
	return fmt.Sprintf("negotiation:session:%d", sessionID)
}

func (s *Service) loadSession(ctx context.Context, sessionID int) (models.ChatSession, error) {
	if s.deps.Cache != nil {
		var cached models.ChatSession
		if err := s.deps.Cache.Get(ctx, sessionCacheKey(sessionID), &cached); err == nil && cached.ID == sessionID {
			return cached, nil
		}
	}
	session, err := s.deps.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, err
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, sessionCacheKey(sessionID), session, sessionCacheTTL); err != nil {
			logrus.WithError(err).Debug("session cache set failed")
		}
	}
	return session, nil
}

func (s *Service) invalidate(ctx context.Context, sessionID int) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Delete(ctx, sessionCacheKey(sessionID)); err != nil {
		logrus.WithError(err).Debug("session cache invalidation failed")
	}
}

func (s *Service) broadcastMessage(sessionID int, msg models.Message) {
	if s.deps.Hub == nil {
		return
	}
	s.deps.Hub.BroadcastSessionEvent(sessionID, models.SessionEvent{Type: models.EventMessage, Message: &msg})
}

func (s *Service) broadcastState(session models.ChatSession) {
	if s.deps.Hub == nil {
		return
	}
	price := session.NegotiatedPrice
	event := models.SessionEvent{
		Type:            models.EventStateChanged,
		State:           session.State,
		NegotiatedPrice: &price,
	}
	if session.State == models.StatePriceAgreed {
		secondsLeft := s.adSecondsLeft(session)
		event.AdSecondsLeft = &secondsLeft
	}
	s.deps.Hub.BroadcastSessionEvent(session.ID, event)
}

func (s *Service) notify(ctx context.Context, userID int, title, body string, kind models.NotificationType, sessionID int) {
	if s.deps.Notifications == nil {
		return
	}
	related := sessionID
	_, err := s.deps.Notifications.CreateNotification(ctx, models.Notification{
		UserID:    userID,
		Title:     title,
		Body:      body,
		Type:      kind,
		RelatedID: &related,
	})
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("failed to store notification")
	}
}

func (s *Service) publish(ctx context.Context, routingKey string, event Event) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(ctx, routingKey, event); err != nil {
		logrus.WithError(err).WithField("routing_key", routingKey).Error("failed to publish negotiation event")
	}
}
