package negotiation

import (
	"errors"

	"pickup-service/internal/models"
)

// Sentinel errors returned by negotiation operations.
var (
	ErrNotParticipant    = errors.New("user is not a session participant")
	ErrInvalidTransition = errors.New("action not allowed in current negotiation state")
	ErrGateClosed        = errors.New("contact details are still gated")
	ErrAlreadyAgreed     = errors.New("waiting for the other participant to agree")
	ErrOwnRequest        = errors.New("cannot collect your own request")
	ErrInvalidRating     = errors.New("invalid rating input")
)

// AcceptPolicy controls how a price agreement is finalized. The observed
// client behavior is single-sided: one participant's agree freezes the
// price. Mutual requires both participants to agree on the same price.
type AcceptPolicy string

const (
	AcceptPolicySingle AcceptPolicy = "single"
	AcceptPolicyMutual AcceptPolicy = "mutual"
)

// Replay reconstructs (state, negotiated price) from a session's message log
// alone. Every transition appends a typed message, so the log is a complete
// audit trail; the stored session row is a materialization of this replay
// and the two must agree.
func Replay(msgs []models.Message) (models.SessionState, float64) {
	state := models.StateNegotiating
	var price float64
	for _, msg := range msgs {
		meta := msg.DecodeMetadata()
		switch msg.Type {
		case models.MessageTypeSystem:
			switch meta.Event {
			case models.MetaEventSessionOpened:
				price = meta.Price
			case models.MetaEventContactRevealed:
				state = models.StateContactRevealed
			}
		case models.MessageTypePriceOffer:
			price = meta.Price
		case models.MessageTypePriceAgreed:
			if !meta.Pending {
				state = models.StatePriceAgreed
				price = meta.Price
			}
		case models.MessageTypeCompletion:
			state = models.StateDeliveryCompleted
		case models.MessageTypeRating:
			state = models.StateRated
		}
	}
	return state, price
}
