package negotiation

import (
	"encoding/json"
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickup-service/internal/models"
)

func metaJSON(t *testing.T, meta models.MessageMetadata) types.JSONText {
	t.Helper()
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	return types.JSONText(data)
}

func TestReplayEmptyLog(t *testing.T) {
	state, price := Replay(nil)
	assert.Equal(t, models.StateNegotiating, state)
	assert.Equal(t, 0.0, price)
}

func TestReplayOpeningSeedsPrice(t *testing.T) {
	msgs := []models.Message{
		{Type: models.MessageTypeSystem, Metadata: metaJSON(t, models.MessageMetadata{Event: models.MetaEventSessionOpened, Price: 25})},
	}
	state, price := Replay(msgs)
	assert.Equal(t, models.StateNegotiating, state)
	assert.Equal(t, 25.0, price)
}

func TestReplayFullFlow(t *testing.T) {
	msgs := []models.Message{
		{Type: models.MessageTypeSystem, Metadata: metaJSON(t, models.MessageMetadata{Event: models.MetaEventSessionOpened, Price: 25})},
		{Type: models.MessageTypeText, Content: "שלום"},
		{Type: models.MessageTypePriceOffer, Metadata: metaJSON(t, models.MessageMetadata{Price: 30})},
		{Type: models.MessageTypePriceAgreed, Metadata: metaJSON(t, models.MessageMetadata{Price: 30})},
		{Type: models.MessageTypeSystem, Metadata: metaJSON(t, models.MessageMetadata{Event: models.MetaEventContactRevealed, Price: 30})},
		{Type: models.MessageTypeCompletion},
		{Type: models.MessageTypeRating, Metadata: metaJSON(t, models.MessageMetadata{Score: 5})},
	}
	state, price := Replay(msgs)
	assert.Equal(t, models.StateRated, state)
	assert.Equal(t, 30.0, price)
}

func TestReplayLastOfferWins(t *testing.T) {
	msgs := []models.Message{
		{Type: models.MessageTypeSystem, Metadata: metaJSON(t, models.MessageMetadata{Event: models.MetaEventSessionOpened, Price: 25})},
		{Type: models.MessageTypePriceOffer, Metadata: metaJSON(t, models.MessageMetadata{Price: 40})},
		{Type: models.MessageTypePriceOffer, Metadata: metaJSON(t, models.MessageMetadata{Price: 35})},
	}
	state, price := Replay(msgs)
	assert.Equal(t, models.StateNegotiating, state)
	assert.Equal(t, 35.0, price)
}

func TestReplayPendingAgreeDoesNotTransition(t *testing.T) {
	msgs := []models.Message{
		{Type: models.MessageTypePriceOffer, Metadata: metaJSON(t, models.MessageMetadata{Price: 30})},
		{Type: models.MessageTypePriceAgreed, Metadata: metaJSON(t, models.MessageMetadata{Price: 30, Pending: true})},
	}
	state, price := Replay(msgs)
	assert.Equal(t, models.StateNegotiating, state)
	assert.Equal(t, 30.0, price)
}
