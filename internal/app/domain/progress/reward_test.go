package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

func pendingDoc(t *testing.T) *models.UserDocument {
	t.Helper()
	doc := proDoc(t, "pro_a")
	require.NoError(t, AddRunBroadcast(doc, 50, "2024-06-15"))
	ScanCompletion(doc, map[string]float64{"pro_a": 50}, "2024-06-15")
	require.Equal(t, models.RewardPending, doc.Profile.V3.Pro.RewardState)
	return doc
}

func TestAcceptRewardClosesBroadcast(t *testing.T) {
	doc := pendingDoc(t)

	require.NoError(t, AcceptReward(doc, "2024-06-16"))

	pro := doc.Profile.V3.Pro
	assert.Equal(t, models.RewardAccepted, pro.RewardState)
	assert.False(t, pro.Active, "accepting ends the pro broadcast")
	require.NotNil(t, pro.RewardChoiceAt)
	assert.Equal(t, "2024-06-16", *pro.RewardChoiceAt)
	require.NotNil(t, pro.FinishedRouteID, "trigger route is kept for the record")
	assert.Equal(t, "pro_a", *pro.FinishedRouteID)
}

func TestDeclineRewardClearsTriggerAndNarrative(t *testing.T) {
	doc := pendingDoc(t)
	doc.Profile.V3.Pro.RewardNarrative = &models.RewardNarrative{
		Title: "A Long Way North",
		Body:  "From the city walls to the capital gates.",
	}

	require.NoError(t, DeclineReward(doc, "2024-06-16"))

	pro := doc.Profile.V3.Pro
	assert.Equal(t, models.RewardDeclined, pro.RewardState)
	assert.True(t, pro.Active, "declining keeps the broadcast running")
	assert.Nil(t, pro.FinishedRouteID)
	assert.Nil(t, pro.RewardNarrative, "next pending cycle regenerates the narrative")
}

func TestRewardChoiceRequiresPendingState(t *testing.T) {
	for _, state := range []string{models.RewardLocked, models.RewardAccepted, models.RewardDeclined} {
		t.Run(state, func(t *testing.T) {
			doc := proDoc(t, "pro_a")
			doc.Profile.V3.Pro.RewardState = state

			assert.ErrorIs(t, AcceptReward(doc, "2024-06-16"), models.ErrRewardNotPending)
			assert.ErrorIs(t, DeclineReward(doc, "2024-06-16"), models.ErrRewardNotPending)
			assert.Equal(t, state, doc.Profile.V3.Pro.RewardState, "state untouched on rejection")
		})
	}
}

func TestRewardChoiceWithoutV3Block(t *testing.T) {
	doc := Heal(nil, testNow)
	doc.Profile.V3 = nil

	assert.ErrorIs(t, AcceptReward(doc, "2024-06-16"), models.ErrRewardNotPending)
	assert.ErrorIs(t, DeclineReward(doc, "2024-06-16"), models.ErrRewardNotPending)
}

func TestAcceptIsTerminal(t *testing.T) {
	doc := pendingDoc(t)
	require.NoError(t, AcceptReward(doc, "2024-06-16"))

	// Broadcast refuses input and scans cannot reopen the choice.
	require.NoError(t, AddRunBroadcast(doc, 10, "2024-06-17"))
	ScanCompletion(doc, map[string]float64{"pro_a": 50}, "2024-06-17")

	assert.Equal(t, models.RewardAccepted, doc.Profile.V3.Pro.RewardState)
	assert.ErrorIs(t, DeclineReward(doc, "2024-06-17"), models.ErrRewardNotPending)
}
