package progress

import (
	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

// AcceptReward moves a pending reward to accepted and closes the pro
// broadcast (pro.active = false). Terminal: no later completion scan can
// change the reward state again.
func AcceptReward(doc *models.UserDocument, today string) error {
	pro, err := pendingPro(doc)
	if err != nil {
		return err
	}

	pro.RewardState = models.RewardAccepted
	choiceAt := today
	pro.RewardChoiceAt = &choiceAt
	pro.Active = false
	return nil
}

// DeclineReward moves a pending reward to declined. The trigger route and
// cached narrative are cleared so the next newly-finished route opens a
// fresh pending cycle; the declined state itself is kept to preserve the
// decision timeline.
func DeclineReward(doc *models.UserDocument, today string) error {
	pro, err := pendingPro(doc)
	if err != nil {
		return err
	}

	pro.RewardState = models.RewardDeclined
	choiceAt := today
	pro.RewardChoiceAt = &choiceAt
	pro.FinishedRouteID = nil
	pro.RewardNarrative = nil
	return nil
}

func pendingPro(doc *models.UserDocument) (*models.ProState, error) {
	v3 := doc.Profile.V3
	if v3 == nil || v3.Pro.RewardState != models.RewardPending {
		return nil, models.ErrRewardNotPending
	}
	return &v3.Pro, nil
}
