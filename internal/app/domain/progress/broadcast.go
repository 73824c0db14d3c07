package progress

import (
	"sort"

	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

// completionEpsilon absorbs float accumulation error when comparing a
// route's cumulative distance against its total.
const completionEpsilon = 1e-6

// AddRunBroadcast fans a single daily input out across every tracked pro
// route: one km amount becomes one merge-mode ledger entry per route, all
// dated identically. Storage cost scales with days x routes; accepted for
// auditability. No-op when no pro routes are tracked or the broadcast has
// been closed by an accepted reward.
func AddRunBroadcast(doc *models.UserDocument, km float64, date string) error {
	if km <= 0 {
		return models.ErrInvalidAmount
	}

	v3 := doc.Profile.V3
	if v3 == nil || len(v3.Pro.Routes) == 0 || !v3.Pro.Active {
		return nil
	}

	for _, rid := range sortedRouteIDs(v3.Pro.Routes) {
		if err := AddRun(doc, km, date, ModeMerge, rid, ""); err != nil {
			return err
		}
	}
	return nil
}

// ScanCompletion refreshes every tracked pro route's cumulative distance
// from the ledger and detects running -> finished transitions. totals maps
// route id to the route's full distance (from the metadata provider).
//
// The reward trigger is gated: when the reward state is already pending or
// accepted the newly-finished detection pass never fires, so an accepted
// reward can never be reopened by a later scan. When several routes cross
// their finish line in the same scan, the one with the smallest total
// distance triggers; the others still finish individually.
func ScanCompletion(doc *models.UserDocument, totals map[string]float64, today string) {
	v3 := doc.Profile.V3
	if v3 == nil {
		return
	}
	pro := &v3.Pro

	type finished struct {
		rid   string
		total float64
	}
	var newlyFinished []finished

	for _, rid := range sortedRouteIDs(pro.Routes) {
		rec := pro.Routes[rid]
		sum := RouteKm(doc, rid)
		rec.Km = sum

		total := totals[rid]
		done := total > 0 && sum >= total-completionEpsilon

		if done && rec.Status != models.RouteFinished {
			rec.Status = models.RouteFinished
			finishedAt := today
			rec.FinishedAt = &finishedAt
			newlyFinished = append(newlyFinished, finished{rid: rid, total: total})
		}
		if rec.Status == "" {
			rec.Status = models.RouteRunning
		}

		pro.Routes[rid] = rec
	}

	if pro.RewardState == models.RewardAccepted || pro.RewardState == models.RewardPending {
		return
	}

	if len(newlyFinished) > 0 {
		sort.Slice(newlyFinished, func(i, j int) bool {
			if newlyFinished[i].total != newlyFinished[j].total {
				return newlyFinished[i].total < newlyFinished[j].total
			}
			return newlyFinished[i].rid < newlyFinished[j].rid
		})

		trigger := newlyFinished[0].rid
		pro.RewardState = models.RewardPending
		pro.FinishedRouteID = &trigger
		choiceAt := today
		pro.RewardChoiceAt = &choiceAt
	}
}

func sortedRouteIDs(routes map[string]models.ProRoute) []string {
	ids := make([]string, 0, len(routes))
	for rid := range routes {
		ids = append(ids, rid)
	}
	sort.Strings(ids)
	return ids
}
