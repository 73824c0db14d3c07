package progress

import (
	"time"

	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

// ResolveEntitlements recomputes the derived capability flags from the pass
// and the current date. Deterministic for a fixed now; mutates pass.status
// as a side effect (lazy expiry: an expired pass is only discovered on
// access, there is no background timer).
//
// Fail-safe direction is always lower privilege: an active pass with a
// missing or unparsable end date is treated as expired.
func ResolveEntitlements(p *models.Profile, now time.Time) {
	if p.Pass == nil {
		p.Pass = models.DefaultPass()
	}
	if p.Entitlements == nil {
		p.Entitlements = models.DefaultEntitlements()
	}

	if p.Pass.Status != models.PassStatusActive {
		p.Entitlements.AllRoutes = false
		return
	}

	ends, ok := parseDate(p.Pass.EndsAt)
	today := truncateToDay(now)

	switch {
	case !ok:
		p.Pass.Status = models.PassStatusExpired
		p.Entitlements.AllRoutes = false
	case ends.Before(today):
		p.Pass.Status = models.PassStatusExpired
		p.Entitlements.AllRoutes = false
	default:
		// EndsAt is inclusive: a pass ending today is still valid.
		p.Entitlements.AllRoutes = true
	}
}

func parseDate(s *string) (time.Time, bool) {
	if s == nil || *s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(models.DateLayout, *s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
