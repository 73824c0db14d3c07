package progress

import (
	"math"
	"time"

	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

// Run-record merge modes.
const (
	ModeMerge  = "merge"
	ModeAppend = "append"
)

// round3 keeps stored kilometers at millimeter-of-km precision, matching the
// precision of already-persisted documents.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// AddRun records km against routeID on date. Pure over the document: the
// target route is an explicit parameter, never ambient state.
//
// ModeMerge folds the amount into an existing (date, route) entry so the
// ledger never holds two records for the same pair; ModeAppend always adds a
// new entry. Aggregates are recomputed from the full ledger afterwards.
func AddRun(doc *models.UserDocument, km float64, date, mode, routeID, note string) error {
	if km <= 0 {
		return models.ErrInvalidAmount
	}

	switch mode {
	case ModeMerge:
		merged := false
		for i := range doc.History {
			rec := &doc.History[i]
			if rec.Date == date && rec.RouteID == routeID {
				rec.Km = round3(rec.Km + km)
				if note != "" {
					rec.Note = note
				}
				merged = true
				break
			}
		}
		if !merged {
			doc.History = append(doc.History, models.RunRecord{
				Date: date, Km: round3(km), RouteID: routeID, Note: note,
			})
		}
	case ModeAppend:
		doc.History = append(doc.History, models.RunRecord{
			Date: date, Km: round3(km), RouteID: routeID, Note: note,
		})
	default:
		return models.ErrInvalidMode
	}

	Recompute(doc)
	return nil
}

// DeleteRunsByDate removes ledger entries on date; with a routeID it removes
// only that route's entries, otherwise every entry on the date. The only
// deletion path, irreversible at this layer.
func DeleteRunsByDate(doc *models.UserDocument, date string, routeID *string) {
	kept := doc.History[:0]
	for _, rec := range doc.History {
		if rec.Date != date {
			kept = append(kept, rec)
			continue
		}
		if routeID != nil && rec.RouteID != *routeID {
			kept = append(kept, rec)
		}
	}
	doc.History = kept
	Recompute(doc)
}

// Recompute rebuilds every derived distance field from the full ledger,
// never incrementally, so consistency holds after any ledger edit including
// deletions. Cache targets: profile totals and streak, route_progress,
// v3.free.progress_km and the km of tracked pro routes.
func Recompute(doc *models.UserDocument) {
	p := &doc.Profile

	total := 0.0
	perRoute := map[string]float64{}
	dates := map[string]bool{}
	lastDate := ""

	for _, rec := range doc.History {
		total += rec.Km
		perRoute[rec.RouteID] += rec.Km
		if rec.Date != "" {
			dates[rec.Date] = true
			if rec.Date > lastDate {
				lastDate = rec.Date
			}
		}
	}

	p.TotalKm = round3(total)

	if lastDate == "" {
		p.LastRunDate = nil
		p.StreakDays = 0
	} else {
		last := lastDate
		p.LastRunDate = &last
		p.StreakDays = streakEndingAt(lastDate, dates)
	}

	// Caches are replaced wholesale so deleted routes do not linger.
	p.RouteProgress = make(map[string]float64, len(perRoute))
	for rid, km := range perRoute {
		p.RouteProgress[rid] = round3(km)
	}

	if p.V3 != nil {
		p.V3.Free.ProgressKm = make(map[string]float64, len(perRoute))
		for rid, km := range perRoute {
			p.V3.Free.ProgressKm[rid] = round3(km)
		}
		for rid, rec := range p.V3.Pro.Routes {
			rec.Km = round3(perRoute[rid])
			p.V3.Pro.Routes[rid] = rec
		}
	}
}

// streakEndingAt counts consecutive calendar days ending at last where every
// day has at least one ledger entry on any route. A gap immediately before
// the anchor day yields a streak of 1.
func streakEndingAt(last string, dates map[string]bool) int {
	cur, err := time.Parse(models.DateLayout, last)
	if err != nil {
		return 0
	}

	streak := 0
	for dates[cur.Format(models.DateLayout)] {
		streak++
		cur = cur.AddDate(0, 0, -1)
	}
	return streak
}

// RouteKm sums ledger entries for one route. The authoritative cumulative
// distance, used by the completion scan and route summaries.
func RouteKm(doc *models.UserDocument, routeID string) float64 {
	sum := 0.0
	for _, rec := range doc.History {
		if rec.RouteID == routeID {
			sum += rec.Km
		}
	}
	return round3(sum)
}
