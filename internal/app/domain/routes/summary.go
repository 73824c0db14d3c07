package routes

import (
	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

// Route summary statuses.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

const summaryEpsilon = 1e-6

// Summary is the per-route progress card: ledger-derived distance against
// catalog totals.
type Summary struct {
	RouteID  string  `json:"route_id"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle"`
	Pro      bool    `json:"pro"`
	KmDone   float64 `json:"km_done"`
	KmTotal  float64 `json:"km_total"`
	Pct      float64 `json:"pct"`
	Status   string  `json:"status"`
	LastDate *string `json:"last_date"`
}

// BuildSummary computes a route card from the user's ledger. The ledger is
// summed directly rather than trusting the document's cached route_progress.
func BuildSummary(route Route, doc *models.UserDocument) Summary {
	kmDone := 0.0
	var lastDate *string
	for i := range doc.History {
		rec := doc.History[i]
		if rec.RouteID != route.ID {
			continue
		}
		kmDone += rec.Km
		if rec.Date != "" && (lastDate == nil || rec.Date > *lastDate) {
			d := rec.Date
			lastDate = &d
		}
	}

	total := route.Meta.TotalKm
	pct := 0.0
	if total > 0 {
		pct = kmDone / total
	}

	status := StatusInProgress
	switch {
	case kmDone <= summaryEpsilon:
		status = StatusNotStarted
	case total > 0 && kmDone >= total-summaryEpsilon:
		status = StatusFinished
	}

	subtitle := ""
	if n := len(route.Stops); n > 0 {
		subtitle = "→ " + route.Stops[n-1].Name
	}

	return Summary{
		RouteID:  route.ID,
		Title:    route.Meta.Name,
		Subtitle: subtitle,
		Pro:      route.Pro,
		KmDone:   kmDone,
		KmTotal:  total,
		Pct:      pct,
		Status:   status,
		LastDate: lastDate,
	}
}
