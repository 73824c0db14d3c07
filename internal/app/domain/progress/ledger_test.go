package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

func freshDoc(t *testing.T) *models.UserDocument {
	t.Helper()
	return Heal(nil, testNow)
}

func TestAddRunRejectsNonPositiveKm(t *testing.T) {
	doc := freshDoc(t)

	assert.ErrorIs(t, AddRun(doc, 0, "2024-06-01", ModeMerge, "nj_bj", ""), models.ErrInvalidAmount)
	assert.ErrorIs(t, AddRun(doc, -3, "2024-06-01", ModeMerge, "nj_bj", ""), models.ErrInvalidAmount)
	assert.Empty(t, doc.History, "rejected runs must not change state")
}

func TestAddRunRejectsUnknownMode(t *testing.T) {
	doc := freshDoc(t)
	assert.ErrorIs(t, AddRun(doc, 1, "2024-06-01", "upsert", "nj_bj", ""), models.ErrInvalidMode)
}

func TestAddRunMergeLaw(t *testing.T) {
	doc := freshDoc(t)

	require.NoError(t, AddRun(doc, 3, "2024-06-01", ModeMerge, "nj_bj", ""))
	require.NoError(t, AddRun(doc, 3, "2024-06-01", ModeMerge, "nj_bj", ""))

	require.Len(t, doc.History, 1, "merge never creates two records for the same (date, route)")
	assert.Equal(t, 6.0, doc.History[0].Km)
	assert.Equal(t, 6.0, doc.Profile.TotalKm)
}

func TestAddRunAppendAllowsSameDayEntries(t *testing.T) {
	doc := freshDoc(t)

	require.NoError(t, AddRun(doc, 3, "2024-06-01", ModeAppend, "nj_bj", ""))
	require.NoError(t, AddRun(doc, 3, "2024-06-01", ModeAppend, "nj_bj", ""))

	assert.Len(t, doc.History, 2)
	assert.Equal(t, 6.0, doc.Profile.TotalKm)
}

func TestAddRunMergeKeepsRoutesSeparate(t *testing.T) {
	doc := freshDoc(t)

	require.NoError(t, AddRun(doc, 2, "2024-06-01", ModeMerge, "route_a", ""))
	require.NoError(t, AddRun(doc, 5, "2024-06-01", ModeMerge, "route_b", ""))

	assert.Len(t, doc.History, 2)
	assert.Equal(t, 2.0, doc.Profile.RouteProgress["route_a"])
	assert.Equal(t, 5.0, doc.Profile.RouteProgress["route_b"])
}

func TestAddRunMergeNoteOverwriteIsConditional(t *testing.T) {
	doc := freshDoc(t)

	require.NoError(t, AddRun(doc, 1, "2024-06-01", ModeMerge, "nj_bj", "morning"))
	require.NoError(t, AddRun(doc, 1, "2024-06-01", ModeMerge, "nj_bj", ""))
	assert.Equal(t, "morning", doc.History[0].Note, "empty note keeps the existing one")

	require.NoError(t, AddRun(doc, 1, "2024-06-01", ModeMerge, "nj_bj", "evening"))
	assert.Equal(t, "evening", doc.History[0].Note)
}

func TestAddRunRoundsToThreeDecimals(t *testing.T) {
	doc := freshDoc(t)

	require.NoError(t, AddRun(doc, 1.00049, "2024-06-01", ModeMerge, "nj_bj", ""))
	assert.Equal(t, 1.0, doc.History[0].Km)

	require.NoError(t, AddRun(doc, 2.1005, "2024-06-01", ModeMerge, "nj_bj", ""))
	assert.InDelta(t, 3.101, doc.History[0].Km, 1e-9)
}

func TestAggregateConsistencyAfterMixedOperations(t *testing.T) {
	doc := freshDoc(t)

	require.NoError(t, AddRun(doc, 5, "2024-06-01", ModeMerge, "route_a", ""))
	require.NoError(t, AddRun(doc, 7, "2024-06-02", ModeAppend, "route_b", ""))
	require.NoError(t, AddRun(doc, 2, "2024-06-02", ModeAppend, "route_b", ""))
	DeleteRunsByDate(doc, "2024-06-01", nil)

	var wantTotal float64
	perRoute := map[string]float64{}
	for _, rec := range doc.History {
		wantTotal += rec.Km
		perRoute[rec.RouteID] += rec.Km
	}

	assert.Equal(t, wantTotal, doc.Profile.TotalKm)
	for rid, km := range perRoute {
		assert.Equal(t, km, doc.Profile.RouteProgress[rid], "route_progress[%s]", rid)
		assert.Equal(t, km, doc.Profile.V3.Free.ProgressKm[rid], "v3.free.progress_km[%s]", rid)
	}
}

func TestDeleteRunsByDateScopedToRoute(t *testing.T) {
	doc := freshDoc(t)

	require.NoError(t, AddRun(doc, 5, "2024-06-01", ModeMerge, "route_a", ""))
	require.NoError(t, AddRun(doc, 7, "2024-06-01", ModeMerge, "route_b", ""))

	rid := "route_a"
	DeleteRunsByDate(doc, "2024-06-01", &rid)

	require.Len(t, doc.History, 1)
	assert.Equal(t, "route_b", doc.History[0].RouteID)
	assert.Equal(t, 7.0, doc.Profile.TotalKm)
}

func TestDeleteRunsByDateAllRoutes(t *testing.T) {
	doc := freshDoc(t)

	require.NoError(t, AddRun(doc, 5, "2024-06-01", ModeMerge, "route_a", ""))
	require.NoError(t, AddRun(doc, 7, "2024-06-01", ModeMerge, "route_b", ""))
	require.NoError(t, AddRun(doc, 1, "2024-06-02", ModeMerge, "route_a", ""))

	DeleteRunsByDate(doc, "2024-06-01", nil)

	require.Len(t, doc.History, 1)
	assert.Equal(t, "2024-06-02", doc.History[0].Date)
	assert.Equal(t, 1.0, doc.Profile.TotalKm)
	assert.Equal(t, 1.0, doc.Profile.RouteProgress["route_a"])
}

func TestStreakCalculation(t *testing.T) {
	tests := []struct {
		name       string
		dates      []string
		wantLast   string
		wantStreak int
	}{
		{
			name:       "unbroken three-day run",
			dates:      []string{"2024-01-01", "2024-01-02", "2024-01-03"},
			wantLast:   "2024-01-03",
			wantStreak: 3,
		},
		{
			// The gap on the 03rd breaks continuity immediately: only the
			// anchor day counts.
			name:       "gap right before the anchor day",
			dates:      []string{"2024-01-01", "2024-01-02", "2024-01-04"},
			wantLast:   "2024-01-04",
			wantStreak: 1,
		},
		{
			name:       "single day",
			dates:      []string{"2024-02-10"},
			wantLast:   "2024-02-10",
			wantStreak: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := freshDoc(t)
			for i, d := range tt.dates {
				route := "nj_bj"
				if i%2 == 1 {
					route = "other" // any route counts toward the streak
				}
				require.NoError(t, AddRun(doc, 1, d, ModeMerge, route, ""))
			}

			require.NotNil(t, doc.Profile.LastRunDate)
			assert.Equal(t, tt.wantLast, *doc.Profile.LastRunDate)
			assert.Equal(t, tt.wantStreak, doc.Profile.StreakDays)
		})
	}
}

func TestDeleteAllRunsResetsAggregates(t *testing.T) {
	doc := freshDoc(t)
	require.NoError(t, AddRun(doc, 5, "2024-06-01", ModeMerge, "nj_bj", ""))

	DeleteRunsByDate(doc, "2024-06-01", nil)

	assert.Zero(t, doc.Profile.TotalKm)
	assert.Nil(t, doc.Profile.LastRunDate)
	assert.Zero(t, doc.Profile.StreakDays)
}
