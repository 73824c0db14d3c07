package routes

// CityStop is one ordered stop along a route. Km is the cumulative distance
// from the start at which the stop unlocks.
type CityStop struct {
	Name string  `json:"name"`
	Km   float64 `json:"km"`
}

// Stop unlock states as seen by the progress endpoint.
const (
	StopUnlocked = "unlocked"
	StopNext     = "next"
	StopLocked   = "locked"
)

// StopView is a CityStop annotated against a user's cumulative distance.
// KmToGo is only set on the "next" stop.
type StopView struct {
	Name   string   `json:"name"`
	Km     float64  `json:"km"`
	State  string   `json:"state"`
	KmToGo *float64 `json:"km_to_go,omitempty"`
}

const stopEpsilon = 1e-6

// buildStops normalizes key cities into a monotonic km sequence. Cities
// without an explicit km marker are spread evenly over the total distance;
// out-of-order markers are nudged forward so the sequence never regresses.
func buildStops(cities []cityRef, totalKm float64) []CityStop {
	if len(cities) == 0 {
		return nil
	}

	stops := make([]CityStop, len(cities))
	for i, c := range cities {
		km := -1.0
		if c.Km != nil {
			km = *c.Km
		} else if len(cities) > 1 && totalKm > 0 {
			km = totalKm * float64(i) / float64(len(cities)-1)
		} else {
			km = float64(i)
		}
		stops[i] = CityStop{Name: c.Name, Km: km}
	}

	last := stops[0].Km
	for i := 1; i < len(stops); i++ {
		if stops[i].Km < last {
			stops[i].Km = last + 0.01
		}
		last = stops[i].Km
	}
	return stops
}

// AnnotateStops marks each stop unlocked, next or locked for the given
// cumulative distance. Exactly zero or one stop is "next".
func AnnotateStops(stops []CityStop, kmDone float64) []StopView {
	views := make([]StopView, len(stops))

	unlockedIdx := -1
	for i, s := range stops {
		if kmDone >= s.Km-stopEpsilon {
			unlockedIdx = i
		}
	}

	for i, s := range stops {
		view := StopView{Name: s.Name, Km: s.Km}
		switch {
		case i <= unlockedIdx:
			view.State = StopUnlocked
		case i == unlockedIdx+1:
			view.State = StopNext
			toGo := s.Km - kmDone
			if toGo < 0 {
				toGo = 0
			}
			view.KmToGo = &toGo
		default:
			view.State = StopLocked
		}
		views[i] = view
	}
	return views
}
