package models

import "encoding/json"

// Schema versions for the per-user progress document. Migrations in the
// progress package step a document through these one version at a time.
const (
	SchemaV1 = 1 // flat profile + history only
	SchemaV2 = 2 // adds auth / pass / entitlements / route_progress
	SchemaV3 = 3 // adds the v3 multi-mode block (free vs pro)

	SchemaCurrent = SchemaV3
)

// DateLayout is the calendar-date format used everywhere in persisted
// documents (run dates, pass boundaries, reward timestamps).
const DateLayout = "2006-01-02"

// UserDocument is the full per-user persisted state. One document per user,
// keyed by the stable anonymous user key. History is the single source of
// truth for distance; every other distance field is a recomputable cache.
type UserDocument struct {
	Meta    Meta                 `json:"meta"`
	Profile Profile              `json:"profile"`
	Routes  map[string]RouteMeta `json:"routes"`
	History []RunRecord          `json:"history"`
}

type Meta struct {
	SchemaVersion int    `json:"schema_version"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type Profile struct {
	UserID         string             `json:"user_id"`
	CurrentRouteID string             `json:"current_route_id"`
	TotalKm        float64            `json:"total_km"`
	StreakDays     int                `json:"streak_days"`
	LastRunDate    *string            `json:"last_run_date"`
	Auth           *AuthInfo          `json:"auth,omitempty"`
	Pass           *Pass              `json:"pass,omitempty"`
	Entitlements   *Entitlements      `json:"entitlements,omitempty"`
	RouteProgress  map[string]float64 `json:"route_progress,omitempty"`
	V3             *V3State           `json:"v3,omitempty"`
}

// AuthInfo records how this profile was activated. Mode is "local" until an
// invite code is consumed, then "invite".
type AuthInfo struct {
	Mode       string  `json:"mode"`
	InviteCode *string `json:"invite_code"`
	UserKey    *string `json:"user_key"`
}

// Pass statuses.
const (
	PassStatusNone    = "none"
	PassStatusActive  = "active"
	PassStatusExpired = "expired"
	PassStatusRevoked = "revoked"
)

// Pass is a time-bounded entitlement grant. EndsAt is inclusive.
type Pass struct {
	Tier     string  `json:"tier"`
	Status   string  `json:"status"`
	StartsAt *string `json:"starts_at"`
	EndsAt   *string `json:"ends_at"`
	Source   string  `json:"source"`
	Notes    string  `json:"notes"`
}

// UnmarshalJSON keeps the legacy defaults for fields absent from old
// documents (tier "free", status "none", source "local").
func (p *Pass) UnmarshalJSON(b []byte) error {
	type alias Pass
	a := alias(*DefaultPass())
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*p = Pass(a)
	return nil
}

// DefaultPass returns the zero-grant pass of a fresh profile.
func DefaultPass() *Pass {
	return &Pass{Tier: "free", Status: PassStatusNone, Source: "local"}
}

// Entitlements are derived capability flags. They are recomputed from the
// pass on every load and never trusted as persisted input.
type Entitlements struct {
	AllRoutes  bool `json:"all_routes"`
	AIBasic    bool `json:"ai_basic"`
	AIPlus     bool `json:"ai_plus"`
	StreetView bool `json:"street_view"`
}

// UnmarshalJSON defaults ai_basic to true when the field is absent, matching
// documents written before the flag existed.
func (e *Entitlements) UnmarshalJSON(b []byte) error {
	type alias Entitlements
	a := alias{AIBasic: true}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*e = Entitlements(a)
	return nil
}

// DefaultEntitlements returns the flags of a fresh, unentitled profile.
func DefaultEntitlements() *Entitlements {
	return &Entitlements{AIBasic: true}
}

// Progress modes for the v3 block.
const (
	ModeFree = "free"
	ModePro  = "pro"
)

// V3State is the multi-mode progress state introduced with schema v3.
type V3State struct {
	Mode string    `json:"mode"`
	Free FreeState `json:"free"`
	Pro  ProState  `json:"pro"`
}

type FreeState struct {
	SelectedRouteID string             `json:"selected_route_id"`
	ProgressKm      map[string]float64 `json:"progress_km"`
}

// Reward states for the pro completion workflow.
const (
	RewardLocked   = "locked"
	RewardPending  = "pending"
	RewardAccepted = "accepted"
	RewardDeclined = "declined"
)

type ProState struct {
	Active          bool                `json:"active"`
	Routes          map[string]ProRoute `json:"routes"`
	RewardState     string              `json:"reward_state"`
	FinishedRouteID *string             `json:"finished_route_id"`
	RewardChoiceAt  *string             `json:"reward_choice_at"`
	RewardNarrative *RewardNarrative    `json:"reward_narrative,omitempty"`
}

// Pro route statuses.
const (
	RouteRunning  = "running"
	RouteFinished = "finished"
)

type ProRoute struct {
	Km         float64 `json:"km"`
	Status     string  `json:"status"`
	FinishedAt *string `json:"finished_at"`
}

// RewardNarrative is the one-time AI-generated completion text, persisted
// verbatim so it is never regenerated within the same pending cycle.
type RewardNarrative struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// RunRecord is a single ledger entry. Km is always positive.
type RunRecord struct {
	Date    string  `json:"date"`
	Km      float64 `json:"km"`
	RouteID string  `json:"route_id"`
	Note    string  `json:"note"`
}

// RouteMeta is static route metadata embedded in the document. It is not
// authoritative for progress; the authoritative totals come from the route
// metadata provider.
type RouteMeta struct {
	Name       string      `json:"name"`
	TotalKm    float64     `json:"total_km"`
	Milestones []Milestone `json:"milestones,omitempty"`
	KeyCities  []string    `json:"key_cities,omitempty"`
}

type Milestone struct {
	Km    float64 `json:"km"`
	Title string  `json:"title"`
	Desc  string  `json:"desc"`
}
