// Package progress owns the per-user progress document: schema healing and
// migration, the run ledger and its derived aggregates, entitlement
// resolution, the pro-mode broadcast engine and the completion-reward state
// machine. The ledger (history) is the single source of truth for distance;
// everything else is a recomputable cache.
package progress

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

// DefaultRouteID is the seed route of a fresh document, kept for
// compatibility with already-stored documents.
const DefaultRouteID = "nj_bj"

// DefaultDocument returns a fully-populated document at the current schema
// version. Healing overlays raw data onto this skeleton, so every field the
// application touches is guaranteed to exist.
func DefaultDocument(now time.Time) *models.UserDocument {
	ts := now.Format(time.RFC3339)
	return &models.UserDocument{
		Meta: models.Meta{
			SchemaVersion: models.SchemaCurrent,
			CreatedAt:     ts,
			UpdatedAt:     ts,
		},
		Profile: models.Profile{
			UserID:         "local",
			CurrentRouteID: DefaultRouteID,
			Auth:           &models.AuthInfo{Mode: "local"},
			Pass:           models.DefaultPass(),
			Entitlements:   models.DefaultEntitlements(),
			RouteProgress:  map[string]float64{},
			V3:             defaultV3(),
		},
		Routes: map[string]models.RouteMeta{
			DefaultRouteID: {
				Name:    "南京 → 北京",
				TotalKm: 1020.0,
				Milestones: []models.Milestone{
					{Km: 0.0, Title: "南京", Desc: "起点"},
					{Km: 1020.0, Title: "北京", Desc: "终点"},
				},
			},
		},
		History: []models.RunRecord{},
	}
}

func defaultV3() *models.V3State {
	return &models.V3State{
		Mode: models.ModeFree,
		Free: models.FreeState{
			SelectedRouteID: DefaultRouteID,
			ProgressKm:      map[string]float64{},
		},
		Pro: models.ProState{
			Routes:      map[string]models.ProRoute{},
			RewardState: models.RewardLocked,
		},
	}
}

// rawDocument splits a stored document into sections so a structurally
// broken section (wrong JSON type) falls back to its default independently.
type rawDocument struct {
	Meta    json.RawMessage `json:"meta"`
	Profile json.RawMessage `json:"profile"`
	Routes  json.RawMessage `json:"routes"`
	History json.RawMessage `json:"history"`
}

// Heal repairs and migrates a raw stored document. Total: any input,
// including nil, yields a valid fully-populated document. Idempotent for a
// fixed now: healing an already-healed document changes nothing.
//
// Order matters: defaults overlay, then versioned migrations, then user-key
// minting, then entitlement recompute, then the v3 ensure pass.
func Heal(raw []byte, now time.Time) *models.UserDocument {
	doc := DefaultDocument(now)

	if len(raw) > 0 {
		var sections rawDocument
		if err := json.Unmarshal(raw, &sections); err == nil {
			overlay(doc, sections)
		}
	}

	migrate(doc)
	ensureUserKey(&doc.Profile)
	ResolveEntitlements(&doc.Profile, now)
	ensureV3(doc)

	if doc.Meta.CreatedAt == "" {
		doc.Meta.CreatedAt = now.Format(time.RFC3339)
	}
	doc.Meta.UpdatedAt = now.Format(time.RFC3339)

	return doc
}

// RefreshAccess recomputes entitlements from the pass and re-derives the
// v3 access mode. Must run after any in-place pass mutation.
func RefreshAccess(doc *models.UserDocument, now time.Time) {
	ResolveEntitlements(&doc.Profile, now)
	ensureV3(doc)
}

func overlay(doc *models.UserDocument, sections rawDocument) {
	if len(sections.Meta) > 0 {
		var meta models.Meta
		if err := json.Unmarshal(sections.Meta, &meta); err == nil {
			created := doc.Meta.CreatedAt
			doc.Meta = meta
			if doc.Meta.CreatedAt == "" {
				doc.Meta.CreatedAt = created
			}
		}
	}
	if len(sections.Profile) > 0 {
		var profile models.Profile
		if err := json.Unmarshal(sections.Profile, &profile); err == nil {
			doc.Profile = profile
		}
	}
	if len(sections.Routes) > 0 {
		var routes map[string]models.RouteMeta
		if err := json.Unmarshal(sections.Routes, &routes); err == nil && routes != nil {
			doc.Routes = routes
		}
	}
	if len(sections.History) > 0 {
		var history []models.RunRecord
		if err := json.Unmarshal(sections.History, &history); err == nil && history != nil {
			doc.History = history
		}
	}
}

// migrate steps the document through schema revisions in order. Each step
// only adds missing sub-fields with defaults, never overwriting or deleting
// existing user data, and bumps the version exactly once.
func migrate(doc *models.UserDocument) {
	if doc.Meta.SchemaVersion < models.SchemaV1 {
		doc.Meta.SchemaVersion = models.SchemaV1
	}
	if doc.Meta.SchemaVersion < models.SchemaV2 {
		migrateV1toV2(doc)
	}
	if doc.Meta.SchemaVersion < models.SchemaV3 {
		migrateV2toV3(doc)
	}
}

// v1 -> v2: introduce auth, pass, entitlements and the route_progress cache.
func migrateV1toV2(doc *models.UserDocument) {
	p := &doc.Profile
	if p.Auth == nil {
		p.Auth = &models.AuthInfo{Mode: "local"}
	}
	if p.Pass == nil {
		p.Pass = models.DefaultPass()
	}
	if p.Entitlements == nil {
		p.Entitlements = models.DefaultEntitlements()
	}
	if p.RouteProgress == nil {
		p.RouteProgress = map[string]float64{}
	}
	doc.Meta.SchemaVersion = models.SchemaV2
}

// v2 -> v3: introduce the multi-mode block. Contents are reconciled by
// ensureV3 on every heal.
func migrateV2toV3(doc *models.UserDocument) {
	if doc.Profile.V3 == nil {
		doc.Profile.V3 = defaultV3()
	}
	doc.Meta.SchemaVersion = models.SchemaV3
}

// ensureUserKey mints a stable anonymous identifier exactly once.
func ensureUserKey(p *models.Profile) {
	if p.Auth == nil {
		p.Auth = &models.AuthInfo{Mode: "local"}
	}
	if p.Auth.UserKey == nil || strings.TrimSpace(*p.Auth.UserKey) == "" {
		key := MintUserKey()
		p.Auth.UserKey = &key
	}
}

// MintUserKey produces a stable anonymous user key, e.g.
// u_2f7c1b3a9d4e4f0aa1c2d3e4f5a6b7c8.
func MintUserKey() string {
	return "u_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ensureV3 repairs the v3 block: creates it when absent, derives the mode
// from current entitlements (pro iff all_routes), and migrates the flat
// route_progress cache into the v3 caches. Overwrites cache values rather
// than accumulating, so re-applying never double-counts, and never touches
// history.
func ensureV3(doc *models.UserDocument) {
	p := &doc.Profile
	if p.V3 == nil {
		p.V3 = defaultV3()
	}
	v3 := p.V3

	if p.Entitlements != nil && p.Entitlements.AllRoutes {
		v3.Mode = models.ModePro
	} else {
		v3.Mode = models.ModeFree
	}

	if v3.Free.SelectedRouteID == "" {
		if p.CurrentRouteID != "" {
			v3.Free.SelectedRouteID = p.CurrentRouteID
		} else {
			v3.Free.SelectedRouteID = DefaultRouteID
		}
	}
	if v3.Free.ProgressKm == nil {
		v3.Free.ProgressKm = map[string]float64{}
	}
	if v3.Pro.Routes == nil {
		v3.Pro.Routes = map[string]models.ProRoute{}
	}
	if v3.Pro.RewardState == "" {
		v3.Pro.RewardState = models.RewardLocked
	}

	for rid, km := range p.RouteProgress {
		v3.Free.ProgressKm[rid] = km
		if v3.Pro.Active {
			if rec, ok := v3.Pro.Routes[rid]; ok {
				rec.Km = km
				v3.Pro.Routes[rid] = rec
			}
		}
	}
}
