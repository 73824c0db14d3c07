package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/app/models"
	"github.com/FACorreiaa/go-runworld/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-runworld/internal/pkg/store"
)

// RouteInfoProvider supplies static route metadata: total distances for
// completion comparisons and the set of routes tracked in pro mode.
type RouteInfoProvider interface {
	Totals(ctx context.Context) (map[string]float64, error)
	Meta(ctx context.Context, routeID string) (*models.RouteMeta, error)
	ProRouteIDs(ctx context.Context) ([]string, error)
}

// NarrativeGenerator produces the one-time reward text for a finished route.
type NarrativeGenerator interface {
	RewardNarrative(ctx context.Context, route models.RouteMeta) (*models.RewardNarrative, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Load(ctx context.Context, userKey string) (*models.UserDocument, error)
	Save(ctx context.Context, userKey string, doc *models.UserDocument) error
	AddRun(ctx context.Context, userKey string, km float64, date, mode, routeID, note string) (*models.UserDocument, error)
	DeleteRuns(ctx context.Context, userKey, date string, routeID *string) (*models.UserDocument, error)
	AddRunBroadcast(ctx context.Context, userKey string, km float64) (*models.UserDocument, error)
	ChooseReward(ctx context.Context, userKey string, accept bool) (*models.UserDocument, error)
	RewardNarrative(ctx context.Context, userKey string) (*models.RewardNarrative, error)
	SelectRoute(ctx context.Context, userKey, routeID string) (*models.UserDocument, error)
}

// ServiceImpl is the application-state boundary around the document store.
// There is no ambient session cache: every operation loads the document,
// mutates it with the pure functions of this package and writes it back.
// The write-back after each mutation is the defined synchronization point.
type ServiceImpl struct {
	store     store.Store
	routeInfo RouteInfoProvider
	narrative NarrativeGenerator
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(st store.Store, routeInfo RouteInfoProvider, narrative NarrativeGenerator, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		store:     st,
		routeInfo: routeInfo,
		narrative: narrative,
		logger:    logger,
		now:       time.Now,
	}
}

var tracer = otel.Tracer("progress-service")

// Load reads, heals and re-persists the user's document. Healing on every
// read keeps old-schema documents migrating forward without a maintenance
// window; a missing or quarantined document comes back as a fresh default.
func (s *ServiceImpl) Load(ctx context.Context, userKey string) (*models.UserDocument, error) {
	ctx, span := tracer.Start(ctx, "Load")
	defer span.End()
	l := s.logger.With(zap.String("method", "Load"), zap.String("user_key", userKey))

	raw, err := s.store.Get(ctx, userKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		span.SetStatus(codes.Error, "store get failed")
		l.Error("Failed to read document", zap.Error(err))
		return nil, err
	}

	doc := Heal(raw, s.now())
	metrics.Get().DocumentHealsTotal.Add(ctx, 1)

	if err := s.ensureProRoutes(ctx, doc); err != nil {
		l.Warn("Failed to initialize pro routes", zap.Error(err))
	}

	if err := s.Save(ctx, userKey, doc); err != nil {
		span.SetStatus(codes.Error, "persist healed document failed")
		l.Error("Failed to persist healed document", zap.Error(err))
		return nil, err
	}

	metrics.Get().DocumentLoadsTotal.Add(ctx, 1)
	span.SetAttributes(attribute.Int("schema_version", doc.Meta.SchemaVersion))
	return doc, nil
}

// Save marshals and writes the document through the atomic store.
func (s *ServiceImpl) Save(ctx context.Context, userKey string, doc *models.UserDocument) error {
	doc.Meta.UpdatedAt = s.now().Format(time.RFC3339)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document for %s: %w", userKey, err)
	}
	return s.store.Put(ctx, userKey, data)
}

// ensureProRoutes seeds the tracked pro route set the first time a document
// enters pro mode, and opens the broadcast. Skipped once a reward has been
// accepted: the challenge is over until a reset.
func (s *ServiceImpl) ensureProRoutes(ctx context.Context, doc *models.UserDocument) error {
	v3 := doc.Profile.V3
	if v3.Mode != models.ModePro || len(v3.Pro.Routes) > 0 ||
		v3.Pro.RewardState == models.RewardAccepted {
		return nil
	}

	ids, err := s.routeInfo.ProRouteIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	for _, rid := range ids {
		v3.Pro.Routes[rid] = models.ProRoute{Status: models.RouteRunning}
	}
	v3.Pro.Active = true
	Recompute(doc)
	return nil
}

func (s *ServiceImpl) AddRun(ctx context.Context, userKey string, km float64, date, mode, routeID, note string) (*models.UserDocument, error) {
	ctx, span := tracer.Start(ctx, "AddRun")
	defer span.End()
	l := s.logger.With(zap.String("method", "AddRun"), zap.String("user_key", userKey))

	doc, err := s.Load(ctx, userKey)
	if err != nil {
		return nil, err
	}

	if date == "" {
		date = s.today()
	}
	if mode == "" {
		mode = ModeMerge
	}
	if routeID == "" {
		routeID = doc.Profile.V3.Free.SelectedRouteID
	}

	if err := AddRun(doc, km, date, mode, routeID, note); err != nil {
		span.SetStatus(codes.Error, "run rejected")
		return nil, err
	}

	if err := s.Save(ctx, userKey, doc); err != nil {
		l.Error("Failed to save run", zap.Error(err))
		return nil, err
	}

	metrics.Get().RunsRecordedTotal.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("route_id", routeID),
		attribute.Float64("km", km),
	)
	l.Info("Run recorded",
		zap.String("route_id", routeID),
		zap.Float64("km", km),
		zap.String("date", date))
	return doc, nil
}

func (s *ServiceImpl) DeleteRuns(ctx context.Context, userKey, date string, routeID *string) (*models.UserDocument, error) {
	ctx, span := tracer.Start(ctx, "DeleteRuns")
	defer span.End()
	l := s.logger.With(zap.String("method", "DeleteRuns"), zap.String("user_key", userKey))

	doc, err := s.Load(ctx, userKey)
	if err != nil {
		return nil, err
	}

	DeleteRunsByDate(doc, date, routeID)

	if err := s.Save(ctx, userKey, doc); err != nil {
		l.Error("Failed to save after deletion", zap.Error(err))
		return nil, err
	}

	l.Info("Runs deleted", zap.String("date", date))
	return doc, nil
}

// AddRunBroadcast records one daily input against every tracked pro route,
// then runs the completion scan so a route crossing its finish line in this
// submission triggers the reward workflow immediately.
func (s *ServiceImpl) AddRunBroadcast(ctx context.Context, userKey string, km float64) (*models.UserDocument, error) {
	ctx, span := tracer.Start(ctx, "AddRunBroadcast")
	defer span.End()
	l := s.logger.With(zap.String("method", "AddRunBroadcast"), zap.String("user_key", userKey))

	doc, err := s.Load(ctx, userKey)
	if err != nil {
		return nil, err
	}

	today := s.today()
	if err := AddRunBroadcast(doc, km, today); err != nil {
		span.SetStatus(codes.Error, "broadcast rejected")
		return nil, err
	}

	totals, err := s.routeInfo.Totals(ctx)
	if err != nil {
		l.Warn("Route totals unavailable, skipping completion scan", zap.Error(err))
	} else {
		before := doc.Profile.V3.Pro.RewardState
		ScanCompletion(doc, totals, today)
		if before != models.RewardPending && doc.Profile.V3.Pro.RewardState == models.RewardPending {
			metrics.Get().RewardTriggersTotal.Add(ctx, 1)
			l.Info("Reward pending",
				zap.Stringp("finished_route_id", doc.Profile.V3.Pro.FinishedRouteID))
		}
	}

	if err := s.Save(ctx, userKey, doc); err != nil {
		l.Error("Failed to save broadcast", zap.Error(err))
		return nil, err
	}

	metrics.Get().RunsRecordedTotal.Add(ctx, 1)
	span.SetAttributes(attribute.Float64("km", km),
		attribute.Int("routes", len(doc.Profile.V3.Pro.Routes)))
	return doc, nil
}

func (s *ServiceImpl) ChooseReward(ctx context.Context, userKey string, accept bool) (*models.UserDocument, error) {
	ctx, span := tracer.Start(ctx, "ChooseReward")
	defer span.End()
	l := s.logger.With(zap.String("method", "ChooseReward"), zap.String("user_key", userKey))

	doc, err := s.Load(ctx, userKey)
	if err != nil {
		return nil, err
	}

	today := s.today()
	if accept {
		err = AcceptReward(doc, today)
	} else {
		err = DeclineReward(doc, today)
	}
	if err != nil {
		span.SetStatus(codes.Error, "invalid reward transition")
		return nil, err
	}

	if err := s.Save(ctx, userKey, doc); err != nil {
		l.Error("Failed to save reward choice", zap.Error(err))
		return nil, err
	}

	l.Info("Reward choice recorded", zap.Bool("accepted", accept))
	return doc, nil
}

// RewardNarrative returns the completion narrative for the pending reward,
// generating it at most once per pending cycle: a cached narrative on the
// document short-circuits regeneration.
func (s *ServiceImpl) RewardNarrative(ctx context.Context, userKey string) (*models.RewardNarrative, error) {
	ctx, span := tracer.Start(ctx, "RewardNarrative")
	defer span.End()
	l := s.logger.With(zap.String("method", "RewardNarrative"), zap.String("user_key", userKey))

	doc, err := s.Load(ctx, userKey)
	if err != nil {
		return nil, err
	}

	pro := &doc.Profile.V3.Pro
	if pro.RewardState != models.RewardPending || pro.FinishedRouteID == nil {
		return nil, models.ErrRewardNotPending
	}
	if pro.RewardNarrative != nil {
		return pro.RewardNarrative, nil
	}

	meta, err := s.routeInfo.Meta(ctx, *pro.FinishedRouteID)
	if err != nil {
		return nil, err
	}

	narrative, err := s.narrative.RewardNarrative(ctx, *meta)
	if err != nil {
		l.Error("Failed to generate reward narrative", zap.Error(err))
		return nil, err
	}

	pro.RewardNarrative = narrative
	if err := s.Save(ctx, userKey, doc); err != nil {
		return nil, err
	}

	return narrative, nil
}

// SelectRoute changes the free-mode route a run is recorded against by
// default.
func (s *ServiceImpl) SelectRoute(ctx context.Context, userKey, routeID string) (*models.UserDocument, error) {
	doc, err := s.Load(ctx, userKey)
	if err != nil {
		return nil, err
	}

	if _, err := s.routeInfo.Meta(ctx, routeID); err != nil {
		return nil, models.ErrNotFound
	}

	if !doc.Profile.Entitlements.AllRoutes {
		proIDs, err := s.routeInfo.ProRouteIDs(ctx)
		if err != nil {
			return nil, err
		}
		for _, rid := range proIDs {
			if rid == routeID {
				return nil, models.ErrForbidden
			}
		}
	}

	doc.Profile.V3.Free.SelectedRouteID = routeID
	doc.Profile.CurrentRouteID = routeID

	if err := s.Save(ctx, userKey, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *ServiceImpl) today() string {
	return s.now().Format(models.DateLayout)
}
