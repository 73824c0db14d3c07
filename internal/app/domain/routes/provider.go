package routes

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

const catalogCacheKey = "routes:catalog"

// Route is one catalog entry: the metadata file plus its normalized city
// stops. Stops are normalized once at load time so every consumer sees the
// same monotonic km sequence.
type Route struct {
	ID    string
	Meta  models.RouteMeta
	Pro   bool
	Stops []CityStop
}

var _ Service = (*ServiceImpl)(nil)

// Service is the route-metadata catalog. It is the single source of truth
// for route total distances; per-user documents never are.
type Service interface {
	All(ctx context.Context) (map[string]Route, error)
	Get(ctx context.Context, routeID string) (*Route, error)
	Totals(ctx context.Context) (map[string]float64, error)
	Meta(ctx context.Context, routeID string) (*models.RouteMeta, error)
	ProRouteIDs(ctx context.Context) ([]string, error)
	FreeRouteIDs(ctx context.Context) ([]string, error)
}

type ServiceImpl struct {
	dir    string
	cache  *cache.Cache
	logger *zap.Logger
}

func NewServiceImpl(dir string, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		dir:    dir,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

// All returns the full catalog, loading every <dir>/<route_id>/meta.json
// concurrently on a cache miss. A directory without a meta.json is skipped,
// not an error: route folders also hold generator output.
func (s *ServiceImpl) All(ctx context.Context) (map[string]Route, error) {
	if cached, found := s.cache.Get(catalogCacheKey); found {
		return cached.(map[string]Route), nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read routes dir %s", s.dir)
	}

	var (
		g, gctx = errgroup.WithContext(ctx)
		results = make(chan Route, len(entries))
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rid := entry.Name()
		g.Go(func() error {
			route, err := s.loadOne(gctx, rid)
			if err != nil {
				return err
			}
			if route != nil {
				results <- *route
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	catalog := make(map[string]Route, len(entries))
	for route := range results {
		catalog[route.ID] = route
	}

	s.cache.Set(catalogCacheKey, catalog, cache.DefaultExpiration)
	s.logger.Info("Route catalog loaded", zap.Int("routes", len(catalog)))
	return catalog, nil
}

func (s *ServiceImpl) loadOne(ctx context.Context, rid string) (*Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metaPath := filepath.Join(s.dir, rid, "meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrapf(err, "read route meta %s", metaPath)
	}

	var file routeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, pkgerrors.Wrapf(err, "parse route meta %s", metaPath)
	}

	return &Route{
		ID:    rid,
		Meta:  file.toMeta(),
		Pro:   file.Pro,
		Stops: buildStops(file.KeyCities, file.TotalKm),
	}, nil
}

func (s *ServiceImpl) Get(ctx context.Context, routeID string) (*Route, error) {
	catalog, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	route, ok := catalog[routeID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &route, nil
}

func (s *ServiceImpl) Totals(ctx context.Context) (map[string]float64, error) {
	catalog, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64, len(catalog))
	for rid, route := range catalog {
		totals[rid] = route.Meta.TotalKm
	}
	return totals, nil
}

func (s *ServiceImpl) Meta(ctx context.Context, routeID string) (*models.RouteMeta, error) {
	route, err := s.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}
	meta := route.Meta
	return &meta, nil
}

func (s *ServiceImpl) ProRouteIDs(ctx context.Context) ([]string, error) {
	return s.idsWhere(ctx, true)
}

func (s *ServiceImpl) FreeRouteIDs(ctx context.Context) ([]string, error) {
	return s.idsWhere(ctx, false)
}

func (s *ServiceImpl) idsWhere(ctx context.Context, pro bool) ([]string, error) {
	catalog, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(catalog))
	for rid, route := range catalog {
		if route.Pro == pro {
			ids = append(ids, rid)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// routeFile is the on-disk meta.json shape.
type routeFile struct {
	Name       string             `json:"name"`
	TotalKm    float64            `json:"total_km"`
	Pro        bool               `json:"pro"`
	KeyCities  []cityRef          `json:"key_cities"`
	Milestones []models.Milestone `json:"milestones"`
}

func (f routeFile) toMeta() models.RouteMeta {
	meta := models.RouteMeta{
		Name:       f.Name,
		TotalKm:    f.TotalKm,
		Milestones: f.Milestones,
	}
	for _, c := range f.KeyCities {
		meta.KeyCities = append(meta.KeyCities, c.Name)
	}
	return meta
}

// cityRef accepts both legacy shapes: a bare city name string, or an object
// with a name and an optional km marker.
type cityRef struct {
	Name string   `json:"name"`
	Km   *float64 `json:"km"`
}

func (c *cityRef) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		c.Name = name
		return nil
	}

	type alias cityRef
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*c = cityRef(a)
	return nil
}
