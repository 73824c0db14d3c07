package routes

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/app/domain/narrative"
	"github.com/FACorreiaa/go-runworld/internal/app/domain/progress"
	"github.com/FACorreiaa/go-runworld/internal/app/middleware"
	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

type RouteDetail struct {
	Summary Summary    `json:"summary"`
	Stops   []StopView `json:"stops"`
}

type CityStoryResponse struct {
	RouteID string `json:"route_id"`
	City    string `json:"city"`
	State   string `json:"state"`
	Text    string `json:"text"`
}

type RoutesHandlers struct {
	routeService    Service
	progressService progress.Service
	narrative       narrative.Service
	logger          *zap.Logger
}

func NewRoutesHandlers(routeService Service, progressService progress.Service, narrativeService narrative.Service, logger *zap.Logger) *RoutesHandlers {
	return &RoutesHandlers{
		routeService:    routeService,
		progressService: progressService,
		narrative:       narrativeService,
		logger:          logger,
	}
}

func (h *RoutesHandlers) handleRouteError(c *gin.Context, err error, operation string) {
	h.logger.Error("Route operation failed", zap.String("operation", operation), zap.Error(err))

	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Route not found",
			"details": "Unknown route id",
		})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "City still locked",
			"details": "Keep running. Stories unlock as you pass each city.",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to " + operation,
			"details": "An app error occurred. Please try again later.",
		})
	}
}

// statusRank orders the route list the way the map screen shows it:
// routes being run first, untouched ones next, finished ones last.
func statusRank(s string) int {
	switch s {
	case StatusInProgress:
		return 0
	case StatusNotStarted:
		return 1
	default:
		return 2
	}
}

func sortSummaries(list []Summary) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
			return ra < rb
		}
		switch {
		case a.LastDate != nil && b.LastDate == nil:
			return true
		case a.LastDate == nil && b.LastDate != nil:
			return false
		case a.LastDate != nil && b.LastDate != nil && *a.LastDate != *b.LastDate:
			return *a.LastDate > *b.LastDate
		}
		return a.RouteID < b.RouteID
	})
}

// ListRoutes godoc
// @Summary Catalog of routes with the caller's progress folded in
// @Tags routes
// @Produce json
// @Success 200 {array} routes.Summary
// @Router /api/routes [get]
func (h *RoutesHandlers) ListRoutes(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)
	ctx := c.Request.Context()

	doc, err := h.progressService.Load(ctx, userKey)
	if err != nil {
		h.handleRouteError(c, err, "load progress")
		return
	}
	catalog, err := h.routeService.All(ctx)
	if err != nil {
		h.handleRouteError(c, err, "load routes")
		return
	}

	summaries := make([]Summary, 0, len(catalog))
	for _, route := range catalog {
		summaries = append(summaries, BuildSummary(route, doc))
	}
	sortSummaries(summaries)

	c.JSON(http.StatusOK, summaries)
}

// GetRoute godoc
// @Summary One route with its city stops annotated for the caller
// @Tags routes
// @Produce json
// @Success 200 {object} routes.RouteDetail
// @Router /api/routes/{id} [get]
func (h *RoutesHandlers) GetRoute(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)
	routeID := c.Param("id")
	ctx := c.Request.Context()

	route, err := h.routeService.Get(ctx, routeID)
	if err != nil {
		h.handleRouteError(c, err, "load route")
		return
	}
	doc, err := h.progressService.Load(ctx, userKey)
	if err != nil {
		h.handleRouteError(c, err, "load progress")
		return
	}

	kmDone := progress.RouteKm(doc, routeID)
	c.JSON(http.StatusOK, RouteDetail{
		Summary: BuildSummary(*route, doc),
		Stops:   AnnotateStops(route.Stops, kmDone),
	})
}

// GetStops godoc
// @Summary City stops of a route with unlocked/next/locked states
// @Tags routes
// @Produce json
// @Success 200 {array} routes.StopView
// @Router /api/routes/{id}/stops [get]
func (h *RoutesHandlers) GetStops(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)
	routeID := c.Param("id")
	ctx := c.Request.Context()

	route, err := h.routeService.Get(ctx, routeID)
	if err != nil {
		h.handleRouteError(c, err, "load route")
		return
	}
	doc, err := h.progressService.Load(ctx, userKey)
	if err != nil {
		h.handleRouteError(c, err, "load progress")
		return
	}

	c.JSON(http.StatusOK, AnnotateStops(route.Stops, progress.RouteKm(doc, routeID)))
}

// GetCityStory godoc
// @Summary Story text for one city stop
// @Tags routes
// @Produce json
// @Success 200 {object} routes.CityStoryResponse
// @Router /api/routes/{id}/cities/{city} [get]
func (h *RoutesHandlers) GetCityStory(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)
	routeID := c.Param("id")
	cityName := c.Param("city")
	ctx := c.Request.Context()

	route, err := h.routeService.Get(ctx, routeID)
	if err != nil {
		h.handleRouteError(c, err, "load route")
		return
	}
	doc, err := h.progressService.Load(ctx, userKey)
	if err != nil {
		h.handleRouteError(c, err, "load progress")
		return
	}

	views := AnnotateStops(route.Stops, progress.RouteKm(doc, routeID))
	var view *StopView
	for i := range views {
		if views[i].Name == cityName {
			view = &views[i]
			break
		}
	}
	if view == nil {
		h.handleRouteError(c, models.ErrNotFound, "find city")
		return
	}

	var text string
	switch view.State {
	case StopUnlocked:
		text, err = h.narrative.CityBlurb(ctx, routeID, cityName, route.Meta)
	case StopNext:
		text, err = h.narrative.CityTeaser(ctx, routeID, cityName, route.Meta)
	default:
		h.handleRouteError(c, models.ErrForbidden, "unlock city story")
		return
	}
	if err != nil {
		h.handleRouteError(c, err, "generate city story")
		return
	}

	c.JSON(http.StatusOK, CityStoryResponse{
		RouteID: routeID,
		City:    cityName,
		State:   view.State,
		Text:    text,
	})
}
