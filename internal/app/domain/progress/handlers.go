package progress

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/app/middleware"
	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

type AddRunRequest struct {
	Km      float64 `json:"km" binding:"required"`
	Date    string  `json:"date"`
	Mode    string  `json:"mode"`
	RouteID string  `json:"route_id"`
	Note    string  `json:"note"`
}

type BroadcastRequest struct {
	Km float64 `json:"km" binding:"required"`
}

type RewardChoiceRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

type SelectRouteRequest struct {
	RouteID string `json:"route_id" binding:"required"`
}

type ProgressHandlers struct {
	progressService Service
	logger          *zap.Logger
}

func NewProgressHandlers(progressService Service, logger *zap.Logger) *ProgressHandlers {
	return &ProgressHandlers{
		progressService: progressService,
		logger:          logger,
	}
}

// handleProgressError maps domain sentinels to consistent HTTP responses.
func (h *ProgressHandlers) handleProgressError(c *gin.Context, err error, operation string) {
	h.logger.Error("Progress operation failed", zap.String("operation", operation), zap.Error(err))

	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid distance",
			"details": "km must be greater than zero",
		})
	case errors.Is(err, models.ErrInvalidMode):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid mode",
			"details": "mode must be merge or append",
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Route not found",
			"details": "The requested route does not exist",
		})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "Route locked",
			"details": "This route requires an active explorer pass",
		})
	case errors.Is(err, models.ErrRewardNotPending):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "No pending reward",
			"details": "There is no reward choice waiting for this profile",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to " + operation,
			"details": "An app error occurred. Please try again later.",
		})
	}
}

// GetProgress godoc
// @Summary Get the caller's full progress document
// @Tags progress
// @Produce json
// @Success 200 {object} models.UserDocument
// @Router /api/progress [get]
func (h *ProgressHandlers) GetProgress(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)

	doc, err := h.progressService.Load(c.Request.Context(), userKey)
	if err != nil {
		h.handleProgressError(c, err, "load progress")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// AddRun godoc
// @Summary Record a run on a single route
// @Tags progress
// @Accept json
// @Produce json
// @Success 200 {object} models.UserDocument
// @Router /api/runs [post]
func (h *ProgressHandlers) AddRun(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)

	var req AddRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	doc, err := h.progressService.AddRun(c.Request.Context(), userKey,
		req.Km, req.Date, req.Mode, req.RouteID, req.Note)
	if err != nil {
		h.handleProgressError(c, err, "record run")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteRuns godoc
// @Summary Delete runs on a date, optionally scoped to one route
// @Tags progress
// @Produce json
// @Success 200 {object} models.UserDocument
// @Router /api/runs [delete]
func (h *ProgressHandlers) DeleteRuns(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)

	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing date", "details": "date query parameter is required"})
		return
	}
	var routeID *string
	if rid := c.Query("route_id"); rid != "" {
		routeID = &rid
	}

	doc, err := h.progressService.DeleteRuns(c.Request.Context(), userKey, date, routeID)
	if err != nil {
		h.handleProgressError(c, err, "delete runs")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// AddRunBroadcast godoc
// @Summary Record one daily distance across every tracked pro route
// @Tags progress
// @Accept json
// @Produce json
// @Success 200 {object} models.UserDocument
// @Router /api/runs/broadcast [post]
func (h *ProgressHandlers) AddRunBroadcast(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)

	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	doc, err := h.progressService.AddRunBroadcast(c.Request.Context(), userKey, req.Km)
	if err != nil {
		h.handleProgressError(c, err, "broadcast run")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// ChooseReward godoc
// @Summary Accept or decline the pending completion reward
// @Tags progress
// @Accept json
// @Produce json
// @Success 200 {object} models.UserDocument
// @Router /api/reward/choice [post]
func (h *ProgressHandlers) ChooseReward(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)

	var req RewardChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Accept == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": "accept must be true or false"})
		return
	}

	doc, err := h.progressService.ChooseReward(c.Request.Context(), userKey, *req.Accept)
	if err != nil {
		h.handleProgressError(c, err, "record reward choice")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetRewardNarrative godoc
// @Summary Get the completion narrative for the pending reward
// @Tags progress
// @Produce json
// @Success 200 {object} models.RewardNarrative
// @Router /api/reward/narrative [get]
func (h *ProgressHandlers) GetRewardNarrative(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)

	narrative, err := h.progressService.RewardNarrative(c.Request.Context(), userKey)
	if err != nil {
		h.handleProgressError(c, err, "generate reward narrative")
		return
	}
	c.JSON(http.StatusOK, narrative)
}

// SelectRoute godoc
// @Summary Change the free-mode route runs are recorded against
// @Tags progress
// @Accept json
// @Produce json
// @Success 200 {object} models.UserDocument
// @Router /api/route/selection [put]
func (h *ProgressHandlers) SelectRoute(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)

	var req SelectRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	doc, err := h.progressService.SelectRoute(c.Request.Context(), userKey, req.RouteID)
	if err != nil {
		h.handleProgressError(c, err, "select route")
		return
	}
	c.JSON(http.StatusOK, doc)
}
