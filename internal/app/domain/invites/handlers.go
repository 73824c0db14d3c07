package invites

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/app/middleware"
	"github.com/FACorreiaa/go-runworld/internal/app/models"
	"github.com/FACorreiaa/go-runworld/internal/pkg/filelock"
)

type ActivateRequest struct {
	Code string `json:"code" binding:"required"`
}

type IssueRequest struct {
	Count    int    `json:"count" binding:"required"`
	Prefix   string `json:"prefix" binding:"required"`
	IssuedTo string `json:"issued_to"`
}

type InvitesHandlers struct {
	inviteService Service
	logger        *zap.Logger
}

func NewInvitesHandlers(inviteService Service, logger *zap.Logger) *InvitesHandlers {
	return &InvitesHandlers{
		inviteService: inviteService,
		logger:        logger,
	}
}

// handleInviteError keeps the failure modes distinct: a user staring at
// "activation failed" cannot tell a typo from a burned code.
func (h *InvitesHandlers) handleInviteError(c *gin.Context, err error, operation string) {
	h.logger.Error("Invite operation failed", zap.String("operation", operation), zap.Error(err))

	switch {
	case errors.Is(err, models.ErrInviteNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Invite code does not exist",
			"details": "Check the code for typos",
		})
	case errors.Is(err, models.ErrInviteUsed):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Invite code already used",
			"details": "Each code can be activated exactly once",
		})
	case errors.Is(err, models.ErrInviteRevoked):
		c.JSON(http.StatusGone, gin.H{
			"error":   "Invite code revoked",
			"details": "This code is no longer valid",
		})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
	case errors.Is(err, filelock.ErrTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Registry busy",
			"details": "Several activations are in flight. Please retry in a moment.",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to " + operation,
			"details": "An app error occurred. Please try again later.",
		})
	}
}

// Activate godoc
// @Summary Consume an invite code and grant the explorer pass
// @Tags invites
// @Accept json
// @Produce json
// @Success 200 {object} models.UserDocument
// @Router /api/invites/activate [post]
func (h *InvitesHandlers) Activate(c *gin.Context) {
	userKey := middleware.GetUserKeyFromContext(c)

	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	doc, err := h.inviteService.Activate(c.Request.Context(), userKey, req.Code)
	if err != nil {
		h.handleInviteError(c, err, "activate invite")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Issue godoc
// @Summary Issue fresh invite codes (admin)
// @Tags invites
// @Accept json
// @Produce json
// @Success 201 {object} map[string][]string
// @Router /api/admin/invites [post]
func (h *InvitesHandlers) Issue(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	codes, err := h.inviteService.Issue(c.Request.Context(), req.Count, req.Prefix, req.IssuedTo)
	if err != nil {
		h.handleInviteError(c, err, "issue invites")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"codes": codes})
}

// Revoke godoc
// @Summary Revoke an invite code (admin)
// @Tags invites
// @Produce json
// @Success 204
// @Router /api/admin/invites/{code} [delete]
func (h *InvitesHandlers) Revoke(c *gin.Context) {
	code := c.Param("code")

	if err := h.inviteService.Revoke(c.Request.Context(), code); err != nil {
		h.handleInviteError(c, err, "revoke invite")
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats godoc
// @Summary Invite inventory by status (admin)
// @Tags invites
// @Produce json
// @Success 200 {object} models.InviteStats
// @Router /api/admin/invites/stats [get]
func (h *InvitesHandlers) Stats(c *gin.Context) {
	stats, err := h.inviteService.Stats(c.Request.Context())
	if err != nil {
		h.handleInviteError(c, err, "count invites")
		return
	}
	c.JSON(http.StatusOK, stats)
}
