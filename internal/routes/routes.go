package routes

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/app/domain/auth"
	"github.com/FACorreiaa/go-runworld/internal/app/domain/invites"
	"github.com/FACorreiaa/go-runworld/internal/app/domain/narrative"
	"github.com/FACorreiaa/go-runworld/internal/app/domain/progress"
	routespkg "github.com/FACorreiaa/go-runworld/internal/app/domain/routes"
	"github.com/FACorreiaa/go-runworld/internal/app/middleware"
	"github.com/FACorreiaa/go-runworld/internal/app/models"
	"github.com/FACorreiaa/go-runworld/internal/pkg/config"
	"github.com/FACorreiaa/go-runworld/internal/pkg/store"
)

type AppHandlers struct {
	Progress *progress.ProgressHandlers
	Routes   *routespkg.RoutesHandlers
	Invites  *invites.InvitesHandlers
}

// Setup wires services and handlers onto the router.
func Setup(r *gin.Engine, st store.Store, cfg *config.Config, log *zap.Logger) {
	handlers := setupDependencies(st, cfg, log)
	setupRouter(r, handlers, cfg, log)
}

func setupDependencies(st store.Store, cfg *config.Config, log *zap.Logger) *AppHandlers {
	ctx := context.Background()

	routeService := routespkg.NewServiceImpl(cfg.RoutesDir, log)
	narrativeService := narrative.NewServiceImpl(ctx, cfg.GeminiAPIKey, log)
	progressService := progress.NewService(st, routeService, narrativeService, log)
	inviteService := invites.NewServiceImpl(cfg.InvitesPath, cfg.Storage.LockTimeout, progressService, log)

	seedInvites(ctx, inviteService, log)

	return &AppHandlers{
		Progress: progress.NewProgressHandlers(progressService, log),
		Routes:   routespkg.NewRoutesHandlers(routeService, progressService, narrativeService, log),
		Invites:  invites.NewInvitesHandlers(inviteService, log),
	}
}

// seedInvites pre-loads codes from RW_INVITE_SEED on an empty registry.
// Failures are logged and ignored; the admin API can issue codes later.
func seedInvites(ctx context.Context, svc invites.Service, log *zap.Logger) {
	raw := os.Getenv("RW_INVITE_SEED")
	if raw == "" {
		return
	}

	seed := models.InviteTable{}
	issuedAt := time.Now().UTC().Format("2006-01-02")
	for _, code := range strings.Split(raw, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		seed[code] = models.InviteRecord{Status: models.InviteNew, IssuedAt: issuedAt}
	}
	if len(seed) == 0 {
		return
	}

	if err := svc.Seed(ctx, seed); err != nil {
		log.Warn("Invite seeding failed", zap.Error(err))
		return
	}
	log.Info("Invite registry seeded", zap.Int("codes", len(seed)))
}

func setupRouter(r *gin.Engine, h *AppHandlers, cfg *config.Config, log *zap.Logger) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	jwtConfig := auth.JWTConfig{
		SecretKey:       cfg.Auth.JWTSecret,
		TokenExpiration: cfg.Auth.TokenExpiration,
		Logger:          log,
	}

	api := r.Group("/api")
	api.Use(auth.SessionMiddleware(jwtConfig))
	{
		api.GET("/progress", h.Progress.GetProgress)
		api.POST("/runs", h.Progress.AddRun)
		api.DELETE("/runs", h.Progress.DeleteRuns)
		api.POST("/runs/broadcast", h.Progress.AddRunBroadcast)
		api.POST("/reward/choice", h.Progress.ChooseReward)
		api.GET("/reward/narrative", h.Progress.GetRewardNarrative)
		api.POST("/route/selection", h.Progress.SelectRoute)

		api.GET("/routes", h.Routes.ListRoutes)
		api.GET("/routes/:id", h.Routes.GetRoute)
		api.GET("/routes/:id/stops", h.Routes.GetStops)
		api.GET("/routes/:id/cities/:city", h.Routes.GetCityStory)

		api.POST("/invites/activate", h.Invites.Activate)
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminRequired(cfg.AdminToken))
	{
		admin.POST("/invites", h.Invites.Issue)
		admin.DELETE("/invites/:code", h.Invites.Revoke)
		admin.GET("/invites/stats", h.Invites.Stats)
	}
}
