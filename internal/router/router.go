package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/handler"
	"github.com/civica/membership-backend/internal/metrics"
	"github.com/civica/membership-backend/internal/middleware"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Member  *handler.MemberHandler
	Mandate *handler.MandateHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler

	// Metrics is optional; without it /metrics is not served.
	Metrics *metrics.Metrics
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(middleware.SecureHeaders(cfg.GinMode == gin.ReleaseMode))
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(handlers.Metrics.Middleware())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper:   middleware.SkipPaths("/health", "/metrics", "/ws/"),
	}))

	if cfg.RateLimitPerMinute > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		limiter.StartCleanup(nil)
		router.Use(limiter.Middleware())
	}

	// Health check.
	router.GET("/health", handlers.System.Health)
	if handlers.Metrics != nil {
		router.GET("/metrics", gin.WrapH(handlers.Metrics.Handler()))
	}

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	authAPI := router.Group("/api/v1/auth")
	{
		authAPI.POST("/login", handlers.Auth.Login)
		authAPI.GET("/me", middleware.RequireJWT(auth), handlers.Auth.Me)
	}

	// ─── 2. Member Group (JWT + RBAC) ──────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireJWT(auth), middleware.NoStore())
	{
		api.GET("/members",
			middleware.RequirePermission(model.PermissionMembersRead),
			handlers.Member.ListMembers,
		)
		api.POST("/members",
			middleware.RequirePermission(model.PermissionMembersWrite),
			handlers.Member.CreateMember,
		)
		api.GET("/members/:id",
			middleware.RequirePermission(model.PermissionMembersRead),
			handlers.Member.GetMember,
		)
		api.PUT("/members/:id",
			middleware.RequirePermission(model.PermissionMembersWrite),
			handlers.Member.UpdateMember,
		)

		// Mandates
		api.GET("/members/:id/mandates",
			middleware.RequirePermission(model.PermissionMandatesRead),
			handlers.Mandate.ListMandates,
		)
		api.POST("/members/:id/mandates",
			middleware.RequirePermission(model.PermissionMandatesWrite),
			handlers.Mandate.CreateMandate,
		)
		api.GET("/members/:id/mandates/notifications",
			middleware.RequirePermission(model.PermissionNotificationsRead),
			handlers.Mandate.ListNotifications,
		)
		api.GET("/members/:id/mandates/:mandate_id",
			middleware.RequirePermission(model.PermissionMandatesRead),
			handlers.Mandate.GetMandate,
		)
		api.PUT("/members/:id/mandates/:mandate_id",
			middleware.RequirePermission(model.PermissionMandatesWrite),
			handlers.Mandate.UpdateMandate,
		)
		api.DELETE("/members/:id/mandates/:mandate_id",
			middleware.RequirePermission(model.PermissionMandatesDelete),
			handlers.Mandate.DeleteMandate,
		)
	}

	// ─── 3. WebSocket Group (query token auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(auth))
	{
		ws.GET("/members/:id/notifications", handlers.WS.NotificationStream)
	}

	return router
}
