package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unidocs-api/internal/middleware"
	"github.com/noah-isme/unidocs-api/internal/models"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Auth      *AuthHandler
	Documents *DocumentHandler
	Bodies    *UniversityBodyHandler
	Users     *UserHandler
	Metrics   *MetricsHandler
}

// RegisterRoutes mounts the API under prefix and the operational endpoints at
// the root. Authorization beyond authentication lives in the services; the
// role gates here only short-circuit obviously ineligible callers.
func RegisterRoutes(r *gin.Engine, prefix string, tokens middleware.Authenticator, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	requireAuth := middleware.JWT(tokens)
	optionalAuth := middleware.OptionalJWT(tokens)
	reviewers := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	superAdmins := middleware.RequireRoles(models.RoleSuperAdmin)

	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/verify-token", requireAuth, h.Auth.VerifyToken)
	auth.POST("/logout", requireAuth, h.Auth.Logout)
	auth.POST("/change-password", requireAuth, h.Auth.ChangePassword)
	auth.GET("/me", requireAuth, h.Auth.Me)
	auth.PUT("/me", requireAuth, h.Auth.UpdateMe)

	docs := api.Group("/documents")
	docs.GET("", optionalAuth, h.Documents.List)
	docs.GET("/shared/:token", h.Documents.Shared)
	docs.GET("/pending", requireAuth, reviewers, h.Documents.Pending)
	docs.GET("/export", requireAuth, h.Documents.Export)
	docs.GET("/stats", requireAuth, h.Documents.Stats)
	docs.GET("/:id", optionalAuth, h.Documents.Get)
	docs.GET("/:id/download", optionalAuth, h.Documents.Download)
	docs.GET("/:id/download-url", requireAuth, h.Documents.DownloadURL)
	docs.POST("", requireAuth, h.Documents.Upload)
	docs.PUT("/:id", requireAuth, h.Documents.Update)
	docs.DELETE("/:id", requireAuth, h.Documents.Delete)
	docs.POST("/:id/approve", requireAuth, reviewers, h.Documents.Approve)
	docs.POST("/:id/reject", requireAuth, reviewers, h.Documents.Reject)

	bodies := api.Group("/university-bodies")
	bodies.GET("", optionalAuth, h.Bodies.List)
	bodies.GET("/:id", optionalAuth, h.Bodies.Get)
	bodies.POST("", requireAuth, superAdmins, h.Bodies.Create)
	bodies.PUT("/:id", requireAuth, superAdmins, h.Bodies.Update)
	bodies.DELETE("/:id", requireAuth, superAdmins, h.Bodies.Delete)

	users := api.Group("/users", requireAuth, superAdmins)
	users.GET("", h.Users.List)
	users.GET("/:id", h.Users.Get)
	users.POST("", h.Users.Create)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)
	users.PATCH("/:id/toggle-status", h.Users.ToggleStatus)
}
