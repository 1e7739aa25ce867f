// Package api - Router setup
package api

import (
	"time"

	"github.com/aethra/strata/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, schemaHandler *SchemaHandler, authHandler *AuthHandler) *gin.Engine {
	r := gin.Default()

	// CORS configuration
	// When credentials are used, specific origins must be provided (not *)
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Site-ID", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsConfig))

	// Health check (no auth required)
	r.GET("/api/health", handler.Health)

	// ==========================================================================
	// AUTH API - Authentication endpoints (no auth required)
	// ==========================================================================
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/refresh", authHandler.RefreshToken)
	}

	// Authenticated auth endpoints
	authProtected := r.Group("/auth")
	authProtected.Use(handler.UserMiddleware())
	authProtected.Use(handler.RequireAuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
		authProtected.POST("/change-password", authHandler.ChangePassword)
		authProtected.POST("/logout", authHandler.Logout)
	}

	// ==========================================================================
	// ADMIN API - Model administration for a site
	// Requires authentication plus site admin (or superuser) standing
	// ==========================================================================
	admin := r.Group("/admin")
	admin.Use(handler.SiteMiddleware())
	admin.Use(handler.UserMiddleware())
	admin.Use(handler.RequireAuthMiddleware())
	admin.Use(handler.RequireSiteAdminMiddleware())
	{
		// Field type catalog and record owner kinds
		admin.GET("/field-types", schemaHandler.ListFieldTypes)
		admin.GET("/owner-kinds", schemaHandler.ListOwnerKinds)

		// Model management
		admin.GET("/models", schemaHandler.ListModels)
		admin.POST("/models", schemaHandler.CreateModel)
		admin.POST("/models/import", schemaHandler.ImportModel)
		admin.GET("/models/:model", schemaHandler.GetModel)
		admin.DELETE("/models/:model", schemaHandler.DeleteModel)
		admin.POST("/models/:model/deactivate", schemaHandler.DeactivateModel)

		// Versioning
		admin.GET("/models/:model/versions", schemaHandler.GetVersionHistory)
		admin.POST("/models/:model/versions", schemaHandler.CreateVersion)
		admin.GET("/models/:model/versions/:version", schemaHandler.GetModelVersion)
		admin.POST("/models/:model/rollback", schemaHandler.RollbackVersion)

		// Extensions
		admin.POST("/models/:model/apply-extension", schemaHandler.ApplyExtension)
		admin.GET("/models/:model/extension", schemaHandler.GetExtensionStatus)

		// Permissions
		admin.GET("/models/:model/permissions", schemaHandler.ListGrants)
		admin.POST("/models/:model/permissions", schemaHandler.CreateGrant)
		admin.DELETE("/permissions/:id", schemaHandler.RevokeGrant)

		// Export
		admin.GET("/models/:model/export", schemaHandler.ExportModel)
	}

	// ==========================================================================
	// SITE API - Record operations, gated by the permission evaluator
	// ==========================================================================
	api := r.Group("/api")
	api.Use(handler.SiteMiddleware())
	api.Use(handler.UserMiddleware())
	api.Use(handler.RequireAuthMiddleware())
	{
		// UI schemas
		api.GET("/models/:model/form", handler.GetFormSchema)
		api.GET("/models/:model/display-fields", handler.GetDisplayFields)

		// Records
		api.GET("/models/:model/records", handler.ListRecords)
		api.POST("/models/:model/records", handler.CreateRecord)
		api.GET("/models/:model/records/:id", handler.GetRecord)
		api.PUT("/models/:model/records/:id", handler.UpdateRecord)
		api.DELETE("/models/:model/records/:id", handler.DeleteRecord)
		api.POST("/models/:model/records/:id/publish", handler.PublishRecord)
	}

	return r
}
