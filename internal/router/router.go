// Package router wires the HTTP routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/config"
	"github.com/widyaops/confdeploy/internal/handlers"
	"github.com/widyaops/confdeploy/internal/middleware"
	"github.com/widyaops/confdeploy/internal/services"
	"github.com/widyaops/confdeploy/internal/version"
)

// Services bundles the service layer for route construction.
type Services struct {
	Auth     *services.AuthService
	Targets  *services.TargetService
	Deploy   *services.DeployService
	Snapshot *services.SnapshotService
	Audit    *services.AuditService
}

func New(cfg *config.Config, svc Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	prefix := r.Group(cfg.Server.PathPrefix)

	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Audit)
	targetHandler := handlers.NewTargetHandler(svc.Targets, svc.Audit)
	deployHandler := handlers.NewDeployHandler(svc.Targets, svc.Deploy, svc.Audit, cfg.Server.PathPrefix)
	deploymentHandler := handlers.NewDeploymentHandler(svc.Targets, svc.Deploy, svc.Audit)
	streamHandler := handlers.NewStreamHandler(svc.Deploy)
	snapshotHandler := handlers.NewSnapshotHandler(svc.Targets, svc.Snapshot, svc.Audit)
	logTailHandler := handlers.NewLogTailHandler(svc.Targets, svc.Deploy)
	backupHandler := handlers.NewBackupHandler(svc.Targets, svc.Audit)
	systemHandler := handlers.NewSystemHandler(cfg)
	auditHandler := handlers.NewAuditHandler(svc.Audit)
	versionHandler := handlers.NewVersionHandler()

	// Token-authenticated deploy endpoints for CI systems.
	prefix.POST("/deploy/:target_id", deployHandler.Deploy)
	prefix.GET("/deploy/:target_id/status/:deployment_id", deployHandler.Status)
	prefix.GET("/deploy/:target_id/stream/:deployment_id", deployHandler.Stream)

	api := prefix.Group("/api")
	{
		api.GET("/version", versionHandler.Get)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
		})

		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/logout", authHandler.Logout)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.Auth))
		{
			protected.GET("/auth/me", authHandler.Me)
			protected.POST("/auth/totp/enable", authHandler.EnableTOTP)
			protected.POST("/auth/totp/disable", authHandler.DisableTOTP)

			protected.GET("/targets", targetHandler.List)
			protected.POST("/targets", targetHandler.Create)
			protected.GET("/targets/:id", targetHandler.Get)
			protected.PUT("/targets/:id", targetHandler.Update)
			protected.DELETE("/targets/:id", targetHandler.Delete)
			protected.POST("/targets/:id/regenerate-token", targetHandler.RegenerateToken)

			protected.POST("/targets/:id/deploy", deploymentHandler.Deploy)
			protected.GET("/targets/:id/snapshots", snapshotHandler.List)
			protected.POST("/targets/:id/restore", snapshotHandler.Restore)
			protected.GET("/targets/:id/log", logTailHandler.HandleWebSocket)

			protected.GET("/deployments", deploymentHandler.List)
			protected.GET("/deployments/:id", deploymentHandler.Get)
			protected.GET("/deployments/:id/stream", streamHandler.Stream)

			protected.GET("/system/metrics", systemHandler.Metrics)

			admin := protected.Group("")
			admin.Use(middleware.AdminRequired())
			{
				admin.GET("/audit", auditHandler.List)
				admin.GET("/backup/export", backupHandler.Export)
				admin.POST("/backup/import", backupHandler.Import)
			}
		}
	}

	return r
}
