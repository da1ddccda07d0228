package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/api/handlers"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/api/middleware"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/authz"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/identity"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/services"
	"github.com/rcolomer-cos/E-QMS-sub006/pkg/metrics"
	"go.uber.org/zap"
)

type Router struct {
	engine         *gin.Engine
	logger         *zap.Logger
	metrics        *metrics.MetricsCollector
	authHandler    *handlers.AuthHandler
	docHandler     *handlers.DocumentHandler
	tokenHandler   *handlers.TokenHandler
	authMiddleware *middleware.AuthMiddleware
	auditorGateway *middleware.AuditorMiddleware
	reqMiddleware  *middleware.RequestMiddleware
}

func NewRouter(
	logger *zap.Logger,
	metricsCollector *metrics.MetricsCollector,
	documentService *services.DocumentService,
	tokenService *services.TokenService,
	accessLogService *services.AccessLogService,
	sessionService *identity.SessionService,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger)
	authMiddleware := middleware.NewAuthMiddleware(sessionService, logger)
	auditorGateway := middleware.NewAuditorMiddleware(tokenService, accessLogService, logger)

	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.RecoverPanic())

	return &Router{
		engine:         engine,
		logger:         logger,
		metrics:        metricsCollector,
		authHandler:    handlers.NewAuthHandler(sessionService, logger),
		docHandler:     handlers.NewDocumentHandler(documentService, logger),
		tokenHandler:   handlers.NewTokenHandler(tokenService, accessLogService, logger),
		authMiddleware: authMiddleware,
		auditorGateway: auditorGateway,
		reqMiddleware:  reqMiddleware,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "name": "e-qms"})
	})

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"counters":  r.metrics.GetCounters(),
			"latencies": r.metrics.GetLatencies(),
		})
	})

	apiGroup := r.engine.Group("/api")

	apiGroup.POST("/auth/login", r.reqMiddleware.LoginThrottle(), r.authHandler.Login)
	apiGroup.POST("/auth/logout", r.authMiddleware.RequireAuth(), r.authHandler.Logout)

	// Document routes accept either an identity credential or an auditor
	// token; the gateway decides per request and the permission checks run
	// the same way regardless.
	docs := apiGroup.Group("/documents")
	docs.Use(middleware.FlexibleAuth(r.auditorGateway, r.authMiddleware))
	{
		docs.POST("", middleware.RequirePermission(authz.ActionCreate), r.docHandler.Create)
		docs.GET("", r.docHandler.List)

		withDoc := docs.Group("/:id")
		withDoc.Use(r.docHandler.LoadDocument())
		{
			withDoc.GET("", middleware.RequirePermission(authz.ActionView), r.docHandler.Get)
			withDoc.PUT("", middleware.RequirePermission(authz.ActionEdit), r.docHandler.Update)
			withDoc.DELETE("", middleware.RequirePermission(authz.ActionDelete), r.docHandler.Delete)
			withDoc.POST("/submit", middleware.RequirePermission(authz.ActionEdit), r.docHandler.SubmitForReview)
			withDoc.POST("/approve", middleware.RequirePermission(authz.ActionApprove), r.docHandler.Approve)
			withDoc.POST("/reject", middleware.RequirePermission(authz.ActionReject), r.docHandler.Reject)
			withDoc.POST("/request-changes", middleware.RequirePermission(authz.ActionRequestChanges), r.docHandler.RequestChanges)
			withDoc.POST("/version", middleware.RequirePermission(authz.ActionView), r.docHandler.CreateVersion)
			withDoc.GET("/revisions", middleware.RequirePermission(authz.ActionView), r.docHandler.ListRevisions)
		}
	}

	admin := apiGroup.Group("")
	admin.Use(r.authMiddleware.RequireAuth(), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperuser))
	{
		admin.POST("/auditor-tokens", r.tokenHandler.Create)
		admin.GET("/auditor-tokens", r.tokenHandler.List)
		admin.POST("/auditor-tokens/:id/revoke", r.tokenHandler.Revoke)
		admin.GET("/access-logs", r.tokenHandler.ListAccessLogs)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) Run(addr string) error {
	r.logger.Info("Starting HTTP server", zap.String("address", addr))
	return r.engine.Run(addr)
}
