package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rcolomer-cos/E-QMS-sub006/internal/api"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/config"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/identity"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/notify"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/services"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/utils"
	"github.com/rcolomer-cos/E-QMS-sub006/pkg/logger"
	"github.com/rcolomer-cos/E-QMS-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg := config.InitializeDefaultConfig()

	zapLogger, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	config.LogConfig(zapLogger)

	database, err := db.Initialize(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}

	metricsCollector := metrics.NewMetricsCollector()

	if err := seedDatabase(database, zapLogger); err != nil {
		zapLogger.Fatal("Failed to seed database", zap.Error(err))
	}

	dispatcher := notify.NewLogDispatcher(zapLogger)
	documentService := services.NewDocumentService(database, dispatcher, zapLogger, metricsCollector)
	tokenService := services.NewTokenService(database, zapLogger, metricsCollector)
	tokenService.StartCleanup(cfg.Auditor.CleanupInterval, cfg.Auditor.TokenRetention)
	accessLogService := services.NewAccessLogService(database, zapLogger, cfg.Auditor.AccessLogBuffer)
	sessionService := identity.NewSessionService(database, zapLogger, cfg.Security.SessionTimeout)

	router := api.NewRouter(zapLogger, metricsCollector, documentService, tokenService, accessLogService, sessionService)
	router.SetupRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zapLogger.Info("Server started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		zapLogger.Warn("Server shutdown interrupted", zap.Error(err))
	}

	tokenService.Stop()
	sessionService.Stop()
	accessLogService.Stop()

	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
	zapLogger.Info("Server gracefully stopped")
}

// seedDatabase provisions the bootstrap superuser and a couple of working
// accounts on an empty database.
func seedDatabase(database *gorm.DB, logger *zap.Logger) error {
	var count int64
	database.Model(&models.User{}).Count(&count)
	if count > 0 {
		logger.Info("Database already seeded, skipping")
		return nil
	}
	logger.Info("Seeding database with initial users")

	password := os.Getenv("EQMS_BOOTSTRAP_PASSWORD")
	if password == "" {
		password = "change-me-on-first-login"
	}
	hash, err := utils.EncryptPassword(password)
	if err != nil {
		return err
	}

	users := []models.User{
		{Username: "sysadmin", Email: "sysadmin@example.org", PasswordHash: hash, RoleTags: "SUPERUSER", FirstName: "System", LastName: "Admin", Department: "IT", ActiveStatus: true},
		{Username: "qa.manager", Email: "qa.manager@example.org", PasswordHash: hash, RoleTags: "MANAGER", FirstName: "Quality", LastName: "Manager", Department: "Quality", ActiveStatus: true},
		{Username: "qa.editor", Email: "qa.editor@example.org", PasswordHash: hash, RoleTags: "QUALITY", FirstName: "Quality", LastName: "Editor", Department: "Quality", ActiveStatus: true},
	}

	if err := database.Create(&users).Error; err != nil {
		return err
	}
	logger.Info("Created initial users", zap.Int("count", len(users)))
	return nil
}
