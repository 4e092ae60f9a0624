package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/api"
	"github.com/andresuchdata/inventory-analyzer/internal/cache"
	"github.com/andresuchdata/inventory-analyzer/internal/config"
	"github.com/andresuchdata/inventory-analyzer/internal/drive"
	"github.com/andresuchdata/inventory-analyzer/internal/metrics"
	"github.com/andresuchdata/inventory-analyzer/internal/repository"
	"github.com/andresuchdata/inventory-analyzer/internal/repository/postgres"
	"github.com/andresuchdata/inventory-analyzer/internal/service"
	"github.com/andresuchdata/inventory-analyzer/internal/storage"
	"github.com/andresuchdata/inventory-analyzer/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Session store
	repo, closeRepo := newSessionRepository(ctx, cfg)
	defer closeRepo()

	sessionCache, err := cache.NewSessionCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, caching disabled")
		sessionCache = cache.NewNoopSessionCache()
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Log.Warn().Err(err).Str("driver", cfg.Storage.Driver).Msg("Object storage unavailable, archiving disabled")
		store = nil
	}
	archive := storage.NewArchive(store, cfg.Storage.Prefix)

	recorder := metrics.New()
	analyzer := analysis.NewAnalyzer(cfg.Analysis, nil)

	analysisService := service.NewAnalysisService(analyzer, repo, sessionCache, archive, recorder, service.AnalysisOptions{
		SessionTTL:     time.Duration(cfg.Session.TTLHours) * time.Hour,
		MaxUploadBytes: cfg.App.UploadMaxBytes,
	})

	services := &api.Services{
		AnalysisService: analysisService,
		Metrics:         recorder,
	}

	// Google Drive import is optional
	if cfg.Drive.CredentialsJSON != "" {
		driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Google Drive unavailable, drive routes disabled")
		} else {
			importService := drive.NewImportService(driveService, analysisService, analysisService.MaxUploadBytes())
			services.Drive = drive.NewHandler(driveService, importService, cfg.Drive.FolderID).Router()
		}
	}

	go analysisService.RunCleanup(ctx, time.Duration(cfg.Session.CleanupIntervalMinutes)*time.Minute)

	// Initialize HTTP server
	router := api.NewRouter(services, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("session_store", cfg.Session.Store).
			Bool("cache", cfg.Cache.Enabled).
			Bool("archive", archive.Enabled()).
			Bool("drive", services.Drive != nil).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}

func newSessionRepository(ctx context.Context, cfg *config.Config) (repository.SessionRepository, func()) {
	if cfg.Session.Store != "postgres" {
		return repository.NewMemorySessionRepository(), func() {}
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to prepare session schema")
	}
	return postgres.NewSessionRepository(db), func() { db.Close() }
}
