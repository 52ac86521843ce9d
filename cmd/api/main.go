package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sjperalta/clients-api/docs" // Swagger docs
	"github.com/sjperalta/clients-api/internal/config"
	"github.com/sjperalta/clients-api/internal/database"
	"github.com/sjperalta/clients-api/internal/handlers"
	"github.com/sjperalta/clients-api/internal/jobs"
	"github.com/sjperalta/clients-api/internal/metrics"
	"github.com/sjperalta/clients-api/internal/middleware"
	"github.com/sjperalta/clients-api/internal/repository"
	"github.com/sjperalta/clients-api/internal/services"
	"github.com/sjperalta/clients-api/internal/storage"
	"github.com/sjperalta/clients-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Clients API
// @version 1.0
// @description REST API for registering clients and their identity documents

// @host localhost:8080
// @BasePath /api
// @schemes http
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment)

	// Initialize Sentry (GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	// Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Initialize storage
	store, local, err := newStorage(cfg, m)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "driver", cfg.StorageDriver)
		os.Exit(1)
	}
	logger.Info("Initialized storage", "driver", cfg.StorageDriver)

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, store, cfg, m)

	// Initialize handlers
	h := handlers.NewHandlers(svcs, cfg, sqlDB, worker)

	// Setup router
	router := setupRouter(h, cfg, reg)
	if local != nil {
		router.Static(storage.UploadsRoute, local.BasePath())
	}

	// Create HTTP server. Create waits on the validator and two uploads.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Drain pending audit writes before closing the pool
	worker.Shutdown()
	logger.Info("Background worker stopped")

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

// newStorage builds the configured object storage. The local driver is also
// returned on its own so its directory can be served.
func newStorage(cfg *config.Config, m *metrics.Metrics) (storage.ObjectStorage, *storage.LocalStorage, error) {
	if cfg.StorageDriver == config.StorageDriverLocal {
		local, err := storage.NewLocalStorage(cfg.StoragePath, cfg.PublicBaseURL, m)
		if err != nil {
			return nil, nil, err
		}
		return local, local, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s3Store, err := storage.NewS3Storage(ctx, cfg.S3, storage.WithMetrics(m))
	if err != nil {
		return nil, nil, err
	}
	if err := s3Store.EnsureBucket(ctx); err != nil {
		return nil, nil, err
	}
	return s3Store, nil, nil
}

func setupRouter(h *handlers.Handlers, cfg *config.Config, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	// Two images plus form fields must fit in memory before spilling to disk
	router.MaxMultipartMemory = 2*cfg.MaxUploadSize + 1<<20

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Redirect root to swagger
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/health", h.Health.Index)

		clients := api.Group("/clients")
		{
			// Static routes first so they are not matched as :id
			clients.POST("/validate-cedula", h.Client.ValidateCedula)
			clients.GET("/export", h.Client.Export)

			clients.POST("", h.Client.Create)
			clients.GET("", h.Client.Index)
			clients.GET("/:id", h.Client.Show)
			clients.PATCH("/:id", h.Client.Update)
			clients.DELETE("/:id", h.Client.Delete)
			clients.GET("/:id/pdf", h.Client.PDF)
		}

		api.GET("/audits", h.Audit.Index)
	}

	return router
}
