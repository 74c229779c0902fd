package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"labsentinel/internal/application"
	appaudits "labsentinel/internal/application/audits"
	"labsentinel/internal/config"
	"labsentinel/internal/domain/auditerrors"
	domain "labsentinel/internal/domain/audits"
	"labsentinel/internal/domain/procedures"
	aiclient "labsentinel/internal/infra/ai/openai"
	"labsentinel/internal/infra/cache"
	mysqlp "labsentinel/internal/infra/db/mysql"
	postgresp "labsentinel/internal/infra/db/postgres"
	"labsentinel/internal/infra/httpserver"
	minioStore "labsentinel/internal/infra/storage"
	"labsentinel/internal/middleware"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// connect the history database; the driver decides which repo set we get
	var (
		db     *sql.DB
		repo   domain.Repository
		errors auditerrors.Repository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			logger.Fatal("postgres connect failed", zap.Error(err))
		}
		repo = postgresp.NewAuditRepository(db)
		errors = postgresp.NewAuditErrorRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			logger.Fatal("mysql connect failed", zap.Error(err))
		}
		repo = mysqlp.NewAuditRepository(db)
		errors = mysqlp.NewAuditErrorRepository(db)
	}
	defer db.Close()

	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		logger.Fatal("minio init failed", zap.Error(err))
	}

	resultCache := cache.New(cfg.Cache.Path, logger)

	catalog := procedures.BuiltIn()
	if cfg.Procedures.Path != "" {
		if err := catalog.LoadFile(cfg.Procedures.Path); err != nil {
			logger.Fatal("procedure catalog load failed",
				zap.String("path", cfg.Procedures.Path), zap.Error(err))
		}
	}

	models := aiclient.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.VisionModels, cfg.AI.ReasoningModel)

	svc := &appaudits.Service{
		Catalog:      catalog,
		Repo:         repo,
		Errors:       errors,
		Cache:        resultCache,
		Descriptions: resultCache,
		Vision:       models,
		Auditor:      models,
		Artifacts:    store,
		Clock:        application.SystemClock{},
		Log:          logger,
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	mux.Use(middleware.Logging(logger))
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Auth.Keys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.Keys))
	}
	mux.Use(middleware.RateLimit(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"cache": middleware.CheckerFunc(func(ctx context.Context) error {
			_, err := os.Stat(cfg.Cache.Path)
			if os.IsNotExist(err) {
				return nil // created on first write
			}
			return err
		}),
	}))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/v1", httpserver.NewRouter(svc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // audits wait on two model calls
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}
