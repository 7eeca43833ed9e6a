package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/wado-download-engine/internal/adapters"
	"github.com/otcheredev/wado-download-engine/internal/cache"
	"github.com/otcheredev/wado-download-engine/internal/config"
	"github.com/otcheredev/wado-download-engine/internal/database"
	"github.com/otcheredev/wado-download-engine/internal/download"
	"github.com/otcheredev/wado-download-engine/internal/handlers"
	"github.com/otcheredev/wado-download-engine/internal/hierarchy"
	"github.com/otcheredev/wado-download-engine/internal/middleware"
	"github.com/otcheredev/wado-download-engine/internal/repository"
	"github.com/otcheredev/wado-download-engine/internal/scheduler"
	"github.com/otcheredev/wado-download-engine/internal/services"
	"github.com/otcheredev/wado-download-engine/internal/wado"
	"github.com/otcheredev/wado-download-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting WADO download engine")

	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	var cacheImpl cache.Cache
	if cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis cache initialized")
	} else {
		cacheImpl = cache.NewMemoryCache()
		log.Info().Msg("Memory cache initialized")
	}

	if err := os.MkdirAll(cfg.Engine.TmpDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create tmp directory")
	}

	endpointRepo := repository.NewWadoEndpointRepository()
	auditRepo := repository.NewAuditRepository()

	engineFactory := adapters.NewEngineFactory(
		"wado-download-engine/1.0", "wado-download-engine",
		cfg.Engine.ConnectTimeout, cfg.Engine.ReadTimeout, cfg.Engine.MaxRedirects,
	)
	defer engineFactory.CloseAll()

	store := hierarchy.NewMemoryStore()
	sink := wado.NewChannelSink(256)
	defer sink.Close()

	sched := scheduler.New(cfg.Engine.GlobalSeriesConcurrency)

	engineCtx, cancelEngine := context.WithCancel(context.Background())
	go func() {
		if err := sched.Run(engineCtx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	janitor := &download.Janitor{Dir: cfg.Engine.TmpDir, MaxAge: time.Hour}
	go janitor.Run(engineCtx)

	engineService := services.NewEngineService(
		endpointRepo,
		auditRepo,
		engineFactory,
		sched,
		store,
		cacheImpl,
		sink,
		cfg.Engine.SeriesConcurrency,
		cfg.Engine.ExportDir,
		cfg.Engine.TmpDir,
		cfg.Engine.WriteInCache,
	)

	healthHandler := handlers.NewHealthHandler()
	taskHandler := handlers.NewTaskHandler(engineService)
	managementHandler := handlers.NewManagementHandler(engineService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.TenantID)

		r.Route("/endpoints", func(r chi.Router) {
			r.Post("/", managementHandler.CreateEndpoint)
			r.Get("/", managementHandler.GetEndpoints)
			r.Get("/{id}", managementHandler.GetEndpoint)
			r.Delete("/{id}", managementHandler.DeleteEndpoint)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", taskHandler.SubmitSeries)
			r.Get("/{taskID}", taskHandler.TaskStatus)
			r.Post("/{taskID}/cancel", taskHandler.CancelTask)
			r.Post("/{taskID}/pause", taskHandler.PauseTask)
			r.Post("/{taskID}/resume", taskHandler.ResumeTask)
			r.Post("/{taskID}/reprioritize", taskHandler.Reprioritize)
		})
	})

	// Connection testing doesn't require a resolved tenant since it
	// probes a not-yet-saved endpoint.
	r.Post("/api/v1/endpoints/test", managementHandler.TestConnection)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
