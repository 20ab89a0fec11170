// Package main provides the medication API service entry point.
// Writes go to Postgres together with an outbox entry; reminder sync
// runs asynchronously in the sync worker.
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
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medkeep/go-remind/internal/api/handlers"
	"github.com/medkeep/go-remind/internal/api/middleware"
	"github.com/medkeep/go-remind/internal/config"
	"github.com/medkeep/go-remind/internal/coordinator"
	"github.com/medkeep/go-remind/internal/domain/medication"
	"github.com/medkeep/go-remind/internal/infrastructure/redpanda"
	"github.com/medkeep/go-remind/internal/notify"
	"github.com/medkeep/go-remind/internal/observability/metrics"
	"github.com/medkeep/go-remind/internal/observability/tracing"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	if cfg.OTLPEndpoint != "" {
		tcfg := tracing.DefaultConfig("medication-api")
		tcfg.OTLPEndpoint = cfg.OTLPEndpoint
		provider, err := tracing.Init(context.Background(), tcfg)
		if err != nil {
			logger.Fatal("tracing init failed", zap.Error(err))
		}
		defer provider.Shutdown(context.Background())
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("database ping failed", zap.Error(err))
	}
	logger.Info("connected to database")

	m := metrics.New()

	// The API never talks to the notification bridge directly: the sync
	// request is committed with the medication row and picked up by the
	// relay and worker.
	store := medication.NewRepository(pool, logger,
		medication.WithSyncOutbox(redpanda.TopicMedicationSync))
	coord := coordinator.New(store, notify.Deferred{}, logger,
		coordinator.WithDeviceTimezone(cfg.DeviceTimezone))

	medicationHandler := handlers.NewMedicationHandler(coord, m, logger)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("medication-api"))

	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))
		r.Mount("/medications", medicationHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting medication API", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"medication-api","version":"0.1.0"}`)
}
