// Package main provides the outbox relay service entry point. It moves
// committed sync events from Postgres onto the bus, giving at-least-once
// delivery without dual writes in the API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medkeep/go-remind/internal/config"
	"github.com/medkeep/go-remind/internal/infrastructure/postgres"
	"github.com/medkeep/go-remind/internal/infrastructure/redpanda"
	"github.com/medkeep/go-remind/internal/observability/metrics"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	logger.Info("connected to database")

	// Make sure the topics exist before relaying into them.
	admin, err := redpanda.NewAdmin(cfg.Brokers, logger)
	if err != nil {
		logger.Fatal("admin client creation failed", zap.Error(err))
	}
	if err := admin.EnsureTopics(context.Background()); err != nil {
		logger.Fatal("topic creation failed", zap.Error(err))
	}
	admin.Close()

	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.Brokers

	producer, err := redpanda.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()

	logger.Info("connected to bus", zap.Strings("brokers", cfg.Brokers))

	m := metrics.New()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(":9091", mux); err != nil {
			logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()

	outboxCfg := postgres.DefaultOutboxConfig()
	outbox := postgres.NewOutbox(pool, &countingPublisher{producer: producer, metrics: m}, outboxCfg, logger)

	outbox.Start()
	logger.Info("outbox relay started")

	// Housekeeping: park exhausted entries and trim relayed ones.
	hkCtx, hkCancel := context.WithCancel(context.Background())
	go housekeeping(hkCtx, outbox, m, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	hkCancel()
	outbox.Stop()
	logger.Info("outbox relay stopped")
}

func housekeeping(ctx context.Context, outbox *postgres.Outbox, m *metrics.Metrics, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moved, err := outbox.MoveToDeadLetter(ctx, redpanda.TopicDeadLetter)
			if err != nil {
				logger.Error("dead-letter move failed", zap.Error(err))
			} else if moved > 0 {
				logger.Warn("entries moved to dead letter", zap.Int64("count", moved))
			}

			if _, err := outbox.CleanupProcessed(ctx, 24*time.Hour); err != nil {
				logger.Error("outbox cleanup failed", zap.Error(err))
			}

			if stats, err := outbox.GetStats(ctx); err == nil {
				m.OutboxPending.Set(float64(stats.Pending))
			}
		}
	}
}

// countingPublisher counts successful publishes on the bus counter.
type countingPublisher struct {
	producer *redpanda.Producer
	metrics  *metrics.Metrics
}

func (p *countingPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	if err := p.producer.Publish(ctx, topic, key, value); err != nil {
		return err
	}
	p.metrics.BusMessagesProduced.Inc()
	return nil
}
