// Package main provides the sync worker entry point. It consumes
// medication sync events and reconciles OS-level reminders through the
// device notification bridge, and sweeps the whole store once a day so
// expired medications lose their reminders even when no edit arrives.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/medkeep/go-remind/internal/config"
	"github.com/medkeep/go-remind/internal/coordinator"
	"github.com/medkeep/go-remind/internal/domain/medication"
	"github.com/medkeep/go-remind/internal/infrastructure/redpanda"
	"github.com/medkeep/go-remind/internal/notify"
	"github.com/medkeep/go-remind/internal/observability/metrics"
	"github.com/medkeep/go-remind/internal/observability/tracing"
	"github.com/medkeep/go-remind/pkg/circuitbreaker"
	"github.com/medkeep/go-remind/pkg/workerpool"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	if cfg.OTLPEndpoint != "" {
		tcfg := tracing.DefaultConfig("sync-worker")
		tcfg.OTLPEndpoint = cfg.OTLPEndpoint
		provider, err := tracing.Init(context.Background(), tcfg)
		if err != nil {
			logger.Fatal("tracing init failed", zap.Error(err))
		}
		defer provider.Shutdown(context.Background())
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	m := metrics.New()

	// The bridge sits behind a breaker: when it is unreachable, sync
	// attempts fail fast instead of tying up workers, and the daily
	// sweep reconciles anything missed while it was open.
	breaker := circuitbreaker.New(
		circuitbreaker.DefaultConfig("notification-bridge"), logger,
		circuitbreaker.WithStateHook(func(name string, state circuitbreaker.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(state.GaugeValue())
		}))

	gateway := &breakerGateway{
		inner:   notify.NewBridgeGateway(cfg.BridgeURL, cfg.BridgeAPIKey, logger),
		breaker: breaker,
	}
	scheduler := notify.NewScheduler(gateway, logger)

	// The worker reads and syncs; it never writes medications, so no
	// outbox option here.
	store := medication.NewRepository(pool, logger)
	coord := coordinator.New(store, scheduler, logger,
		coordinator.WithDeviceTimezone(cfg.DeviceTimezone))

	poolCfg := workerpool.DefaultConfig()
	workerPool, err := workerpool.New(poolCfg, func(ctx context.Context, task *workerpool.Task) *workerpool.Result {
		return resyncTask(ctx, task, coord, m, logger)
	}, logger)
	if err != nil {
		logger.Fatal("worker pool creation failed", zap.Error(err))
	}

	workerPool.Start()
	defer workerPool.Stop()

	consumerCfg := redpanda.DefaultConsumerConfig()
	consumerCfg.Brokers = cfg.Brokers

	consumer, err := redpanda.NewConsumer(consumerCfg, func(ctx context.Context, msg *redpanda.ConsumedMessage) error {
		m.BusMessagesConsumed.Inc()

		var event medication.SyncEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// Malformed events would never succeed; log and commit.
			logger.Error("malformed sync event",
				zap.String("key", string(msg.Key)), zap.Error(err))
			return nil
		}

		return workerPool.Submit(&workerpool.Task{
			ID:      event.MedicationID,
			Payload: event,
			Context: ctx,
		})
	}, logger)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}

	consumer.Start()

	sweeper := cron.New()
	_, err = sweeper.AddFunc(cfg.SweepSchedule, func() {
		sweep(context.Background(), store, workerPool, logger)
	})
	if err != nil {
		logger.Fatal("invalid sweep schedule",
			zap.String("schedule", cfg.SweepSchedule), zap.Error(err))
	}
	sweeper.Start()

	logger.Info("sync worker started",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("bridge_url", cfg.BridgeURL),
		zap.String("sweep_schedule", cfg.SweepSchedule))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	sweeper.Stop()
	consumer.Stop()
	logger.Info("sync worker stopped")
}

// resyncTask reconciles reminders for one medication id. Permission
// denial is terminal for the event: retrying cannot grant permissions,
// and the next app launch re-syncs anyway.
func resyncTask(ctx context.Context, task *workerpool.Task, coord *coordinator.Coordinator, m *metrics.Metrics, logger *zap.Logger) *workerpool.Result {
	event, ok := task.Payload.(medication.SyncEvent)
	if !ok {
		return &workerpool.Result{TaskID: task.ID, Success: true}
	}

	start := time.Now()
	result, err := coord.Resync(ctx, event.MedicationID)
	m.SyncDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.SyncFailures.Inc()
		return &workerpool.Result{TaskID: task.ID, Success: false, Error: err}
	}
	if result.SyncErr != nil && result.Sync.RemindersDisabled {
		logger.Warn("reminders disabled on device, sync skipped",
			zap.String("medication_id", event.MedicationID))
		return &workerpool.Result{TaskID: task.ID, Success: true}
	}
	if result.SyncErr != nil {
		m.SyncFailures.Inc()
		return &workerpool.Result{TaskID: task.ID, Success: false, Error: result.SyncErr}
	}

	if result.State == coordinator.StateDeleted {
		m.RemindersCancelled.Inc()
	}
	m.RemindersScheduled.Add(float64(result.Sync.Scheduled))
	logger.Info("medication resynced",
		zap.String("medication_id", event.MedicationID),
		zap.String("state", string(result.State)),
		zap.Int("scheduled", result.Sync.Scheduled))
	return &workerpool.Result{TaskID: task.ID, Success: true}
}

// sweep re-submits every stored medication for reconciliation. This is
// what retracts reminders of medications whose end date passed since
// the last write.
func sweep(ctx context.Context, store medication.Store, pool *workerpool.Pool, logger *zap.Logger) {
	meds, err := store.List(ctx)
	if err != nil {
		logger.Error("sweep list failed", zap.Error(err))
		return
	}

	submitted := 0
	for _, med := range meds {
		task := &workerpool.Task{
			ID: med.ID,
			Payload: medication.SyncEvent{
				MedicationID: med.ID,
				Action:       medication.SyncActionUpsert,
				OccurredAt:   time.Now(),
			},
			Context: ctx,
		}
		if err := pool.Submit(task); err != nil {
			logger.Warn("sweep submit failed",
				zap.String("medication_id", med.ID), zap.Error(err))
			continue
		}
		submitted++
	}
	logger.Info("expiry sweep submitted", zap.Int("medications", submitted))
}

// breakerGateway routes every bridge call through the circuit breaker.
type breakerGateway struct {
	inner   notify.Gateway
	breaker *circuitbreaker.CircuitBreaker
}

func (g *breakerGateway) CheckPermissions(ctx context.Context) (bool, error) {
	granted, err := g.breaker.Execute(ctx, func() (interface{}, error) {
		return g.inner.CheckPermissions(ctx)
	})
	if err != nil {
		return false, err
	}
	return granted.(bool), nil
}

func (g *breakerGateway) ScheduleDailyReminder(ctx context.Context, req notify.ReminderRequest) (string, error) {
	id, err := g.breaker.Execute(ctx, func() (interface{}, error) {
		return g.inner.ScheduleDailyReminder(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

func (g *breakerGateway) CancelCategory(ctx context.Context, category string) error {
	_, err := g.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, g.inner.CancelCategory(ctx, category)
	})
	return err
}
