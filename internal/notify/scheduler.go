package notify

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medkeep/go-remind/internal/domain/medication"
	"github.com/medkeep/go-remind/internal/domain/schedule"
)

// SyncResult reports the outcome of one reconcile pass.
type SyncResult struct {
	// Scheduled is the number of reminders registered by this pass.
	Scheduled int
	// ReminderIDs are the gateway ids of the registered reminders.
	ReminderIDs []string
	// RemindersDisabled is set when notification permission was denied
	// and scheduling was skipped.
	RemindersDisabled bool
	// Deferred is set when the sync request was handed off to the
	// notification worker instead of executing inline.
	Deferred bool
}

// Scheduler reconciles a medication's registered reminders with its
// current schedule. A sync always cancels the medication's reminder
// category first, then schedules the resolved triggers, so the old and
// new reminder sets never coexist. A crash in between leaves the
// medication with no reminders, which the next sync repairs.
type Scheduler struct {
	gateway Gateway
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock overrides the time source, for tests and replays.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a Scheduler on top of a notification gateway.
func NewScheduler(gateway Gateway, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		gateway: gateway,
		logger:  logger,
		tracer:  otel.Tracer("notify-scheduler"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync cancels every reminder tagged with the medication's category and
// schedules one repeating daily reminder per active trigger. It returns
// ErrPermissionDenied (non-fatal) when notifications are unauthorized,
// or a *SchedulingError when a gateway call fails.
func (s *Scheduler) Sync(ctx context.Context, med medication.Medication) (SyncResult, error) {
	ctx, span := s.tracer.Start(ctx, "reminder_sync",
		trace.WithAttributes(attribute.String("medication_id", med.ID)))
	defer span.End()

	var result SyncResult

	triggers, err := schedule.Resolve(med, s.now())
	if err != nil {
		span.RecordError(err)
		return result, &SchedulingError{Op: "resolve", MedicationID: med.ID, Err: err}
	}
	span.SetAttributes(attribute.Int("triggers", len(triggers)))

	if err := s.gateway.CancelCategory(ctx, Category(med.ID)); err != nil {
		span.RecordError(err)
		return result, &SchedulingError{Op: "cancel", MedicationID: med.ID, Err: err}
	}

	if len(triggers) == 0 {
		s.logger.Info("no active triggers, reminders retracted",
			zap.String("medication_id", med.ID))
		return result, nil
	}

	granted, err := s.gateway.CheckPermissions(ctx)
	if err != nil {
		span.RecordError(err)
		return result, &SchedulingError{Op: "check_permissions", MedicationID: med.ID, Err: err}
	}
	if !granted {
		result.RemindersDisabled = true
		s.logger.Warn("notifications not authorized, reminders skipped",
			zap.String("medication_id", med.ID))
		return result, ErrPermissionDenied
	}

	for _, trigger := range triggers {
		id, err := s.gateway.ScheduleDailyReminder(ctx, ReminderRequest{
			MedicationID:   trigger.MedicationID,
			MedicationName: trigger.MedicationName,
			Hour:           trigger.TimeOfDay.Hour,
			Minute:         trigger.TimeOfDay.Minute,
			Timezone:       trigger.Timezone,
		})
		if err != nil {
			// Partial schedules are safe: the category was already
			// cleared, so re-running Sync converges.
			span.RecordError(err)
			return result, &SchedulingError{Op: "schedule", MedicationID: med.ID, Err: err}
		}
		result.Scheduled++
		result.ReminderIDs = append(result.ReminderIDs, id)
	}

	s.logger.Info("reminders synced",
		zap.String("medication_id", med.ID),
		zap.Int("scheduled", result.Scheduled))
	return result, nil
}

// Cancel retracts every reminder for the medication without scheduling
// replacements. Used on delete.
func (s *Scheduler) Cancel(ctx context.Context, medicationID string) error {
	ctx, span := s.tracer.Start(ctx, "reminder_cancel",
		trace.WithAttributes(attribute.String("medication_id", medicationID)))
	defer span.End()

	if err := s.gateway.CancelCategory(ctx, Category(medicationID)); err != nil {
		span.RecordError(err)
		return &SchedulingError{Op: "cancel", MedicationID: medicationID, Err: err}
	}

	s.logger.Info("reminders cancelled", zap.String("medication_id", medicationID))
	return nil
}

// Deferred is the Syncer used by the API service: the sync request was
// already recorded transactionally in the store's outbox, so nothing
// executes inline and the worker reconciles asynchronously.
type Deferred struct{}

// Sync reports the hand-off without touching the gateway.
func (Deferred) Sync(ctx context.Context, med medication.Medication) (SyncResult, error) {
	return SyncResult{Deferred: true}, nil
}

// Cancel reports the hand-off without touching the gateway.
func (Deferred) Cancel(ctx context.Context, medicationID string) error {
	return nil
}
