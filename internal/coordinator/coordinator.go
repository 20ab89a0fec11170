// Package coordinator orchestrates medication writes as one logical
// operation: validate, persist, then reconcile reminders.
package coordinator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/medkeep/go-remind/internal/domain/forecast"
	"github.com/medkeep/go-remind/internal/domain/medication"
	"github.com/medkeep/go-remind/internal/notify"
)

// State is the lifecycle position of a medication operation.
type State string

const (
	StateDraft     State = "draft"
	StateValidated State = "validated"
	StatePersisted State = "persisted"
	StateSynced    State = "synced"
	StateDeleted   State = "deleted"
)

// Syncer reconciles OS-level reminders for one medication.
type Syncer interface {
	Sync(ctx context.Context, med medication.Medication) (notify.SyncResult, error)
	Cancel(ctx context.Context, medicationID string) error
}

// Result reports a completed write operation. SyncErr is non-nil when
// persistence succeeded but reminder reconciliation did not; the
// medication is saved, flagged out of sync, and safe to resync later.
type Result struct {
	Medication medication.Medication
	State      State
	Warnings   []string
	Sync       notify.SyncResult
	SyncErr    error
}

// View couples a medication with its display-only stock forecast.
// Inactive medications carry no forecast.
type View struct {
	Medication medication.Medication `json:"medication"`
	Forecast   *forecast.Forecast    `json:"forecast,omitempty"`
}

// Coordinator drives the per-medication lifecycle. Operations on the
// same medication id are serialized so an older cancel can never
// overtake a newer reschedule; operations on different ids proceed
// concurrently.
type Coordinator struct {
	store          medication.Store
	syncer         Syncer
	deviceTimezone string
	logger         *zap.Logger
	locks          keyedLocks
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDeviceTimezone sets the zone applied to drafts that carry none.
// It is resolved once at write time; the stored zone wins thereafter.
func WithDeviceTimezone(tz string) Option {
	return func(c *Coordinator) { c.deviceTimezone = tz }
}

// New creates a Coordinator over a store and a reminder syncer.
func New(store medication.Store, syncer Syncer, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		store:          store,
		syncer:         syncer,
		deviceTimezone: "UTC",
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create validates and persists a new medication, then brings its
// reminders in sync. A validation or persistence failure aborts before
// any later step runs.
func (c *Coordinator) Create(ctx context.Context, draft medication.Draft) (*Result, error) {
	draft.Normalize(c.deviceTimezone)
	warnings, err := draft.Validate()
	if err != nil {
		return nil, err
	}

	med, err := c.store.Create(ctx, draft)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.lock(med.ID)
	defer unlock()

	result := &Result{Medication: med, State: StatePersisted, Warnings: warnings}
	c.reconcile(ctx, result)
	return result, nil
}

// Update validates and persists a full-replacement edit, then brings
// reminders in sync with the new schedule.
func (c *Coordinator) Update(ctx context.Context, id string, draft medication.Draft) (*Result, error) {
	draft.Normalize(c.deviceTimezone)
	warnings, err := draft.Validate()
	if err != nil {
		return nil, err
	}

	unlock := c.locks.lock(id)
	defer unlock()

	med, err := c.store.Update(ctx, id, draft)
	if err != nil {
		return nil, err
	}

	result := &Result{Medication: med, State: StatePersisted, Warnings: warnings}
	c.reconcile(ctx, result)
	return result, nil
}

// Delete removes the medication and retracts all of its reminders. A
// store failure aborts before notifications are touched.
func (c *Coordinator) Delete(ctx context.Context, id string) (*Result, error) {
	unlock := c.locks.lock(id)
	defer unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		return nil, err
	}

	result := &Result{State: StateDeleted}
	if err := c.syncer.Cancel(ctx, id); err != nil {
		c.logger.Warn("reminder retraction failed after delete",
			zap.String("medication_id", id), zap.Error(err))
		result.SyncErr = err
	}
	return result, nil
}

// Resync reloads a medication and re-runs reminder reconciliation. For
// an id that no longer exists it cancels any leftover reminders, which
// makes replayed or late sync events converge on the right end state.
func (c *Coordinator) Resync(ctx context.Context, id string) (*Result, error) {
	unlock := c.locks.lock(id)
	defer unlock()

	med, err := c.store.Get(ctx, id)
	if errors.Is(err, medication.ErrNotFound) {
		result := &Result{State: StateDeleted}
		if cancelErr := c.syncer.Cancel(ctx, id); cancelErr != nil {
			result.SyncErr = cancelErr
		}
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Medication: med, State: StatePersisted}
	c.reconcile(ctx, result)
	return result, nil
}

// Get returns one medication with its forecast.
func (c *Coordinator) Get(ctx context.Context, id string) (*View, error) {
	med, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return newView(med), nil
}

// List returns all medications with their forecasts.
func (c *Coordinator) List(ctx context.Context) ([]View, error) {
	meds, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(meds))
	for i, med := range meds {
		views[i] = *newView(med)
	}
	return views, nil
}

// reconcile runs the Persisted → Synced transition. Failures here are
// non-fatal: the medication stays saved and eligible for retry.
func (c *Coordinator) reconcile(ctx context.Context, result *Result) {
	syncRes, err := c.syncer.Sync(ctx, result.Medication)
	result.Sync = syncRes
	if err != nil {
		result.SyncErr = err
		if !errors.Is(err, notify.ErrPermissionDenied) {
			c.logger.Warn("reminder sync failed, medication saved out of sync",
				zap.String("medication_id", result.Medication.ID), zap.Error(err))
		}
		return
	}
	if !syncRes.Deferred {
		result.State = StateSynced
	}
}

func newView(med medication.Medication) *View {
	v := &View{Medication: med}
	if med.IsActive {
		f := forecast.Compute(med)
		v.Forecast = &f
	}
	return v
}

// keyedLocks serializes operations per medication id. Entries are
// dropped once no goroutine holds or waits on them.
type keyedLocks struct {
	mu   sync.Mutex
	refs map[string]*lockRef
}

type lockRef struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) lock(id string) (unlock func()) {
	k.mu.Lock()
	if k.refs == nil {
		k.refs = make(map[string]*lockRef)
	}
	ref, ok := k.refs[id]
	if !ok {
		ref = &lockRef{}
		k.refs[id] = ref
	}
	ref.refs++
	k.mu.Unlock()

	ref.mu.Lock()
	return func() {
		ref.mu.Unlock()
		k.mu.Lock()
		ref.refs--
		if ref.refs == 0 {
			delete(k.refs, id)
		}
		k.mu.Unlock()
	}
}
