package medication

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medkeep/go-remind/internal/infrastructure/postgres"
)

// Repository is the Postgres implementation of Store. When a sync topic
// is configured, every mutation writes a sync event into the outbox in
// the same transaction, so the notification worker is guaranteed to see
// exactly the committed schedule.
type Repository struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	syncTopic string
	now       func() time.Time
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithSyncOutbox enables transactional sync-event emission to the given
// bus topic.
func WithSyncOutbox(topic string) RepositoryOption {
	return func(r *Repository) { r.syncTopic = topic }
}

// NewRepository creates a new Postgres-backed store.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger, opts ...RepositoryOption) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Repository{pool: pool, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const medicationColumns = `
	id, name, dosage, instructions, start_date, end_date, timezone,
	is_active, quantity, remaining_stock, low_stock_threshold, doses,
	created_at, updated_at
`

// Create persists a new medication, assigning its id and dose ids.
func (r *Repository) Create(ctx context.Context, draft Draft) (Medication, error) {
	med := draft.Materialize(uuid.New().String(), r.now())

	err := r.inTx(ctx, "create", func(tx pgx.Tx) error {
		doses, err := json.Marshal(med.Doses)
		if err != nil {
			return err
		}
		query := `
			INSERT INTO medications (` + medicationColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`
		_, err = tx.Exec(ctx, query,
			med.ID, med.Name, med.Dosage, med.Instructions,
			med.StartDate.String(), endDateParam(med.EndDate), med.Timezone,
			med.IsActive, med.Quantity, med.RemainingStock, med.LowStockThreshold,
			doses, med.CreatedAt, med.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return r.writeSyncEvent(ctx, tx, med.ID, SyncActionUpsert)
	})
	if err != nil {
		return Medication{}, &PersistenceError{Op: "create", Err: err}
	}

	r.logger.Info("medication created", zap.String("id", med.ID), zap.Int("doses", len(med.Doses)))
	return med, nil
}

// Update replaces a medication wholesale, including its dose list.
func (r *Repository) Update(ctx context.Context, id string, draft Draft) (Medication, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return Medication{}, err
	}

	med := draft.Materialize(id, r.now())
	med.CreatedAt = existing.CreatedAt

	err = r.inTx(ctx, "update", func(tx pgx.Tx) error {
		doses, err := json.Marshal(med.Doses)
		if err != nil {
			return err
		}
		query := `
			UPDATE medications
			SET name = $2, dosage = $3, instructions = $4, start_date = $5,
			    end_date = $6, timezone = $7, is_active = $8, quantity = $9,
			    remaining_stock = $10, low_stock_threshold = $11, doses = $12,
			    updated_at = $13
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, query,
			med.ID, med.Name, med.Dosage, med.Instructions,
			med.StartDate.String(), endDateParam(med.EndDate), med.Timezone,
			med.IsActive, med.Quantity, med.RemainingStock, med.LowStockThreshold,
			doses, med.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return r.writeSyncEvent(ctx, tx, med.ID, SyncActionUpsert)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Medication{}, ErrNotFound
		}
		return Medication{}, &PersistenceError{Op: "update", Err: err}
	}

	r.logger.Info("medication updated", zap.String("id", med.ID), zap.Int("doses", len(med.Doses)))
	return med, nil
}

// Delete removes a medication. The emitted sync event lets the worker
// retract any reminders still registered for it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.inTx(ctx, "delete", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM medications WHERE id = $1", id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return r.writeSyncEvent(ctx, tx, id, SyncActionDelete)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &PersistenceError{Op: "delete", Err: err}
	}

	r.logger.Info("medication deleted", zap.String("id", id))
	return nil
}

// Get retrieves a medication by id.
func (r *Repository) Get(ctx context.Context, id string) (Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`
	med, err := scanMedication(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Medication{}, ErrNotFound
		}
		return Medication{}, &PersistenceError{Op: "get", Err: err}
	}
	return med, nil
}

// List retrieves all medications, oldest first.
func (r *Repository) List(ctx context.Context) ([]Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	var meds []Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "list", Err: err}
		}
		meds = append(meds, med)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return meds, nil
}

func (r *Repository) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return nil
}

func (r *Repository) writeSyncEvent(ctx context.Context, tx pgx.Tx, medicationID, action string) error {
	if r.syncTopic == "" {
		return nil
	}
	payload, err := json.Marshal(SyncEvent{
		MedicationID: medicationID,
		Action:       action,
		OccurredAt:   r.now().UTC(),
	})
	if err != nil {
		return err
	}
	return postgres.WriteEntry(ctx, tx, &postgres.OutboxEntry{
		AggregateID:   medicationID,
		AggregateType: "Medication",
		EventType:     "MedicationSyncRequested",
		Payload:       payload,
		Topic:         r.syncTopic,
		Key:           medicationID,
	})
}

func endDateParam(d *Date) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedication(row rowScanner) (Medication, error) {
	var (
		med       Medication
		startDate time.Time
		endDate   *time.Time
		doses     []byte
	)
	err := row.Scan(
		&med.ID, &med.Name, &med.Dosage, &med.Instructions,
		&startDate, &endDate, &med.Timezone,
		&med.IsActive, &med.Quantity, &med.RemainingStock, &med.LowStockThreshold,
		&doses, &med.CreatedAt, &med.UpdatedAt,
	)
	if err != nil {
		return Medication{}, err
	}

	med.StartDate = Date{Year: startDate.Year(), Month: startDate.Month(), Day: startDate.Day()}
	if endDate != nil {
		med.EndDate = &Date{Year: endDate.Year(), Month: endDate.Month(), Day: endDate.Day()}
	}
	if err := json.Unmarshal(doses, &med.Doses); err != nil {
		return Medication{}, err
	}
	if med.Doses == nil {
		med.Doses = []Dose{}
	}
	return med, nil
}
