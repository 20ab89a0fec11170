package medication

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store lookups for unknown medication ids.
var ErrNotFound = errors.New("medication not found")

// PersistenceError wraps a failed Store call. The caller must treat the
// previously persisted state and previously scheduled reminders as
// still authoritative.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store persists medication records. Create and Update consume a full
// draft; the dose list is replaced wholesale on every update. Store
// implementations do not validate drafts — invariants are enforced by
// the caller before any write reaches the store.
type Store interface {
	Create(ctx context.Context, draft Draft) (Medication, error)
	Update(ctx context.Context, id string, draft Draft) (Medication, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Medication, error)
	List(ctx context.Context) ([]Medication, error)
}
