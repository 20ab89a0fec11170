// Package memory provides an in-process medication store used in tests
// and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medkeep/go-remind/internal/domain/medication"
)

// Store is a thread-safe in-memory implementation of medication.Store.
type Store struct {
	mu   sync.RWMutex
	byID map[string]medication.Medication
	now  func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		byID: make(map[string]medication.Medication),
		now:  time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Create persists a new medication, assigning its id and dose ids.
func (s *Store) Create(ctx context.Context, draft medication.Draft) (medication.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	med := draft.Materialize(uuid.New().String(), s.now())
	s.byID[med.ID] = med
	return med, nil
}

// Update replaces a medication wholesale.
func (s *Store) Update(ctx context.Context, id string, draft medication.Draft) (medication.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[id]
	if !ok {
		return medication.Medication{}, medication.ErrNotFound
	}

	med := draft.Materialize(id, s.now())
	med.CreatedAt = existing.CreatedAt
	s.byID[id] = med
	return med, nil
}

// Delete removes a medication.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return medication.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// Get retrieves a medication by id.
func (s *Store) Get(ctx context.Context, id string) (medication.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	med, ok := s.byID[id]
	if !ok {
		return medication.Medication{}, medication.ErrNotFound
	}
	return med, nil
}

// List returns all medications, oldest first.
func (s *Store) List(ctx context.Context) ([]medication.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]medication.Medication, 0, len(s.byID))
	for _, med := range s.byID {
		out = append(out, med)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
