package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkeep/go-remind/internal/domain/medication"
)

func draft(name string) medication.Draft {
	return medication.Draft{
		Name:      name,
		StartDate: medication.Date{Year: 2026, Month: time.August, Day: 1},
		Timezone:  "UTC",
		IsActive:  true,
		Doses:     []medication.DoseDraft{{Time: "08:00"}},
	}
}

func TestCreateAssignsIDs(t *testing.T) {
	s := NewStore()

	med, err := s.Create(context.Background(), draft("Metformin"))
	require.NoError(t, err)
	assert.NotEmpty(t, med.ID)
	assert.NotEmpty(t, med.Doses[0].ID)
}

func TestUpdatePreservesCreatedAt(t *testing.T) {
	base := time.Date(2026, time.August, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	s := NewStore().WithClock(func() time.Time { return clock })

	med, err := s.Create(context.Background(), draft("Metformin"))
	require.NoError(t, err)

	clock = base.Add(time.Hour)
	updated, err := s.Update(context.Background(), med.ID, draft("Metformin XR"))
	require.NoError(t, err)

	assert.Equal(t, med.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Equal(t, "Metformin XR", updated.Name)
}

func TestUpdateUnknownID(t *testing.T) {
	s := NewStore()
	_, err := s.Update(context.Background(), "missing", draft("X"))
	assert.ErrorIs(t, err, medication.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := NewStore()
	med, err := s.Create(context.Background(), draft("Metformin"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), med.ID))
	assert.ErrorIs(t, s.Delete(context.Background(), med.ID), medication.ErrNotFound)

	_, err = s.Get(context.Background(), med.ID)
	assert.ErrorIs(t, err, medication.ErrNotFound)
}

func TestListOrderedByCreation(t *testing.T) {
	base := time.Date(2026, time.August, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	s := NewStore().WithClock(func() time.Time { return clock })

	names := []string{"First", "Second", "Third"}
	for _, name := range names {
		_, err := s.Create(context.Background(), draft(name))
		require.NoError(t, err)
		clock = clock.Add(time.Minute)
	}

	meds, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, meds, 3)
	for i, name := range names {
		assert.Equal(t, name, meds[i].Name)
	}
}
