package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkeep/go-remind/internal/domain/medication"
)

func activeMedication() medication.Medication {
	return medication.Medication{
		ID:        "med-1",
		Name:      "Metformin",
		StartDate: medication.Date{Year: 2026, Month: time.August, Day: 1},
		Timezone:  "Asia/Almaty",
		IsActive:  true,
		Doses: []medication.Dose{
			{ID: "d1", TimeOfDay: medication.TimeOfDay{Hour: 8}},
			{ID: "d2", TimeOfDay: medication.TimeOfDay{Hour: 20, Minute: 30}},
		},
	}
}

func TestResolveActiveMedication(t *testing.T) {
	now := time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)

	triggers, err := Resolve(activeMedication(), now)
	require.NoError(t, err)
	require.Len(t, triggers, 2)

	assert.Equal(t, "med-1", triggers[0].MedicationID)
	assert.Equal(t, "Metformin", triggers[0].MedicationName)
	assert.Equal(t, medication.TimeOfDay{Hour: 8}, triggers[0].TimeOfDay)
	assert.Equal(t, "Asia/Almaty", triggers[0].Timezone)
	assert.Equal(t, medication.TimeOfDay{Hour: 20, Minute: 30}, triggers[1].TimeOfDay)
}

func TestResolveInactiveMedication(t *testing.T) {
	med := activeMedication()
	med.IsActive = false

	triggers, err := Resolve(med, time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestResolveBeforeStartDate(t *testing.T) {
	med := activeMedication()
	med.StartDate = medication.Date{Year: 2026, Month: time.September, Day: 1}

	triggers, err := Resolve(med, time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestResolveAfterEndDate(t *testing.T) {
	med := activeMedication()
	med.EndDate = &medication.Date{Year: 2026, Month: time.August, Day: 22}

	triggers, err := Resolve(med, time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestResolveOnEndDateItselfStillFires(t *testing.T) {
	med := activeMedication()
	med.EndDate = &medication.Date{Year: 2026, Month: time.August, Day: 23}

	triggers, err := Resolve(med, time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, triggers, 2)
}

func TestResolveWindowUsesMedicationZone(t *testing.T) {
	// 20:00 UTC on Aug 31 is already Sep 1 in Almaty (UTC+5): the course
	// starting Sep 1 is live there even though UTC still says Aug 31.
	med := activeMedication()
	med.StartDate = medication.Date{Year: 2026, Month: time.September, Day: 1}
	now := time.Date(2026, time.August, 31, 20, 0, 0, 0, time.UTC)

	triggers, err := Resolve(med, now)
	require.NoError(t, err)
	assert.Len(t, triggers, 2)

	med.Timezone = "UTC"
	triggers, err = Resolve(med, now)
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestResolveUnknownZone(t *testing.T) {
	med := activeMedication()
	med.Timezone = "Nowhere/Nowhere"

	_, err := Resolve(med, time.Now())
	assert.Error(t, err)
}
