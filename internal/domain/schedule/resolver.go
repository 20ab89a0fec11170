// Package schedule resolves a medication's dose list into the daily
// reminder triggers that are currently eligible.
package schedule

import (
	"fmt"
	"time"

	"github.com/medkeep/go-remind/internal/domain/medication"
)

// Trigger is a resolved (time-of-day, zone) pair eligible for one
// repeating daily reminder. Daily recurrence itself is delegated to the
// notification layer, which repeats at the local wall-clock time.
type Trigger struct {
	MedicationID   string
	MedicationName string
	TimeOfDay      medication.TimeOfDay
	Timezone       string
}

// Resolve returns the active trigger set for med as of the instant now.
// The schedule window is evaluated against the calendar date in the
// medication's own zone, never the device zone, so a traveling user's
// reminders keep firing at the medically intended local time.
//
// An inactive or expired medication resolves to an empty set; syncing
// that empty set is what retracts reminders for a finished course
// without an explicit stop action.
func Resolve(med medication.Medication, now time.Time) ([]Trigger, error) {
	loc, err := time.LoadLocation(med.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", med.Timezone, err)
	}

	if !med.IsActive {
		return nil, nil
	}

	today := medication.DateIn(now, loc)
	if today.Before(med.StartDate) {
		return nil, nil
	}
	if med.EndDate != nil && today.After(*med.EndDate) {
		return nil, nil
	}

	triggers := make([]Trigger, 0, len(med.Doses))
	for _, dose := range med.Doses {
		triggers = append(triggers, Trigger{
			MedicationID:   med.ID,
			MedicationName: med.Name,
			TimeOfDay:      dose.TimeOfDay,
			Timezone:       med.Timezone,
		})
	}
	return triggers, nil
}
