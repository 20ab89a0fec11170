// Package notify keeps OS-level reminders consistent with the stored
// dose schedule via an idempotent cancel-then-reschedule sync.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// ErrPermissionDenied indicates notifications are not authorized on the
// target device. It is non-fatal: the medication save stands, reminders
// are skipped, and the caller can prompt the user to enable them later.
var ErrPermissionDenied = errors.New("notification permission denied")

// SchedulingError wraps a failed gateway call after persistence already
// succeeded. The medication stays saved and flagged out of sync; a
// later Sync retries safely because the whole sequence is idempotent.
type SchedulingError struct {
	Op           string
	MedicationID string
	Err          error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling failed: %s (medication %s): %v", e.Op, e.MedicationID, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// ReminderRequest describes one repeating daily reminder. The payload
// carries the medication id and name so a tap on the notification can
// deep-link back to the medication.
type ReminderRequest struct {
	MedicationID   string `json:"medication_id"`
	MedicationName string `json:"medication_name"`
	Hour           int    `json:"hour"`
	Minute         int    `json:"minute"`
	Timezone       string `json:"timezone"`
}

// Gateway abstracts the platform notification service. Implementations
// must make CancelCategory idempotent: cancelling zero reminders is not
// an error.
type Gateway interface {
	CheckPermissions(ctx context.Context) (bool, error)
	ScheduleDailyReminder(ctx context.Context, req ReminderRequest) (string, error)
	CancelCategory(ctx context.Context, category string) error
}

// Category returns the reminder category tag for one medication. All of
// a medication's reminders share it, which is what makes the cancel
// half of a sync total.
func Category(medicationID string) string {
	return "medication:" + medicationID
}
