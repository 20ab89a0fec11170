package medication

import "time"

// Sync event actions carried on the medication.sync topic.
const (
	SyncActionUpsert = "upsert"
	SyncActionDelete = "delete"
)

// SyncEvent asks the notification worker to reconcile OS-level
// reminders with the stored schedule for one medication. Events are
// keyed by medication id so a consumer sees them in write order, and
// are safe to replay: the reconciliation they trigger is idempotent.
type SyncEvent struct {
	MedicationID string    `json:"medication_id"`
	Action       string    `json:"action"`
	OccurredAt   time.Time `json:"occurred_at"`
}
