package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkeep/go-remind/internal/domain/medication"
)

// fakeGateway records calls in order and simulates the device
// notification service.
type fakeGateway struct {
	calls       []string
	granted     bool
	scheduleErr error
	cancelErr   error
	nextID      int

	scheduled map[string][]ReminderRequest // category -> live reminders
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{granted: true, scheduled: make(map[string][]ReminderRequest)}
}

func (g *fakeGateway) CheckPermissions(ctx context.Context) (bool, error) {
	g.calls = append(g.calls, "check")
	return g.granted, nil
}

func (g *fakeGateway) ScheduleDailyReminder(ctx context.Context, req ReminderRequest) (string, error) {
	g.calls = append(g.calls, "schedule")
	if g.scheduleErr != nil {
		return "", g.scheduleErr
	}
	g.nextID++
	category := Category(req.MedicationID)
	g.scheduled[category] = append(g.scheduled[category], req)
	return fmt.Sprintf("rem-%d", g.nextID), nil
}

func (g *fakeGateway) CancelCategory(ctx context.Context, category string) error {
	g.calls = append(g.calls, "cancel")
	if g.cancelErr != nil {
		return g.cancelErr
	}
	delete(g.scheduled, category)
	return nil
}

func testMedication() medication.Medication {
	return medication.Medication{
		ID:        "med-1",
		Name:      "Metformin",
		StartDate: medication.Date{Year: 2026, Month: time.January, Day: 1},
		Timezone:  "UTC",
		IsActive:  true,
		Doses: []medication.Dose{
			{ID: "d1", TimeOfDay: medication.TimeOfDay{Hour: 8}},
			{ID: "d2", TimeOfDay: medication.TimeOfDay{Hour: 20}},
		},
	}
}

func fixedClock() time.Time {
	return time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)
}

func TestSyncSchedulesOneReminderPerDose(t *testing.T) {
	gw := newFakeGateway()
	s := NewScheduler(gw, nil, WithClock(fixedClock))

	result, err := s.Sync(context.Background(), testMedication())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scheduled)
	assert.Equal(t, []string{"rem-1", "rem-2"}, result.ReminderIDs)
	assert.Len(t, gw.scheduled[Category("med-1")], 2)

	req := gw.scheduled[Category("med-1")][0]
	assert.Equal(t, "med-1", req.MedicationID)
	assert.Equal(t, "Metformin", req.MedicationName)
	assert.Equal(t, 8, req.Hour)
	assert.Equal(t, "UTC", req.Timezone)
}

func TestSyncCancelsBeforeScheduling(t *testing.T) {
	gw := newFakeGateway()
	s := NewScheduler(gw, nil, WithClock(fixedClock))

	_, err := s.Sync(context.Background(), testMedication())
	require.NoError(t, err)

	require.True(t, len(gw.calls) >= 2)
	assert.Equal(t, "cancel", gw.calls[0])
	assert.Equal(t, "schedule", gw.calls[len(gw.calls)-1])
}

func TestSyncIsIdempotent(t *testing.T) {
	gw := newFakeGateway()
	s := NewScheduler(gw, nil, WithClock(fixedClock))
	med := testMedication()

	_, err := s.Sync(context.Background(), med)
	require.NoError(t, err)
	_, err = s.Sync(context.Background(), med)
	require.NoError(t, err)

	// Cancel-then-reschedule: the second pass replaces, never stacks.
	assert.Len(t, gw.scheduled[Category("med-1")], 2)
}

func TestSyncExpiredMedicationRetractsOnly(t *testing.T) {
	gw := newFakeGateway()
	s := NewScheduler(gw, nil, WithClock(fixedClock))
	med := testMedication()

	_, err := s.Sync(context.Background(), med)
	require.NoError(t, err)

	med.EndDate = &medication.Date{Year: 2026, Month: time.August, Day: 22}
	gw.calls = nil
	result, err := s.Sync(context.Background(), med)
	require.NoError(t, err)

	assert.Zero(t, result.Scheduled)
	assert.Empty(t, gw.scheduled[Category("med-1")])
	assert.NotContains(t, gw.calls, "check", "no permission prompt for a retraction")
}

func TestSyncPermissionDenied(t *testing.T) {
	gw := newFakeGateway()
	gw.granted = false
	s := NewScheduler(gw, nil, WithClock(fixedClock))

	result, err := s.Sync(context.Background(), testMedication())
	require.ErrorIs(t, err, ErrPermissionDenied)

	assert.True(t, result.RemindersDisabled)
	assert.Zero(t, result.Scheduled)
	assert.NotContains(t, gw.calls, "schedule")
}

func TestSyncScheduleFailureReturnsSchedulingError(t *testing.T) {
	gw := newFakeGateway()
	gw.scheduleErr = errors.New("bridge unavailable")
	s := NewScheduler(gw, nil, WithClock(fixedClock))

	result, err := s.Sync(context.Background(), testMedication())
	require.Error(t, err)

	var serr *SchedulingError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "schedule", serr.Op)
	assert.Equal(t, "med-1", serr.MedicationID)
	assert.Zero(t, result.Scheduled)
}

func TestSyncCancelFailureAbortsEarly(t *testing.T) {
	gw := newFakeGateway()
	gw.cancelErr = errors.New("bridge unavailable")
	s := NewScheduler(gw, nil, WithClock(fixedClock))

	_, err := s.Sync(context.Background(), testMedication())
	var serr *SchedulingError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "cancel", serr.Op)
	assert.NotContains(t, gw.calls, "schedule")
}

func TestCancel(t *testing.T) {
	gw := newFakeGateway()
	s := NewScheduler(gw, nil, WithClock(fixedClock))

	_, err := s.Sync(context.Background(), testMedication())
	require.NoError(t, err)

	require.NoError(t, s.Cancel(context.Background(), "med-1"))
	assert.Empty(t, gw.scheduled[Category("med-1")])
}

func TestDeferredSyncer(t *testing.T) {
	var d Deferred

	result, err := d.Sync(context.Background(), testMedication())
	require.NoError(t, err)
	assert.True(t, result.Deferred)

	assert.NoError(t, d.Cancel(context.Background(), "med-1"))
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "medication:med-1", Category("med-1"))
}
