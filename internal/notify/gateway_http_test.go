package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeGatewayCheckPermissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/permissions", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		json.NewEncoder(w).Encode(map[string]bool{"granted": true})
	}))
	defer srv.Close()

	g := NewBridgeGateway(srv.URL, "secret", nil)
	granted, err := g.CheckPermissions(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestBridgeGatewayScheduleDailyReminder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/reminders", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "med-1", body["medication_id"])
		assert.Equal(t, "Metformin", body["medication_name"])
		assert.Equal(t, "medication:med-1", body["category"])
		assert.Equal(t, "daily", body["repeat"])
		assert.Equal(t, float64(8), body["hour"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "rem-42"})
	}))
	defer srv.Close()

	g := NewBridgeGateway(srv.URL, "", nil)
	id, err := g.ScheduleDailyReminder(context.Background(), ReminderRequest{
		MedicationID:   "med-1",
		MedicationName: "Metformin",
		Hour:           8,
		Minute:         0,
		Timezone:       "UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, "rem-42", id)
}

func TestBridgeGatewayScheduleFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewBridgeGateway(srv.URL, "", nil)
	_, err := g.ScheduleDailyReminder(context.Background(), ReminderRequest{MedicationID: "med-1"})
	assert.Error(t, err)
}

func TestBridgeGatewayCancelCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "medication:med-1", r.URL.Query().Get("category"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	g := NewBridgeGateway(srv.URL, "", nil)
	assert.NoError(t, g.CancelCategory(context.Background(), Category("med-1")))
}

func TestBridgeGatewayCancelCategoryNotFoundIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewBridgeGateway(srv.URL, "", nil)
	assert.NoError(t, g.CancelCategory(context.Background(), Category("med-1")))
}
