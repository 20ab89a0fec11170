package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkeep/go-remind/internal/coordinator"
	"github.com/medkeep/go-remind/internal/notify"
	"github.com/medkeep/go-remind/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	coord := coordinator.New(memory.NewStore(), notify.Deferred{}, nil)
	handler := NewMedicationHandler(coord, nil, nil)

	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body map[string]interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func validBody() map[string]interface{} {
	return map[string]interface{}{
		"name":       "Metformin",
		"start_date": "2026-08-01",
		"timezone":   "UTC",
		"is_active":  true,
		"doses": []map[string]interface{}{
			{"time_of_day": "08:00", "before_meal": true},
			{"time_of_day": "20:00"},
		},
	}
}

func TestCreateMedication(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/", validBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created WriteResponse
	decodeBody(t, resp, &created)

	assert.NotEmpty(t, created.Medication.ID)
	assert.Equal(t, "Metformin", created.Medication.Name)
	assert.Len(t, created.Medication.Doses, 2)
	assert.Equal(t, coordinator.StatePersisted, created.State)
}

func TestCreateMedicationValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	body := validBody()
	body["name"] = ""

	resp := postJSON(t, srv.URL+"/", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	assert.Contains(t, errBody["error"], "name")
}

func TestCreateMedicationMalformedJSON(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetMedicationWithForecast(t *testing.T) {
	srv := newTestServer(t)

	body := validBody()
	body["remaining_stock"] = 10
	body["low_stock_threshold"] = 7

	resp := postJSON(t, srv.URL+"/", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created WriteResponse
	decodeBody(t, resp, &created)
	require.NotNil(t, created.Forecast, "write responses carry the forecast")

	resp, err := http.Get(srv.URL + "/" + created.Medication.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view coordinator.View
	decodeBody(t, resp, &view)

	require.NotNil(t, view.Forecast)
	require.NotNil(t, view.Forecast.DaysRemaining)
	assert.Equal(t, 5, *view.Forecast.DaysRemaining)
	assert.True(t, view.Forecast.IsLowStock)
}

func TestGetMedicationNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateMedication(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/", validBody())
	var created WriteResponse
	decodeBody(t, resp, &created)

	body := validBody()
	body["doses"] = []map[string]interface{}{{"time_of_day": "12:00"}}
	data, _ := json.Marshal(body)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/"+created.Medication.ID, bytes.NewReader(data))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated WriteResponse
	decodeBody(t, resp, &updated)
	assert.Len(t, updated.Medication.Doses, 1)
}

func TestUpdateMedicationNotFound(t *testing.T) {
	srv := newTestServer(t)

	data, _ := json.Marshal(validBody())
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/missing", bytes.NewReader(data))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteMedication(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/", validBody())
	var created WriteResponse
	decodeBody(t, resp, &created)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/"+created.Medication.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/" + created.Medication.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteMedicationNotFound(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/missing", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListMedications(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/", validBody())
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Medications []coordinator.View `json:"medications"`
		Count       int                `json:"count"`
	}
	decodeBody(t, resp, &listing)
	assert.Equal(t, 2, listing.Count)
	assert.Len(t, listing.Medications, 2)
}

func TestCreateMedicationWarningsSurface(t *testing.T) {
	srv := newTestServer(t)

	body := validBody()
	body["doses"] = []map[string]interface{}{
		{"time_of_day": "08:00"},
		{"time_of_day": "08:00"},
	}

	resp := postJSON(t, srv.URL+"/", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created WriteResponse
	decodeBody(t, resp, &created)
	assert.Len(t, created.Warnings, 1)
}
