// Package handlers provides HTTP handlers for the medication API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medkeep/go-remind/internal/api/middleware"
	"github.com/medkeep/go-remind/internal/coordinator"
	"github.com/medkeep/go-remind/internal/domain/forecast"
	"github.com/medkeep/go-remind/internal/domain/medication"
	"github.com/medkeep/go-remind/internal/observability/metrics"
)

// MedicationHandler handles medication CRUD endpoints
type MedicationHandler struct {
	coord   *coordinator.Coordinator
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMedicationHandler creates a new handler. Metrics may be nil in tests.
func NewMedicationHandler(coord *coordinator.Coordinator, m *metrics.Metrics, logger *zap.Logger) *MedicationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationHandler{coord: coord, metrics: m, logger: logger}
}

// Routes returns the handler routes
func (h *MedicationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// WriteResponse is the response body for create and update. The
// forecast is present for active medications with a known stock.
type WriteResponse struct {
	Medication medication.Medication `json:"medication"`
	Forecast   *forecast.Forecast    `json:"forecast,omitempty"`
	State      coordinator.State     `json:"state"`
	Warnings   []string              `json:"warnings,omitempty"`
	SyncError  string                `json:"sync_error,omitempty"`
}

// Create handles POST /medications
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("medication-handler")
	ctx, span := tracer.Start(ctx, "create_medication")
	defer span.End()

	var draft medication.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.coord.Create(ctx, draft)
	if err != nil {
		h.writeError(w, err)
		return
	}
	span.SetAttributes(attribute.String("medication_id", result.Medication.ID))

	if h.metrics != nil {
		h.metrics.MedicationsCreated.Inc()
	}
	h.logger.Info("medication created",
		zap.String("id", result.Medication.ID),
		zap.String("state", string(result.State)),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	h.writeJSON(w, http.StatusCreated, h.writeResponse(result))
}

// Update handles PUT /medications/{id}
func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var draft medication.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.coord.Update(ctx, id, draft)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.MedicationsUpdated.Inc()
	}
	h.logger.Info("medication updated",
		zap.String("id", id),
		zap.String("state", string(result.State)),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	h.writeJSON(w, http.StatusOK, h.writeResponse(result))
}

// Delete handles DELETE /medications/{id}
func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if _, err := h.coord.Delete(ctx, id); err != nil {
		h.writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.MedicationsDeleted.Inc()
	}
	h.logger.Info("medication deleted",
		zap.String("id", id),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /medications/{id}
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	view, err := h.coord.Get(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// List handles GET /medications
func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.coord.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"medications": views,
		"count":       len(views),
	})
}

func (h *MedicationHandler) writeResponse(result *coordinator.Result) WriteResponse {
	resp := WriteResponse{
		Medication: result.Medication,
		State:      result.State,
		Warnings:   result.Warnings,
	}
	if result.Medication.IsActive {
		f := forecast.Compute(result.Medication)
		resp.Forecast = &f
	}
	if result.SyncErr != nil {
		resp.SyncError = result.SyncErr.Error()
	}
	return resp
}

// writeError maps domain errors to status codes. Validation failures are
// the caller's fault; everything else is reported as a server error.
func (h *MedicationHandler) writeError(w http.ResponseWriter, err error) {
	var verr *medication.ValidationError
	switch {
	case errors.As(err, &verr):
		if h.metrics != nil {
			h.metrics.ValidationFailures.Inc()
		}
		h.jsonError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, medication.ErrNotFound):
		h.jsonError(w, "medication not found", http.StatusNotFound)
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *MedicationHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *MedicationHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
