// File: internal/handlers/diagnosis_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-mechanic/internal/dtos"
	"github.com/iyunix/go-mechanic/internal/middleware"
	"github.com/iyunix/go-mechanic/internal/services"
	"github.com/iyunix/go-mechanic/internal/services/diagnosis"
)

const (
	defaultHistoryLimit = 20
	maxRequestBodyBytes = 1 << 20
)

type DiagnosisHandler struct {
	DiagnosisService *services.DiagnosisService
	Logger           Logger
}

func NewDiagnosisHandler(ds *services.DiagnosisService, logger Logger) *DiagnosisHandler {
	return &DiagnosisHandler{
		DiagnosisService: ds,
		Logger:           logger,
	}
}

// CreateDiagnosis handles POST /api/diagnoses for guests and users alike.
func (h *DiagnosisHandler) CreateDiagnosis(w http.ResponseWriter, r *http.Request) {
	var req dtos.CreateDiagnosisRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if fields, err := dtos.Validate(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, dtos.ErrorResponseDTO{Error: "Validation failed", Fields: fields})
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	d, err := h.DiagnosisService.Submit(r.Context(), userID, req.ToDomain())
	if err != nil {
		h.writeDiagnosisError(w, err, userID)
		return
	}
	writeJSON(w, http.StatusCreated, toDiagnosisResponse(d))
}

// GetDiagnosis handles GET /api/diagnoses/{id}.
func (h *DiagnosisHandler) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	userID := middleware.UserIDFromContext(r.Context())

	d, err := h.DiagnosisService.GetDiagnosis(r.Context(), id, userID)
	switch {
	case errors.Is(err, services.ErrDiagnosisNotFound):
		writeError(w, "Diagnosis not found", http.StatusNotFound)
		return
	case errors.Is(err, services.ErrHistoryUnavailable):
		writeError(w, "Diagnosis history is not available", http.StatusServiceUnavailable)
		return
	case err != nil:
		h.Logger.Error("failed to load diagnosis", "id", id, "error", err)
		writeError(w, "Could not retrieve diagnosis", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toDiagnosisResponse(d))
}

// ListDiagnoses handles GET /api/diagnoses for the authenticated user.
func (h *DiagnosisHandler) ListDiagnoses(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == 0 {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	history, err := h.DiagnosisService.History(r.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, services.ErrHistoryUnavailable) {
			writeError(w, "Diagnosis history is not available", http.StatusServiceUnavailable)
			return
		}
		h.Logger.Error("failed to list diagnoses", "user_id", userID, "error", err)
		writeError(w, "Could not retrieve diagnoses", http.StatusInternalServerError)
		return
	}

	resp := dtos.DiagnosisHistoryResponseDTO{Diagnoses: make([]dtos.DiagnosisResponseDTO, 0, len(history))}
	for i := range history {
		resp.Diagnoses = append(resp.Diagnoses, toDiagnosisResponse(&history[i]))
	}
	resp.Count = len(resp.Diagnoses)
	writeJSON(w, http.StatusOK, resp)
}

// writeDiagnosisError maps provider failures to user-safe responses. Details only go to the log.
func (h *DiagnosisHandler) writeDiagnosisError(w http.ResponseWriter, err error, userID uint) {
	var perr *diagnosis.ProviderError
	if !errors.As(err, &perr) {
		h.Logger.Error("diagnosis failed", "user_id", userID, "error", err)
		writeError(w, "Could not complete the diagnosis", http.StatusInternalServerError)
		return
	}

	h.Logger.Warn("diagnosis provider error", "user_id", userID, "kind", string(perr.Kind), "error", err)
	writeError(w, perr.UserMessage(), http.StatusServiceUnavailable)
}
