// File: internal/handlers/provider_handler.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-mechanic/internal/dtos"
	"github.com/iyunix/go-mechanic/internal/services/diagnosis"
)

// ProviderHandler exposes the provider factory for operators.
type ProviderHandler struct {
	Factory *diagnosis.Factory
	Logger  Logger
}

func NewProviderHandler(f *diagnosis.Factory, logger Logger) *ProviderHandler {
	return &ProviderHandler{Factory: f, Logger: logger}
}

// ListProviders handles GET /api/providers.
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"default":   h.Factory.DefaultProvider(),
		"providers": h.Factory.ListAvailableProviders(r.Context()),
	})
}

// TestProvider handles GET /api/providers/{key}/test. It sends a real request upstream.
func (h *ProviderHandler) TestProvider(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !h.Factory.Has(key) {
		writeError(w, "Unknown provider", http.StatusNotFound)
		return
	}

	report := h.Factory.TestProvider(r.Context(), key)
	status := http.StatusOK
	if !report.Success {
		h.Logger.Warn("provider self-test failed", "provider", key, "error", report.Error)
		status = http.StatusBadGateway
	}
	writeJSON(w, status, report)
}

// EstimateCost handles GET /api/providers/{key}/cost?tokens=N.
func (h *ProviderHandler) EstimateCost(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !h.Factory.Has(key) {
		writeError(w, "Unknown provider", http.StatusNotFound)
		return
	}

	tokens := diagnosis.DefaultEstimatedTokens
	if raw := r.URL.Query().Get("tokens"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, "Invalid tokens value", http.StatusBadRequest)
			return
		}
		if n > 0 {
			tokens = n
		}
	}

	writeJSON(w, http.StatusOK, dtos.CostEstimateResponseDTO{
		Provider:        key,
		EstimatedTokens: tokens,
		EstimatedCost:   h.Factory.EstimateCost(key, tokens),
	})
}
