// File: internal/handlers/helpers.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/iyunix/go-mechanic/internal/dtos"
)

// Logger is what handlers log through.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, dtos.ErrorResponseDTO{Error: message})
}
