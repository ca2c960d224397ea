package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jbweber/homelab/roster/internal/logging"
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as JSON with the given status
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(r.Context()).Warn("failed to encode response", zap.Error(err))
	}
}

// writeError writes an ErrorResponse with the given status
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, ErrorResponse{Error: msg})
}
