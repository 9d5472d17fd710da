// Package api provides HTTP API handlers for the handsfree status surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/handsfree/internal/state"
	"github.com/ayusman/handsfree/internal/store"
)

// Controller is the status query interface the handlers serve.
type Controller interface {
	Set(t state.Target, enabled bool) bool
	Flags() state.Flags
	Pointer() state.Pointer
	TakeTranscript() (state.Transcript, bool)
	RecentTranscripts(limit int) ([]*store.TranscriptRecord, error)
	TranscriptByID(id string) (*store.TranscriptRecord, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
