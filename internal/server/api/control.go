package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/handsfree/internal/state"
)

// ControlHandler handles reads and writes of the control flags.
type ControlHandler struct {
	ctrl Controller
}

// NewControlHandler creates a new ControlHandler.
func NewControlHandler(ctrl Controller) *ControlHandler {
	return &ControlHandler{ctrl: ctrl}
}

type setFlagRequest struct {
	Enabled *bool `json:"enabled"`
}

type setFlagResponse struct {
	Enabled bool `json:"enabled"`
}

// ServeHTTP routes /api/control and /api/control/{target}.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/control")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.ctrl.Flags())
		return
	}

	target, err := state.ParseTarget(path)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, setFlagResponse{Enabled: h.ctrl.Flags().Get(target)})
	case http.MethodPost, http.MethodPut:
		h.set(w, r, target)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// set handles POST /api/control/{target} and echoes the stored value.
func (h *ControlHandler) set(w http.ResponseWriter, r *http.Request, target state.Target) {
	var req setFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	writeJSON(w, http.StatusOK, setFlagResponse{Enabled: h.ctrl.Set(target, *req.Enabled)})
}
