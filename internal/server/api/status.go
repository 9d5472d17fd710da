package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/handsfree/internal/store"
)

// DefaultHistoryLimit and MaxHistoryLimit bound /api/transcripts.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// PointerHandler serves the latest pointer reading.
type PointerHandler struct {
	ctrl Controller
}

// NewPointerHandler creates a new PointerHandler.
func NewPointerHandler(ctrl Controller) *PointerHandler {
	return &PointerHandler{ctrl: ctrl}
}

func (h *PointerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Pointer())
}

// TranscriptHandler serves the transcript slot (read-and-clear) and the
// journal history.
type TranscriptHandler struct {
	ctrl Controller
}

// NewTranscriptHandler creates a new TranscriptHandler.
func NewTranscriptHandler(ctrl Controller) *TranscriptHandler {
	return &TranscriptHandler{ctrl: ctrl}
}

type transcriptResponse struct {
	Text string     `json:"text"`
	Kind string     `json:"kind,omitempty"`
	At   *time.Time `json:"at,omitempty"`
}

type historyResponse struct {
	Transcripts []*store.TranscriptRecord `json:"transcripts"`
}

// Take handles GET /api/transcript. An empty text means nothing new.
func (h *TranscriptHandler) Take(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var resp transcriptResponse
	if t, ok := h.ctrl.TakeTranscript(); ok {
		resp.Text = t.Payload()
		resp.Kind = string(t.Kind)
		resp.At = &t.At
	}
	writeJSON(w, http.StatusOK, resp)
}

// History handles GET /api/transcripts?limit=N.
func (h *TranscriptHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	records, err := h.ctrl.RecentTranscripts(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transcripts")
		return
	}
	if records == nil {
		records = []*store.TranscriptRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Transcripts: records})
}

// Get handles GET /api/transcripts/{id}.
func (h *TranscriptHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/transcripts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Transcript not found")
		return
	}

	rec, err := h.ctrl.TranscriptByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transcript not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get transcript")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
