package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/handsfree/internal/server/api"
	"github.com/ayusman/handsfree/internal/state"
)

const writeTimeout = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StatusMessage is pushed to every WebSocket client each interval.
type StatusMessage struct {
	Pointer    state.Pointer `json:"pointer"`
	Transcript *string       `json:"transcript"` // payload of a newly taken transcript
	Flags      state.Flags   `json:"flags"`
	Timestamp  int64         `json:"timestamp"`
}

// Command is a client request received over the WebSocket.
type Command struct {
	Op      string `json:"op"`
	Target  string `json:"target"`
	Enabled bool   `json:"enabled"`
}

// StatusHandler broadcasts status snapshots via WebSocket and applies flag
// commands sent by clients.
type StatusHandler struct {
	ctrl     api.Controller
	interval time.Duration
	log      zerolog.Logger
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	done     chan struct{}
	once     sync.Once
}

// NewStatusHandler creates a StatusHandler and starts its broadcaster.
func NewStatusHandler(ctrl api.Controller, interval time.Duration, log zerolog.Logger) *StatusHandler {
	h := &StatusHandler{
		ctrl:     ctrl,
		interval: interval,
		log:      log,
		clients:  make(map[*websocket.Conn]bool),
		done:     make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		h.apply(cmd)
	}
}

// apply executes one client command. Unknown commands are ignored.
func (h *StatusHandler) apply(cmd Command) {
	if cmd.Op != "set" {
		h.log.Debug().Str("op", cmd.Op).Msg("ignoring websocket command")
		return
	}
	target, err := state.ParseTarget(cmd.Target)
	if err != nil {
		h.log.Debug().Err(err).Msg("ignoring websocket command")
		return
	}
	h.ctrl.Set(target, cmd.Enabled)
}

// broadcast sends a status snapshot to all connected clients. The
// transcript slot is only drained while someone is listening.
func (h *StatusHandler) broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		n := len(h.clients)
		h.mu.RUnlock()
		if n == 0 {
			continue
		}

		msg := StatusMessage{
			Pointer:   h.ctrl.Pointer(),
			Flags:     h.ctrl.Flags(),
			Timestamp: time.Now().UnixMilli(),
		}
		if t, ok := h.ctrl.TakeTranscript(); ok {
			payload := t.Payload()
			msg.Transcript = &payload
		}

		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug().Err(err).Msg("websocket write failed")
				conn.Close()
			}
		}
		h.mu.RUnlock()
	}
}

// Close stops the broadcaster and disconnects all clients.
func (h *StatusHandler) Close() {
	h.once.Do(func() {
		close(h.done)
		h.mu.RLock()
		for conn := range h.clients {
			conn.Close()
		}
		h.mu.RUnlock()
	})
}
