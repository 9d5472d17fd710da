// Package server provides the local HTTP and WebSocket surface the UI shell
// polls for pointer readings, transcripts and control flags.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/handsfree/internal/server/api"
)

// DefaultPushInterval is the WebSocket status push period.
const DefaultPushInterval = 100 * time.Millisecond

// Config holds the server configuration.
type Config struct {
	StaticDir string
	// Controller is the status query interface. Without it only health and
	// static files are served.
	Controller   api.Controller
	PushInterval time.Duration
	Logger       zerolog.Logger
}

// Server represents the HTTP server for handsfree.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	status *StatusHandler
	log    zerolog.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.PushInterval <= 0 {
		config.PushInterval = DefaultPushInterval
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    config.Logger.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if ctrl := s.config.Controller; ctrl != nil {
		control := api.NewControlHandler(ctrl)
		s.mux.Handle("/api/control", control)
		s.mux.Handle("/api/control/", control)

		s.mux.Handle("/api/pointer", api.NewPointerHandler(ctrl))

		transcripts := api.NewTranscriptHandler(ctrl)
		s.mux.HandleFunc("/api/transcript", transcripts.Take)
		s.mux.HandleFunc("/api/transcripts", transcripts.History)
		s.mux.HandleFunc("/api/transcripts/", transcripts.Get)

		s.status = NewStatusHandler(ctrl, s.config.PushInterval, s.log)
		s.mux.Handle("/api/ws", s.status)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close stops the status broadcaster and disconnects WebSocket clients.
func (s *Server) Close() {
	if s.status != nil {
		s.status.Close()
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
