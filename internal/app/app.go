// Package app runs the gesture tracking and dictation loops over the shared
// control state and exposes the status query interface used by the UI shell.
package app

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/handsfree/internal/audio"
	"github.com/ayusman/handsfree/internal/capture"
	"github.com/ayusman/handsfree/internal/config"
	"github.com/ayusman/handsfree/internal/detector"
	"github.com/ayusman/handsfree/internal/gesture"
	"github.com/ayusman/handsfree/internal/input"
	"github.com/ayusman/handsfree/internal/state"
	"github.com/ayusman/handsfree/internal/store"
	"github.com/ayusman/handsfree/internal/transcribe"
)

// ErrMissingDependency is returned by New when a required capability is nil.
var ErrMissingDependency = errors.New("missing dependency")

// Config holds the devices, services and settings the App runs with.
type Config struct {
	// Store persists flags and journals transcripts. Optional.
	Store *store.Store

	Camera      capture.Camera
	Detector    detector.Detector
	Microphone  audio.Device
	Transcriber transcribe.Transcriber
	Injector    input.Injector

	Gesture   config.GestureConfig
	Dictation config.DictationConfig

	// Flags are the initial flags used when nothing is persisted.
	Flags        state.Flags
	JournalLimit int

	Logger zerolog.Logger
}

// App owns the shared control state and the two worker loops.
type App struct {
	config      Config
	state       *state.Shared
	camera      capture.Camera
	detector    detector.Detector
	hands       detector.Config
	mapper      gesture.Mapper
	mic         audio.Device
	listener    *audio.Listener
	transcriber transcribe.Transcriber
	injector    input.Injector
	screen      image.Point
	log         zerolog.Logger
	clock       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// New creates an App. Persisted flags override cfg.Flags and the
// transcript journal is pruned to cfg.JournalLimit.
func New(cfg Config) (*App, error) {
	switch {
	case cfg.Camera == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("camera"))
	case cfg.Detector == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("detector"))
	case cfg.Microphone == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("microphone"))
	case cfg.Transcriber == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("transcriber"))
	case cfg.Injector == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("injector"))
	}

	log := cfg.Logger.With().Str("component", "app").Logger()

	flags := cfg.Flags
	if cfg.Store != nil {
		loaded, err := cfg.Store.Settings().LoadFlags(cfg.Flags)
		if err != nil {
			log.Warn().Err(err).Msg("could not load persisted flags, using defaults")
		} else {
			flags = loaded
		}
		if cfg.JournalLimit > 0 {
			if n, err := cfg.Store.Transcripts().Prune(cfg.JournalLimit); err != nil {
				log.Warn().Err(err).Msg("could not prune transcript journal")
			} else if n > 0 {
				log.Debug().Int64("removed", n).Msg("pruned transcript journal")
			}
		}
	}

	screen := cfg.Injector.ScreenSize()
	if cfg.Gesture.ScreenWidth > 0 && cfg.Gesture.ScreenHeight > 0 {
		screen = image.Pt(cfg.Gesture.ScreenWidth, cfg.Gesture.ScreenHeight)
	}

	mapper := gesture.NewMapper()
	if cfg.Gesture.ClickThresholdPx > 0 {
		mapper.ClickThresholdPx = cfg.Gesture.ClickThresholdPx
	}
	if cfg.Gesture.ClickDebounceMs > 0 {
		mapper.ClickDebounce = config.Ms(cfg.Gesture.ClickDebounceMs)
	}

	hands := detector.DefaultConfig()
	if cfg.Gesture.MaxHands > 0 {
		hands.MaxHands = cfg.Gesture.MaxHands
	}
	hands.MinConfidence = cfg.Gesture.MinConfidence

	sampleRate := cfg.Dictation.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}

	a := &App{
		config:      cfg,
		state:       state.New(flags),
		camera:      cfg.Camera,
		detector:    cfg.Detector,
		hands:       hands,
		mapper:      mapper,
		mic:         cfg.Microphone,
		listener:    audio.NewListener(sampleRate, cfg.Dictation.EnergyThreshold, config.Ms(cfg.Dictation.PauseThresholdMs)),
		transcriber: cfg.Transcriber,
		injector:    cfg.Injector,
		screen:      screen,
		log:         log,
		clock:       time.Now,
	}

	log.Info().
		Bool("mouse", flags.MouseControl).
		Bool("speech", flags.SpeechControl).
		Bool("autotype", flags.AutoType).
		Int("screen_w", screen.X).
		Int("screen_h", screen.Y).
		Msg("app initialized")
	return a, nil
}

// Start opens the camera and launches both loops. A camera that fails to
// open is not fatal; the tracking loop keeps retrying it.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if a.stopped {
		return errors.New("app already stopped")
	}

	if err := a.camera.Open(); err != nil {
		a.log.Warn().Err(err).Msg("camera unavailable, will retry")
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.runTracker(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.runDictation(ctx)
	}()

	a.log.Info().Msg("loops started")
	return nil
}

// Stop cancels both loops, waits for them to exit and releases the camera
// and landmark model. Release failures are logged and swallowed.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}
	a.stopped = true

	if a.cancel != nil {
		a.cancel()
		a.wg.Wait()
		a.cancel = nil
	}

	if err := a.camera.Close(); err != nil {
		a.log.Error().Err(err).Msg("error closing camera")
	}
	if err := a.detector.Close(); err != nil {
		a.log.Error().Err(err).Msg("error closing detector")
	}

	a.log.Info().Msg("loops stopped")
}

// SetMouseControl enables or disables pointer injection and returns the
// stored value.
func (a *App) SetMouseControl(enabled bool) bool {
	return a.Set(state.TargetMouse, enabled)
}

// SetSpeechControl enables or disables the dictation loop and returns the
// stored value.
func (a *App) SetSpeechControl(enabled bool) bool {
	return a.Set(state.TargetSpeech, enabled)
}

// SetAutoType enables or disables typing of recognized text and returns the
// stored value.
func (a *App) SetAutoType(enabled bool) bool {
	return a.Set(state.TargetAutoType, enabled)
}

// Set updates one flag, persists it and returns the stored value.
func (a *App) Set(t state.Target, enabled bool) bool {
	v := a.state.Set(t, enabled)
	a.log.Info().Str("target", string(t)).Bool("enabled", v).Msg("flag set")

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SaveFlag(t, v); err != nil {
			a.log.Warn().Err(err).Str("target", string(t)).Msg("could not persist flag")
		}
	}
	return v
}

// Toggle flips one flag and returns the new value.
func (a *App) Toggle(t state.Target) bool {
	return a.Set(t, !a.state.Flags().Get(t))
}

// Flags returns a snapshot of the control flags.
func (a *App) Flags() state.Flags {
	return a.state.Flags()
}

// Changed returns a channel closed on the next flag change.
func (a *App) Changed() <-chan struct{} {
	return a.state.Changed()
}

// Pointer returns the latest pointer reading.
func (a *App) Pointer() state.Pointer {
	return a.state.Pointer()
}

// TakeTranscript returns the unread transcript event and clears it. A
// second call without a new event returns false.
func (a *App) TakeTranscript() (state.Transcript, bool) {
	return a.state.Take()
}

// RecentTranscripts returns up to limit journaled events, newest first.
func (a *App) RecentTranscripts(limit int) ([]*store.TranscriptRecord, error) {
	if a.config.Store == nil {
		return nil, nil
	}
	return a.config.Store.Transcripts().Recent(limit)
}

// TranscriptByID returns one journaled event. Without a store every lookup
// is store.ErrNotFound.
func (a *App) TranscriptByID(id string) (*store.TranscriptRecord, error) {
	if a.config.Store == nil {
		return nil, store.ErrNotFound
	}
	return a.config.Store.Transcripts().GetByID(id)
}

// sleep waits for d or until ctx is done. It reports whether ctx is still
// live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
