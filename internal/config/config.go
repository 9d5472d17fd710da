// Package config handles configuration loading and validation for handsfree.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the complete application configuration.
type Config struct {
	Gesture       GestureConfig       `toml:"gesture"`
	Dictation     DictationConfig     `toml:"dictation"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Flags         FlagsConfig         `toml:"flags"`
	Server        ServerConfig        `toml:"server"`
	Store         StoreConfig         `toml:"store"`
	Log           LogConfig           `toml:"log"`
	Hotkeys       HotkeysConfig       `toml:"hotkeys"`
}

// GestureConfig holds camera, landmark and pointer mapping settings.
type GestureConfig struct {
	CameraID int `toml:"camera_id"`

	// FrameWidth and FrameHeight are requested from the camera; the actual
	// frame size is read from every captured frame.
	FrameWidth  int `toml:"frame_width"`
	FrameHeight int `toml:"frame_height"`

	// ScreenWidth and ScreenHeight override the detected screen size when > 0.
	ScreenWidth  int `toml:"screen_width"`
	ScreenHeight int `toml:"screen_height"`

	ClickThresholdPx float64 `toml:"click_threshold_px"`
	ClickDebounceMs  int     `toml:"click_debounce_ms"`

	// CycleYieldMs is the pause between tracking cycles.
	CycleYieldMs int `toml:"cycle_yield_ms"`
	// FrameRetryMs is the pause after a failed frame read.
	FrameRetryMs int `toml:"frame_retry_ms"`
	// ReopenBackoffMs and ReopenBackoffMaxMs bound camera reopen attempts.
	ReopenBackoffMs    int `toml:"reopen_backoff_ms"`
	ReopenBackoffMaxMs int `toml:"reopen_backoff_max_ms"`
	// FrameStallMs is how long frame reads may keep failing before the
	// camera is treated as lost and reopened.
	FrameStallMs int `toml:"frame_stall_ms"`
	// DetectorBackoffMs and DetectorBackoffMaxMs bound restarts of a
	// landmark service that keeps failing.
	DetectorBackoffMs    int `toml:"detector_backoff_ms"`
	DetectorBackoffMaxMs int `toml:"detector_backoff_max_ms"`

	MaxHands      int     `toml:"max_hands"`
	MinConfidence float64 `toml:"min_confidence"`
}

// DictationConfig holds microphone listening and typing settings.
type DictationConfig struct {
	IdlePollMs      int `toml:"idle_poll_ms"`
	CyclePauseMs    int `toml:"cycle_pause_ms"`
	CalibrationMs   int `toml:"calibration_ms"`
	ListenTimeoutMs int `toml:"listen_timeout_ms"`
	PhraseLimitMs   int `toml:"phrase_limit_ms"`
	TypingPaceMs    int `toml:"typing_pace_ms"`
	MicBackoffMs    int `toml:"mic_backoff_ms"`
	MicBackoffMaxMs int `toml:"mic_backoff_max_ms"`
	SampleRate      int `toml:"sample_rate"`

	// EnergyThreshold is the starting speech energy level; it adapts to
	// ambient noise during calibration.
	EnergyThreshold  float64 `toml:"energy_threshold"`
	PauseThresholdMs int     `toml:"pause_threshold_ms"`
}

// TranscriptionConfig holds remote transcription settings.
type TranscriptionConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	Language  string `toml:"language"`
	TimeoutMs int    `toml:"timeout_ms"`
}

// FlagsConfig holds the initial control flags used when nothing is persisted.
type FlagsConfig struct {
	MouseControl  bool `toml:"mouse_control"`
	SpeechControl bool `toml:"speech_control"`
	AutoType      bool `toml:"auto_type"`
}

// ServerConfig holds the local UI server settings.
type ServerConfig struct {
	Addr           string `toml:"addr"`
	StaticDir      string `toml:"static_dir"`
	PushIntervalMs int    `toml:"push_interval_ms"`
}

// StoreConfig holds database settings.
type StoreConfig struct {
	Path string `toml:"path"`
	// JournalLimit is the number of transcripts kept in the journal.
	JournalLimit int `toml:"journal_limit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// HotkeysConfig holds global keyboard shortcut settings.
type HotkeysConfig struct {
	Enabled       bool     `toml:"enabled"`
	MouseControl  []string `toml:"mouse_control"`
	SpeechControl []string `toml:"speech_control"`
	AutoType      []string `toml:"auto_type"`
}

// Dir returns the handsfree data directory (~/.handsfree).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handsfree"
	}
	return filepath.Join(home, ".handsfree")
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Default returns a Config populated with the calibrated reference values.
func Default() *Config {
	return &Config{
		Gesture: GestureConfig{
			CameraID:             0,
			FrameWidth:           640,
			FrameHeight:          480,
			ClickThresholdPx:     40,
			ClickDebounceMs:      300,
			CycleYieldMs:         10,
			FrameRetryMs:         10,
			ReopenBackoffMs:      500,
			ReopenBackoffMaxMs:   5000,
			FrameStallMs:         2000,
			DetectorBackoffMs:    1000,
			DetectorBackoffMaxMs: 30000,
			MaxHands:             1,
			MinConfidence:        0.7,
		},
		Dictation: DictationConfig{
			IdlePollMs:       200,
			CyclePauseMs:     200,
			CalibrationMs:    500,
			ListenTimeoutMs:  3000,
			PhraseLimitMs:    6000,
			TypingPaceMs:     20,
			MicBackoffMs:     1000,
			MicBackoffMaxMs:  10000,
			SampleRate:       16000,
			EnergyThreshold:  300,
			PauseThresholdMs: 800,
		},
		Transcription: TranscriptionConfig{
			Model:     "whisper-1",
			TimeoutMs: 15000,
		},
		Flags: FlagsConfig{
			MouseControl:  true,
			SpeechControl: false,
			AutoType:      true,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8765",
			PushIntervalMs: 100,
		},
		Store: StoreConfig{
			Path:         filepath.Join(Dir(), "handsfree.db"),
			JournalLimit: 1000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Hotkeys: HotkeysConfig{
			Enabled:       true,
			MouseControl:  []string{"m", "ctrl", "shift"},
			SpeechControl: []string{"s", "ctrl", "shift"},
			AutoType:      []string{"t", "ctrl", "shift"},
		},
	}
}

// Load reads the TOML file at path on top of the defaults, applies
// environment overrides and validates the result. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Transcription.APIKey == "" {
		c.Transcription.APIKey = v
	}
	if v := os.Getenv("HANDSFREE_OPENAI_BASE_URL"); v != "" {
		c.Transcription.BaseURL = v
	}
	if v := os.Getenv("HANDSFREE_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("HANDSFREE_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks that every threshold and duration is usable.
func (c *Config) Validate() error {
	var errs []error

	positive := map[string]int{
		"gesture.frame_width":             c.Gesture.FrameWidth,
		"gesture.frame_height":            c.Gesture.FrameHeight,
		"gesture.click_debounce_ms":       c.Gesture.ClickDebounceMs,
		"gesture.cycle_yield_ms":          c.Gesture.CycleYieldMs,
		"gesture.frame_retry_ms":          c.Gesture.FrameRetryMs,
		"gesture.reopen_backoff_ms":       c.Gesture.ReopenBackoffMs,
		"gesture.reopen_backoff_max_ms":   c.Gesture.ReopenBackoffMaxMs,
		"gesture.frame_stall_ms":          c.Gesture.FrameStallMs,
		"gesture.detector_backoff_ms":     c.Gesture.DetectorBackoffMs,
		"gesture.detector_backoff_max_ms": c.Gesture.DetectorBackoffMaxMs,
		"gesture.max_hands":               c.Gesture.MaxHands,
		"dictation.idle_poll_ms":          c.Dictation.IdlePollMs,
		"dictation.cycle_pause_ms":        c.Dictation.CyclePauseMs,
		"dictation.calibration_ms":        c.Dictation.CalibrationMs,
		"dictation.listen_timeout_ms":     c.Dictation.ListenTimeoutMs,
		"dictation.phrase_limit_ms":       c.Dictation.PhraseLimitMs,
		"dictation.mic_backoff_ms":        c.Dictation.MicBackoffMs,
		"dictation.mic_backoff_max_ms":    c.Dictation.MicBackoffMaxMs,
		"dictation.sample_rate":           c.Dictation.SampleRate,
		"dictation.pause_threshold_ms":    c.Dictation.PauseThresholdMs,
		"transcription.timeout_ms":        c.Transcription.TimeoutMs,
		"server.push_interval_ms":         c.Server.PushIntervalMs,
		"store.journal_limit":             c.Store.JournalLimit,
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	if c.Gesture.ClickThresholdPx <= 0 {
		errs = append(errs, fmt.Errorf("gesture.click_threshold_px must be positive, got %g", c.Gesture.ClickThresholdPx))
	}
	if c.Gesture.MinConfidence < 0 || c.Gesture.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("gesture.min_confidence must be within [0,1], got %g", c.Gesture.MinConfidence))
	}
	if c.Gesture.ScreenWidth < 0 || c.Gesture.ScreenHeight < 0 {
		errs = append(errs, errors.New("gesture screen size overrides must not be negative"))
	}
	if c.Dictation.TypingPaceMs < 0 {
		errs = append(errs, fmt.Errorf("dictation.typing_pace_ms must not be negative, got %d", c.Dictation.TypingPaceMs))
	}
	if c.Dictation.EnergyThreshold <= 0 {
		errs = append(errs, fmt.Errorf("dictation.energy_threshold must be positive, got %g", c.Dictation.EnergyThreshold))
	}
	if c.Gesture.DetectorBackoffMaxMs < c.Gesture.DetectorBackoffMs {
		errs = append(errs, errors.New("gesture.detector_backoff_max_ms must be >= gesture.detector_backoff_ms"))
	}
	if c.Dictation.MicBackoffMaxMs < c.Dictation.MicBackoffMs {
		errs = append(errs, errors.New("dictation.mic_backoff_max_ms must be >= dictation.mic_backoff_ms"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	return errors.Join(errs...)
}

// Ms converts an integer millisecond setting to a time.Duration.
func Ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
