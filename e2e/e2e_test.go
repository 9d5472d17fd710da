package e2e

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsfree/internal/app"
	"github.com/ayusman/handsfree/internal/audio"
	"github.com/ayusman/handsfree/internal/capture"
	"github.com/ayusman/handsfree/internal/config"
	"github.com/ayusman/handsfree/internal/detector"
	"github.com/ayusman/handsfree/internal/input"
	"github.com/ayusman/handsfree/internal/server"
	"github.com/ayusman/handsfree/internal/state"
	"github.com/ayusman/handsfree/internal/store"
	"github.com/ayusman/handsfree/internal/transcribe"
)

type rig struct {
	app *app.App
	det *detector.MockDetector
	rec *input.Recorder
}

func newRig(t *testing.T, s *store.Store) *rig {
	t.Helper()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	cfg := config.Default()
	cfg.Dictation.CyclePauseMs = 5
	cfg.Dictation.IdlePollMs = 5
	cfg.Dictation.TypingPaceMs = 0
	cfg.Gesture.CycleYieldMs = 5

	r := &rig{
		det: detector.NewMockDetector(),
		rec: input.NewRecorder(image.Pt(1920, 1080)),
	}

	a, err := app.New(app.Config{
		Store:       s,
		Camera:      capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		Detector:    r.det,
		Microphone:  audio.NewFakeDevice(audio.Phrase(12, 20, 20)...),
		Transcriber: transcribe.NewFake(transcribe.FakeResult{Text: "turn on the lights"}),
		Injector:    r.rec,
		Gesture:     cfg.Gesture,
		Dictation:   cfg.Dictation,
		Flags: state.Flags{
			MouseControl:  cfg.Flags.MouseControl,
			SpeechControl: cfg.Flags.SpeechControl,
			AutoType:      cfg.Flags.AutoType,
		},
		JournalLimit: cfg.Store.JournalLimit,
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	r.app = a
	return r
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func getJSON(t *testing.T, client *http.Client, url string, v any) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	r := newRig(t, s)
	r.det.SetHands([]detector.HandLandmarks{detector.PinchLandmarks()})

	srv := server.New(server.Config{Controller: r.app, PushInterval: 20 * time.Millisecond, Logger: zerolog.Nop()})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	if err := r.app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.app.Stop()

	t.Run("PointerFollowsHand", func(t *testing.T) {
		var p state.Pointer
		waitFor(t, "visible pointer", func() bool {
			getJSON(t, client, ts.URL+"/api/pointer", &p)
			return p.Visible
		})
		if p.X != 960 || p.Y != 432 {
			t.Errorf("pointer = (%d, %d), want (960, 432)", p.X, p.Y)
		}
		waitFor(t, "pinch click", func() bool { return r.rec.Clicks() > 0 })
	})

	t.Run("HandLeavesFrame", func(t *testing.T) {
		r.det.SetHands(nil)
		var p state.Pointer
		waitFor(t, "hidden pointer", func() bool {
			getJSON(t, client, ts.URL+"/api/pointer", &p)
			return !p.Visible
		})
		if p.X != 960 || p.Y != 432 {
			t.Errorf("hidden pointer moved to (%d, %d)", p.X, p.Y)
		}
	})

	t.Run("EnableSpeechOverHTTP", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/control/speech", "application/json", strings.NewReader(`{"enabled":true}`))
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		var echo struct {
			Enabled bool `json:"enabled"`
		}
		json.NewDecoder(resp.Body).Decode(&echo)
		resp.Body.Close()
		if !echo.Enabled {
			t.Error("expected enabled echo")
		}
	})

	t.Run("DictationTypesText", func(t *testing.T) {
		var got struct {
			Text string `json:"text"`
		}
		waitFor(t, "recognized transcript", func() bool {
			getJSON(t, client, ts.URL+"/api/transcript", &got)
			return got.Text != ""
		})
		if got.Text != "turn on the lights" {
			t.Errorf("transcript = %q", got.Text)
		}
		waitFor(t, "typed text", func() bool {
			return strings.HasPrefix(r.rec.Typed(), "turn on the lights ")
		})
	})

	t.Run("JournalRecordsOutcomes", func(t *testing.T) {
		var history struct {
			Transcripts []store.TranscriptRecord `json:"transcripts"`
		}
		waitFor(t, "journal entry", func() bool {
			getJSON(t, client, ts.URL+"/api/transcripts?limit=5", &history)
			return len(history.Transcripts) > 0
		})
		if history.Transcripts[0].Kind != state.KindRecognized {
			t.Errorf("newest kind = %s", history.Transcripts[0].Kind)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("health error = %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after app operations")
		}
		resp.Body.Close()
	})
}

func TestE2E_FlagsSurviveRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	first := newRig(t, s)
	first.app.SetMouseControl(false)
	first.app.SetAutoType(false)
	first.app.Stop()

	second := newRig(t, s)
	got := second.app.Flags()
	want := state.Flags{MouseControl: false, SpeechControl: false, AutoType: false}
	if got != want {
		t.Errorf("flags after restart = %+v, want %+v", got, want)
	}
}
