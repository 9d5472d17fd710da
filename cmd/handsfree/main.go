package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/handsfree/internal/app"
	"github.com/ayusman/handsfree/internal/audio"
	"github.com/ayusman/handsfree/internal/capture"
	"github.com/ayusman/handsfree/internal/config"
	"github.com/ayusman/handsfree/internal/detector"
	"github.com/ayusman/handsfree/internal/hotkey"
	"github.com/ayusman/handsfree/internal/input"
	"github.com/ayusman/handsfree/internal/logging"
	"github.com/ayusman/handsfree/internal/server"
	"github.com/ayusman/handsfree/internal/state"
	"github.com/ayusman/handsfree/internal/store"
	"github.com/ayusman/handsfree/internal/transcribe"
	"github.com/ayusman/handsfree/internal/tray"
)

func main() {
	configPath := flag.String("config", config.Path(), "path to the TOML config file")
	noTray := flag.Bool("no-tray", false, "run without the system tray")
	flag.Parse()

	if err := run(*configPath, *noTray); err != nil {
		fmt.Fprintf(os.Stderr, "handsfree: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, noTray bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	log := logger.Component("main")
	log.Info().Str("config", configPath).Msg("handsfree starting")

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(app.Config{
		Store:       st,
		Camera:      newCamera(cfg),
		Detector:    newDetector(cfg, logger),
		Microphone:  audio.NewMalgoDevice(cfg.Dictation.SampleRate, logger.Component("audio")),
		Transcriber: newTranscriber(cfg, logger),
		Injector:    input.NewRobot(image.Pt(cfg.Gesture.ScreenWidth, cfg.Gesture.ScreenHeight)),
		Gesture:     cfg.Gesture,
		Dictation:   cfg.Dictation,
		Flags: state.Flags{
			MouseControl:  cfg.Flags.MouseControl,
			SpeechControl: cfg.Flags.SpeechControl,
			AutoType:      cfg.Flags.AutoType,
		},
		JournalLimit: cfg.Store.JournalLimit,
		Logger:       logger.Logger,
	})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	defer application.Stop()

	webDir := cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		log.Info().Str("dir", webDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir:    webDir,
		Controller:   application,
		PushInterval: config.Ms(cfg.Server.PushIntervalMs),
		Logger:       logger.Logger,
	})
	srvDone := make(chan struct{})
	go func() {
		defer close(srvDone)
		if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
			log.Error().Err(err).Str("addr", cfg.Server.Addr).Msg("server failed")
		}
	}()

	if cfg.Hotkeys.Enabled {
		keys := hotkey.NewManager(application.Toggle, hotkey.BindingsFromConfig(cfg.Hotkeys), logger.Logger)
		if err := keys.Start(); err != nil {
			log.Warn().Err(err).Msg("hotkeys disabled")
		} else {
			defer keys.Stop()
		}
	}

	if noTray {
		<-ctx.Done()
	} else {
		t := tray.New(application)
		t.OnQuit(cancel)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		t.Run()
	}

	log.Info().Msg("shutting down")
	cancel()
	<-srvDone
	return nil
}

func newCamera(cfg *config.Config) capture.Camera {
	return capture.NewCamera(capture.Config{
		DeviceID: cfg.Gesture.CameraID,
		Width:    cfg.Gesture.FrameWidth,
		Height:   cfg.Gesture.FrameHeight,
	})
}

// newDetector starts the MediaPipe sidecar, falling back to a detector that
// never sees a hand.
func newDetector(cfg *config.Config, logger *logging.Logger) detector.Detector {
	log := logger.Component("detector")

	dc := detector.DefaultConfig()
	dc.MaxHands = cfg.Gesture.MaxHands
	dc.MinConfidence = cfg.Gesture.MinConfidence
	dc.RestartBackoff = config.Ms(cfg.Gesture.DetectorBackoffMs)
	dc.RestartBackoffMax = config.Ms(cfg.Gesture.DetectorBackoffMaxMs)

	mp, err := detector.NewMediaPipeDetector(dc, log)
	if err != nil {
		log.Warn().Err(err).Msg("MediaPipe not available, hand tracking disabled")
		return detector.NewMockDetector()
	}
	log.Info().Msg("using MediaPipe hand detection")
	return mp
}

func newTranscriber(cfg *config.Config, logger *logging.Logger) transcribe.Transcriber {
	log := logger.Component("transcribe")
	if cfg.Transcription.APIKey == "" {
		log.Warn().Msg("no transcription API key; dictation will report speech API errors")
	}
	return transcribe.NewOpenAI(transcribe.OpenAIConfig{
		APIKey:   cfg.Transcription.APIKey,
		BaseURL:  cfg.Transcription.BaseURL,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
		Timeout:  config.Ms(cfg.Transcription.TimeoutMs),
	}, log)
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.handsfree/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.Dir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
