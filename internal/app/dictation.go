package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ayusman/handsfree/internal/audio"
	"github.com/ayusman/handsfree/internal/config"
	"github.com/ayusman/handsfree/internal/state"
	"github.com/ayusman/handsfree/internal/transcribe"
)

// Dictation timing defaults, used when the dictation config leaves them
// unset.
const (
	DefaultIdlePoll      = 200 * time.Millisecond
	DefaultCyclePause    = 200 * time.Millisecond
	DefaultCalibration   = 500 * time.Millisecond
	DefaultListenTimeout = 3 * time.Second
	DefaultPhraseLimit   = 6 * time.Second
	DefaultMicBackoff    = time.Second
	DefaultMicBackoffMax = 10 * time.Second
)

// runDictation alternates between idling while speech control is off and
// running one listen/transcribe attempt per cycle while it is on. Every
// attempt ends in exactly one published transcript event.
func (a *App) runDictation(ctx context.Context) {
	backoff := a.newMicBackoff()

	for {
		changed := a.state.Changed()
		if !a.state.Flags().SpeechControl {
			if !a.idle(ctx, changed) {
				return
			}
			continue
		}

		ev, ok := a.dictateOnce(ctx)
		if !ok {
			return
		}
		a.deliver(ctx, ev)

		pause := durationOr(a.config.Dictation.CyclePauseMs, DefaultCyclePause)
		if ev.Kind == state.KindMicError {
			pause, _ = backoff.Next()
		} else {
			backoff = a.newMicBackoff()
		}
		if !sleep(ctx, pause) {
			return
		}
	}
}

// idle waits one poll interval, returning early when a flag changes. It
// reports whether ctx is still live.
func (a *App) idle(ctx context.Context, changed <-chan struct{}) bool {
	t := time.NewTimer(durationOr(a.config.Dictation.IdlePollMs, DefaultIdlePoll))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	case <-changed:
	}
	return true
}

// dictateOnce runs one listening attempt with the microphone held only for
// its duration. It returns false when ctx was cancelled mid-attempt.
func (a *App) dictateOnce(ctx context.Context) (ev state.Transcript, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Msg("dictation cycle recovered")
			ev = state.Transcript{Kind: state.KindInternal, Text: fmt.Sprint(r)}
			ok = ctx.Err() == nil
		}
	}()

	u, err := a.listen(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return state.Transcript{}, false
		}
		return classifyListen(err), true
	}

	text, err := a.transcriber.Transcribe(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return state.Transcript{}, false
		}
		a.log.Warn().Err(err).Dur("utterance", u.Duration()).Msg("transcription failed")
		return classifyTranscribe(err), true
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return state.Transcript{Kind: state.KindUnintelligible}, true
	}
	return state.Transcript{Kind: state.KindRecognized, Text: text}, true
}

// listen opens the microphone, calibrates and captures one utterance.
func (a *App) listen(ctx context.Context) (u audio.Utterance, err error) {
	stream, err := a.mic.Open()
	if err != nil {
		return audio.Utterance{}, fmt.Errorf("open microphone: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			a.log.Error().Err(cerr).Msg("error closing microphone")
		}
	}()

	calibration := durationOr(a.config.Dictation.CalibrationMs, DefaultCalibration)
	if err := a.listener.Calibrate(ctx, stream, calibration); err != nil {
		return audio.Utterance{}, err
	}
	a.log.Debug().Float64("threshold", a.listener.EnergyThreshold).Msg("calibrated")

	return a.listener.Listen(ctx, stream,
		durationOr(a.config.Dictation.ListenTimeoutMs, DefaultListenTimeout),
		durationOr(a.config.Dictation.PhraseLimitMs, DefaultPhraseLimit),
	)
}

// deliver publishes ev, types recognized text when auto-type is on and
// journals the outcome.
func (a *App) deliver(ctx context.Context, ev state.Transcript) {
	ev.At = a.clock()
	a.state.Publish(ev)

	typed := false
	if ev.Kind == state.KindRecognized && a.state.Flags().AutoType {
		pace := config.Ms(a.config.Dictation.TypingPaceMs)
		if err := a.injector.TypeText(ctx, ev.Text+" ", pace); err != nil {
			a.log.Warn().Err(err).Msg("typing interrupted")
		} else {
			typed = true
		}
	}

	logEv := a.log.Info()
	if ev.Tagged() {
		logEv = a.log.Debug()
	}
	logEv.Str("kind", string(ev.Kind)).Bool("typed", typed).Msg(ev.Payload())

	if a.config.Store != nil {
		if _, err := a.config.Store.Transcripts().Append(ev, typed); err != nil {
			a.log.Warn().Err(err).Msg("could not journal transcript")
		}
	}
}

func (a *App) newMicBackoff() retry.Backoff {
	return retry.WithCappedDuration(
		durationOr(a.config.Dictation.MicBackoffMaxMs, DefaultMicBackoffMax),
		retry.NewExponential(durationOr(a.config.Dictation.MicBackoffMs, DefaultMicBackoff)),
	)
}

// classifyListen maps a capture failure to its transcript event.
func classifyListen(err error) state.Transcript {
	if errors.Is(err, audio.ErrListenTimeout) {
		return state.Transcript{Kind: state.KindNoSpeech}
	}
	return state.Transcript{Kind: state.KindMicError, Text: err.Error()}
}

// classifyTranscribe maps a transcription failure to its transcript event.
func classifyTranscribe(err error) state.Transcript {
	if errors.Is(err, transcribe.ErrUnintelligible) {
		return state.Transcript{Kind: state.KindUnintelligible}
	}
	return state.Transcript{Kind: state.KindAPIError, Text: err.Error()}
}
