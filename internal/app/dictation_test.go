package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handsfree/internal/audio"
	"github.com/ayusman/handsfree/internal/state"
	"github.com/ayusman/handsfree/internal/transcribe"
)

// spoken is a microphone script with enough lead silence for calibration,
// 1.28s of speech and a trailing pause.
func spoken() [][]int16 {
	return audio.Phrase(12, 20, 20)
}

type panicTranscriber struct{}

func (panicTranscriber) Transcribe(context.Context, audio.Utterance) (string, error) {
	panic("decoder bug")
}

func speechOn() state.Flags {
	return state.Flags{MouseControl: true, SpeechControl: true, AutoType: true}
}

func TestDictateOnce_Classification(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness)
		wantKind state.Kind
		wantText string
	}{
		{
			name:     "silence times out",
			setup:    func(h *harness) {},
			wantKind: state.KindNoSpeech,
		},
		{
			name: "recognized",
			setup: func(h *harness) {
				h.mic.SetScript(spoken()...)
				h.app.transcriber = transcribe.NewFake(transcribe.FakeResult{Text: " turn on the lights "})
			},
			wantKind: state.KindRecognized,
			wantText: "turn on the lights",
		},
		{
			name: "unintelligible",
			setup: func(h *harness) {
				h.mic.SetScript(spoken()...)
				h.app.transcriber = transcribe.NewFake(transcribe.FakeResult{Err: transcribe.ErrUnintelligible})
			},
			wantKind: state.KindUnintelligible,
		},
		{
			name: "empty text is unintelligible",
			setup: func(h *harness) {
				h.mic.SetScript(spoken()...)
				h.app.transcriber = transcribe.NewFake(transcribe.FakeResult{Text: "  "})
			},
			wantKind: state.KindUnintelligible,
		},
		{
			name: "service failure",
			setup: func(h *harness) {
				h.mic.SetScript(spoken()...)
				h.app.transcriber = transcribe.NewFake(transcribe.FakeResult{Err: errors.New("503 service unavailable")})
			},
			wantKind: state.KindAPIError,
			wantText: "503 service unavailable",
		},
		{
			name: "not configured",
			setup: func(h *harness) {
				h.mic.SetScript(spoken()...)
				h.app.transcriber = transcribe.NewFake(transcribe.FakeResult{Err: transcribe.ErrNotConfigured})
			},
			wantKind: state.KindAPIError,
			wantText: transcribe.ErrNotConfigured.Error(),
		},
		{
			name:     "microphone open failure",
			setup:    func(h *harness) { h.mic.SetOpenError(errors.New("no input device")) },
			wantKind: state.KindMicError,
			wantText: "open microphone: no input device",
		},
		{
			name:     "microphone stalls",
			setup:    func(h *harness) { h.mic.SetReadError(audio.ErrDeviceStalled) },
			wantKind: state.KindMicError,
			wantText: audio.ErrDeviceStalled.Error(),
		},
		{
			name: "panic becomes internal error",
			setup: func(h *harness) {
				h.mic.SetScript(spoken()...)
				h.app.transcriber = panicTranscriber{}
			},
			wantKind: state.KindInternal,
			wantText: "decoder bug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, withFlags(speechOn()))
			tt.setup(h)

			ev, ok := h.app.dictateOnce(context.Background())
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, ev.Kind)
			assert.Equal(t, tt.wantText, ev.Text)
			assert.Equal(t, h.mic.Opens(), h.mic.Closes(), "microphone released after the attempt")
		})
	}
}

func TestDictateOnce_CancelledContext(t *testing.T) {
	h := newHarness(t, withFlags(speechOn()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := h.app.dictateOnce(ctx)
	assert.False(t, ok)
}

func TestDeliver_RecognizedWithAutoTypeTypesTextAndSpace(t *testing.T) {
	s := newTestStore(t)
	h := newHarness(t, withFlags(speechOn()), withStore(s))
	h.mic.SetScript(spoken()...)
	h.app.transcriber = transcribe.NewFake(transcribe.FakeResult{Text: "turn on the lights"})

	ev, ok := h.app.dictateOnce(context.Background())
	require.True(t, ok)
	h.app.deliver(context.Background(), ev)

	assert.Equal(t, "turn on the lights ", h.rec.Typed())

	got, ok := h.app.TakeTranscript()
	require.True(t, ok)
	assert.Equal(t, "turn on the lights", got.Payload())

	recent, err := h.app.RecentTranscripts(5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, state.KindRecognized, recent[0].Kind)
	assert.True(t, recent[0].Typed)

	byID, err := h.app.TranscriptByID(recent[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "turn on the lights", byID.Text)
}

func TestDeliver_AutoTypeOffDoesNotType(t *testing.T) {
	h := newHarness(t, withFlags(state.Flags{SpeechControl: true, AutoType: false}))

	h.app.deliver(context.Background(), state.Transcript{Kind: state.KindRecognized, Text: "hello"})

	assert.Empty(t, h.rec.Typed())
	got, ok := h.app.TakeTranscript()
	require.True(t, ok)
	assert.Equal(t, "hello", got.Text)
}

func TestDeliver_TaggedEventsAreNeverTyped(t *testing.T) {
	h := newHarness(t, withFlags(speechOn()))

	for _, kind := range []state.Kind{
		state.KindNoSpeech,
		state.KindMicError,
		state.KindUnintelligible,
		state.KindAPIError,
		state.KindInternal,
	} {
		h.app.deliver(context.Background(), state.Transcript{Kind: kind, Text: "detail"})
	}
	assert.Empty(t, h.rec.Typed())
}

func TestRunDictation_TimeoutPublishesNoSpeechWithoutTyping(t *testing.T) {
	h := newHarness(t, withFlags(speechOn()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.app.runDictation(ctx)
		close(done)
	}()

	var ev state.Transcript
	require.Eventually(t, func() bool {
		var ok bool
		ev, ok = h.app.TakeTranscript()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "[no speech detected - timeout]", ev.Payload())
	assert.Empty(t, h.rec.Typed())
	assert.Zero(t, h.stt.Calls(), "nothing sent for transcription")
}

func TestRunDictation_IdleUntilSpeechEnabled(t *testing.T) {
	h := newHarness(t, withFlags(state.Flags{SpeechControl: false}))
	h.app.config.Dictation.IdlePollMs = 60000

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.app.runDictation(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.mic.Opens(), "microphone untouched while speech control is off")

	// The flag change wakes the idle wait without waiting out the poll.
	h.app.SetSpeechControl(true)
	require.Eventually(t, func() bool { return h.mic.Opens() > 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, h.mic.Opens(), h.mic.Closes())
}

func TestMicBackoff_GrowsAndCaps(t *testing.T) {
	h := newHarness(t)

	b := h.app.newMicBackoff()
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, w := range want {
		got, stop := b.Next()
		assert.False(t, stop)
		assert.Equal(t, w, got, "attempt %d", i)
	}
}

func TestRunDictation_MicErrorKeepsLooping(t *testing.T) {
	h := newHarness(t, withFlags(speechOn()))
	h.app.config.Dictation.MicBackoffMs = 200
	h.app.config.Dictation.MicBackoffMaxMs = 200
	h.mic.SetOpenError(errors.New("no input device"))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	h.app.runDictation(ctx)

	ev, ok := h.app.TakeTranscript()
	require.True(t, ok)
	assert.Equal(t, state.KindMicError, ev.Kind)
	assert.Equal(t, "[mic error: open microphone: no input device]", ev.Payload())
}
