package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShared_FlagsReadBack(t *testing.T) {
	s := New(Flags{MouseControl: true, AutoType: true})

	tests := []struct {
		target  Target
		enabled bool
	}{
		{TargetMouse, false},
		{TargetSpeech, true},
		{TargetAutoType, false},
		{TargetMouse, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			got := s.Set(tt.target, tt.enabled)
			assert.Equal(t, tt.enabled, got)
			assert.Equal(t, tt.enabled, s.Flags().Get(tt.target))
		})
	}
}

func TestShared_SetUnknownTarget(t *testing.T) {
	s := New(Flags{MouseControl: true})
	assert.False(t, s.Set(Target("volume"), true))
	assert.Equal(t, Flags{MouseControl: true}, s.Flags())
}

func TestShared_ChangedClosesOnChange(t *testing.T) {
	s := New(Flags{})
	ch := s.Changed()

	s.Set(TargetSpeech, false)
	select {
	case <-ch:
		t.Fatal("channel closed without a change")
	default:
	}

	s.Set(TargetSpeech, true)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("channel not closed after change")
	}

	assert.NotEqual(t, ch, s.Changed(), "a fresh channel is issued")
}

func TestShared_PointerHiddenKeepsPosition(t *testing.T) {
	s := New(Flags{})
	s.SetPointer(960, 540)
	assert.Equal(t, Pointer{X: 960, Y: 540, Visible: true}, s.Pointer())

	s.SetPointerHidden()
	assert.Equal(t, Pointer{X: 960, Y: 540, Visible: false}, s.Pointer())
}

func TestShared_TakeIsReadAndClear(t *testing.T) {
	s := New(Flags{})

	_, ok := s.Take()
	assert.False(t, ok)

	s.Publish(Transcript{Kind: KindRecognized, Text: "hello"})
	got, ok := s.Take()
	require.True(t, ok)
	assert.Equal(t, "hello", got.Payload())
	assert.False(t, got.At.IsZero())

	_, ok = s.Take()
	assert.False(t, ok, "second immediate take returns nothing")
}

func TestShared_PublishOverwritesUnread(t *testing.T) {
	s := New(Flags{})
	s.Publish(Transcript{Kind: KindRecognized, Text: "first"})
	s.Publish(Transcript{Kind: KindNoSpeech})

	got, ok := s.Take()
	require.True(t, ok)
	assert.Equal(t, KindNoSpeech, got.Kind)
}

func TestShared_ConcurrentAccess(t *testing.T) {
	s := New(Flags{})
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.SetPointer(i, j)
				s.Set(TargetMouse, j%2 == 0)
				s.Publish(Transcript{Kind: KindRecognized, Text: "x"})
				p := s.Pointer()
				if p.Visible {
					assert.GreaterOrEqual(t, p.X, 0)
				}
				s.Take()
			}
		}(i)
	}
	wg.Wait()
}

func TestParseTarget(t *testing.T) {
	for _, name := range []string{"mouse", "speech", "autotype"} {
		got, err := ParseTarget(name)
		require.NoError(t, err)
		assert.Equal(t, Target(name), got)
	}

	_, err := ParseTarget("keyboard")
	assert.Error(t, err)
}

func TestTranscript_Payload(t *testing.T) {
	tests := []struct {
		name string
		in   Transcript
		want string
	}{
		{"recognized", Transcript{Kind: KindRecognized, Text: "turn on the lights"}, "turn on the lights"},
		{"no speech", Transcript{Kind: KindNoSpeech}, "[no speech detected - timeout]"},
		{"mic", Transcript{Kind: KindMicError, Text: "device unplugged"}, "[mic error: device unplugged]"},
		{"unintelligible", Transcript{Kind: KindUnintelligible}, "[unintelligible]"},
		{"api", Transcript{Kind: KindAPIError, Text: "503"}, "[speech API error: 503]"},
		{"internal", Transcript{Kind: KindInternal, Text: "boom"}, "[internal error: boom]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Payload())
			assert.Equal(t, tt.in.Kind != KindRecognized, tt.in.Tagged())
		})
	}
}
