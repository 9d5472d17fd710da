package hotkey

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handsfree/internal/config"
	"github.com/ayusman/handsfree/internal/state"
)

func TestBindingsFromConfig_Defaults(t *testing.T) {
	bindings := BindingsFromConfig(config.Default().Hotkeys)

	require.Len(t, bindings, 3)
	assert.Equal(t, "ctrl+shift+m", bindings[0].String())
	assert.Equal(t, state.TargetMouse, bindings[0].Target)
	assert.Equal(t, "ctrl+shift+s", bindings[1].String())
	assert.Equal(t, state.TargetSpeech, bindings[1].Target)
	assert.Equal(t, "ctrl+shift+t", bindings[2].String())
	assert.Equal(t, state.TargetAutoType, bindings[2].Target)

	assert.NoError(t, Validate(bindings))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		bindings []Binding
		wantErr  string
	}{
		{
			name:     "empty chord",
			bindings: []Binding{{Target: state.TargetMouse}},
			wantErr:  "hotkey for mouse is empty",
		},
		{
			name:     "modifier first",
			bindings: []Binding{{Target: state.TargetSpeech, Keys: []string{"ctrl", "s"}}},
			wantErr:  "must start with a non-modifier key",
		},
		{
			name: "duplicate chord with reordered modifiers",
			bindings: []Binding{
				{Target: state.TargetMouse, Keys: []string{"m", "ctrl", "shift"}},
				{Target: state.TargetAutoType, Keys: []string{"M", "shift", "ctrl"}},
			},
			wantErr: "bound to both mouse and autotype",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.bindings)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManager_PressSuppressesAutoRepeat(t *testing.T) {
	var toggled []state.Target
	shared := state.New(state.Flags{})
	toggle := func(target state.Target) bool {
		toggled = append(toggled, target)
		return shared.Set(target, !shared.Flags().Get(target))
	}

	m := NewManager(toggle, BindingsFromConfig(config.Default().Hotkeys), zerolog.Nop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return now }

	m.press(state.TargetSpeech)
	now = now.Add(30 * time.Millisecond)
	m.press(state.TargetSpeech) // auto-repeat
	m.press(state.TargetMouse)  // other chords are independent
	now = now.Add(RepeatWindow)
	m.press(state.TargetSpeech)

	assert.Equal(t, []state.Target{state.TargetSpeech, state.TargetMouse, state.TargetSpeech}, toggled)
	assert.False(t, shared.Flags().SpeechControl, "pressed twice")
	assert.True(t, shared.Flags().MouseControl)
}

func TestManager_StartRejectsInvalidBindings(t *testing.T) {
	m := NewManager(func(state.Target) bool { return false }, []Binding{{Target: state.TargetMouse}}, zerolog.Nop())
	assert.Error(t, m.Start())

	// Stop without a successful Start is a no-op.
	m.Stop()
}
