// Package hotkey registers global keyboard chords that toggle the control
// flags.
package hotkey

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
	"github.com/rs/zerolog"

	"github.com/ayusman/handsfree/internal/config"
	"github.com/ayusman/handsfree/internal/state"
)

// RepeatWindow suppresses key auto-repeat while a chord is held.
const RepeatWindow = 250 * time.Millisecond

var modifiers = []string{"ctrl", "shift", "alt", "cmd", "command", "super", "meta"}

// Binding maps a key chord to a flag. Keys follow gohook naming with the
// main key first, e.g. {"m", "ctrl", "shift"}.
type Binding struct {
	Target state.Target
	Keys   []string
}

// String renders the chord as ctrl+shift+m.
func (b Binding) String() string {
	if len(b.Keys) == 0 {
		return ""
	}
	parts := append(slices.Clone(b.Keys[1:]), b.Keys[0])
	return strings.Join(parts, "+")
}

// BindingsFromConfig returns the configured chords in flag order.
func BindingsFromConfig(cfg config.HotkeysConfig) []Binding {
	return []Binding{
		{Target: state.TargetMouse, Keys: cfg.MouseControl},
		{Target: state.TargetSpeech, Keys: cfg.SpeechControl},
		{Target: state.TargetAutoType, Keys: cfg.AutoType},
	}
}

// Validate checks that every chord has a main key and that no two flags
// share a chord.
func Validate(bindings []Binding) error {
	var errs []error
	seen := make(map[string]state.Target)

	for _, b := range bindings {
		if len(b.Keys) == 0 {
			errs = append(errs, fmt.Errorf("hotkey for %s is empty", b.Target))
			continue
		}
		if slices.Contains(modifiers, strings.ToLower(b.Keys[0])) {
			errs = append(errs, fmt.Errorf("hotkey for %s must start with a non-modifier key, got %q", b.Target, b.Keys[0]))
		}

		key := canonical(b.Keys)
		if other, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("hotkey %s is bound to both %s and %s", b, other, b.Target))
			continue
		}
		seen[key] = b.Target
	}
	return errors.Join(errs...)
}

func canonical(keys []string) string {
	lower := make([]string, len(keys))
	for i, k := range keys {
		lower[i] = strings.ToLower(k)
	}
	slices.Sort(lower[1:])
	return strings.Join(lower, "+")
}

// Manager listens for the chords and toggles the matching flag.
type Manager struct {
	toggle   func(state.Target) bool
	bindings []Binding
	log      zerolog.Logger
	clock    func() time.Time

	mu      sync.Mutex
	last    map[state.Target]time.Time
	running bool
	done    chan struct{}
}

// NewManager creates a Manager. toggle is called once per chord press.
func NewManager(toggle func(state.Target) bool, bindings []Binding, log zerolog.Logger) *Manager {
	return &Manager{
		toggle:   toggle,
		bindings: bindings,
		log:      log.With().Str("component", "hotkey").Logger(),
		clock:    time.Now,
		last:     make(map[state.Target]time.Time),
	}
}

// Start registers the chords with the OS hook and begins processing
// events in the background.
func (m *Manager) Start() error {
	if err := Validate(m.bindings); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	for _, b := range m.bindings {
		target := b.Target
		hook.Register(hook.KeyDown, b.Keys, func(hook.Event) {
			m.press(target)
		})
		m.log.Info().Str("target", string(target)).Str("chord", b.String()).Msg("hotkey registered")
	}

	events := hook.Start()
	m.done = make(chan struct{})
	m.running = true

	done := m.done
	go func() {
		<-hook.Process(events)
		close(done)
	}()
	return nil
}

// Stop ends the OS hook and waits for event processing to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	done := m.done
	m.mu.Unlock()

	hook.End()
	select {
	case <-done:
	case <-time.After(time.Second):
		m.log.Warn().Msg("hook did not stop in time")
	}
}

// press toggles target unless the same chord fired within RepeatWindow.
func (m *Manager) press(target state.Target) {
	now := m.clock()

	m.mu.Lock()
	if last, ok := m.last[target]; ok && now.Sub(last) < RepeatWindow {
		m.mu.Unlock()
		return
	}
	m.last[target] = now
	m.mu.Unlock()

	enabled := m.toggle(target)
	m.log.Debug().Str("target", string(target)).Bool("enabled", enabled).Msg("hotkey toggled")
}
