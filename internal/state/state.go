// Package state holds the control flags and latest readings shared between
// the tracking loop, the dictation loop and the UI surfaces.
package state

import (
	"fmt"
	"sync"
	"time"
)

// Flags are the three independent modality toggles.
type Flags struct {
	MouseControl  bool `json:"mouse_control"`
	SpeechControl bool `json:"speech_control"`
	AutoType      bool `json:"auto_type"`
}

// Target names a single flag.
type Target string

const (
	TargetMouse    Target = "mouse"
	TargetSpeech   Target = "speech"
	TargetAutoType Target = "autotype"
)

// Targets lists every flag in display order.
var Targets = []Target{TargetMouse, TargetSpeech, TargetAutoType}

// ParseTarget validates a flag name.
func ParseTarget(s string) (Target, error) {
	switch t := Target(s); t {
	case TargetMouse, TargetSpeech, TargetAutoType:
		return t, nil
	}
	return "", fmt.Errorf("unknown control target %q", s)
}

// Get returns the value of the named flag.
func (f Flags) Get(t Target) bool {
	switch t {
	case TargetMouse:
		return f.MouseControl
	case TargetSpeech:
		return f.SpeechControl
	case TargetAutoType:
		return f.AutoType
	}
	return false
}

// Pointer is the most recent hand-tracking reading. X and Y are stale when
// Visible is false.
type Pointer struct {
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Visible bool `json:"visible"`
}

// Shared is the explicit shared-state container. All methods are safe for
// concurrent use and every read returns a consistent snapshot.
type Shared struct {
	mu      sync.RWMutex
	flags   Flags
	pointer Pointer
	slot    *Transcript
	changed chan struct{}
}

// New creates a Shared container with the given initial flags.
func New(initial Flags) *Shared {
	return &Shared{
		flags:   initial,
		changed: make(chan struct{}),
	}
}

// Flags returns a snapshot of the control flags.
func (s *Shared) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// Set updates one flag and returns the stored value.
func (s *Shared) Set(t Target, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var field *bool
	switch t {
	case TargetMouse:
		field = &s.flags.MouseControl
	case TargetSpeech:
		field = &s.flags.SpeechControl
	case TargetAutoType:
		field = &s.flags.AutoType
	default:
		return false
	}

	if *field != enabled {
		*field = enabled
		close(s.changed)
		s.changed = make(chan struct{})
	}
	return *field
}

// Changed returns a channel closed on the next flag change. Callers must
// fetch a fresh channel after each notification.
func (s *Shared) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// Pointer returns a snapshot of the latest pointer reading.
func (s *Shared) Pointer() Pointer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pointer
}

// SetPointer records a visible hand at the given screen position.
func (s *Shared) SetPointer(x, y int) {
	s.mu.Lock()
	s.pointer = Pointer{X: x, Y: y, Visible: true}
	s.mu.Unlock()
}

// SetPointerHidden marks the hand as not visible, keeping the last position.
func (s *Shared) SetPointerHidden() {
	s.mu.Lock()
	s.pointer.Visible = false
	s.mu.Unlock()
}

// Publish stores t in the single transcript slot, replacing any unread one.
func (s *Shared) Publish(t Transcript) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	s.mu.Lock()
	s.slot = &t
	s.mu.Unlock()
}

// Take returns the unread transcript, if any, and marks it consumed.
func (s *Shared) Take() (Transcript, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == nil {
		return Transcript{}, false
	}
	t := *s.slot
	s.slot = nil
	return t, true
}
