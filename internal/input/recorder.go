package input

import (
	"context"
	"image"
	"strings"
	"sync"
	"time"
)

// Recorder is an Injector that records calls instead of touching the desktop.
type Recorder struct {
	mu     sync.Mutex
	screen image.Point
	moves  []image.Point
	clicks int
	typed  strings.Builder
}

// NewRecorder creates a Recorder reporting the given screen size.
func NewRecorder(screen image.Point) *Recorder {
	return &Recorder{screen: screen}
}

func (r *Recorder) MovePointer(x, y int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, image.Pt(x, y))
}

func (r *Recorder) Click() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks++
}

func (r *Recorder) TypeText(ctx context.Context, text string, pace time.Duration) error {
	return typePaced(ctx, text, pace, func(s string) {
		r.mu.Lock()
		r.typed.WriteString(s)
		r.mu.Unlock()
	})
}

func (r *Recorder) ScreenSize() image.Point {
	return r.screen
}

// Moves returns every recorded pointer move.
func (r *Recorder) Moves() []image.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]image.Point(nil), r.moves...)
}

// Clicks returns the number of recorded clicks.
func (r *Recorder) Clicks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clicks
}

// Typed returns all text typed so far.
func (r *Recorder) Typed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typed.String()
}
