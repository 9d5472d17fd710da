package input

import (
	"context"
	"image"
	"time"

	"github.com/go-vgo/robotgo"
)

// Robot injects events through robotgo.
type Robot struct {
	// Screen overrides the detected screen size when non-zero.
	Screen image.Point
}

// NewRobot creates a Robot. A zero screen size means detect it.
func NewRobot(screen image.Point) *Robot {
	return &Robot{Screen: screen}
}

// MovePointer moves the system pointer to (x, y).
func (r *Robot) MovePointer(x, y int) {
	robotgo.Move(x, y)
}

// Click presses and releases the left button.
func (r *Robot) Click() {
	robotgo.Click("left")
}

// TypeText types text one character at a time, waiting pace between
// characters. It stops early when ctx is done.
func (r *Robot) TypeText(ctx context.Context, text string, pace time.Duration) error {
	return typePaced(ctx, text, pace, func(s string) {
		robotgo.TypeStr(s)
	})
}

// ScreenSize returns the override when set, otherwise the main display size.
func (r *Robot) ScreenSize() image.Point {
	if r.Screen.X > 0 && r.Screen.Y > 0 {
		return r.Screen
	}
	w, h := robotgo.GetScreenSize()
	return image.Pt(w, h)
}
