// Package input injects pointer and keyboard events into the desktop session.
package input

import (
	"context"
	"image"
	"time"
)

// Injector moves the pointer, clicks and types text.
type Injector interface {
	MovePointer(x, y int)
	Click()
	// TypeText types text one character at a time, waiting pace between
	// characters. It stops early when ctx is cancelled.
	TypeText(ctx context.Context, text string, pace time.Duration) error
	ScreenSize() image.Point
}

// typePaced feeds text to typeChar one rune at a time.
func typePaced(ctx context.Context, text string, pace time.Duration, typeChar func(string)) error {
	first := true
	for _, r := range text {
		if !first && pace > 0 {
			t := time.NewTimer(pace)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		first = false
		typeChar(string(r))
	}
	return nil
}
