// Package gesture turns hand landmarks into pointer positions and pinch clicks.
package gesture

import (
	"image"
	"math"
	"time"

	"github.com/ayusman/handsfree/internal/detector"
)

// Default mapping parameters.
const (
	DefaultClickThresholdPx = 40.0
	DefaultClickDebounce    = 300 * time.Millisecond
)

// Mapping is the result of mapping one hand to the screen.
type Mapping struct {
	ScreenX       int     // Index fingertip in screen pixels
	ScreenY       int     // Index fingertip in screen pixels
	PinchDistance float64 // Index-to-middle fingertip distance in image pixels
	ShouldClick   bool    // Pinch is closed and the debounce window elapsed
}

// Mapper maps fingertip positions to screen coordinates and decides when a
// pinch counts as a click. It holds no state; the caller owns the time of
// the last accepted click.
type Mapper struct {
	ClickThresholdPx float64
	ClickDebounce    time.Duration
}

// NewMapper creates a Mapper with the default threshold and debounce.
func NewMapper() Mapper {
	return Mapper{
		ClickThresholdPx: DefaultClickThresholdPx,
		ClickDebounce:    DefaultClickDebounce,
	}
}

// Map converts normalized index and middle fingertip positions. imageSize is
// the mirrored frame size used for the pinch distance; screenSize is the
// target display. A zero lastClick means no click has been accepted yet.
func (m Mapper) Map(index, middle detector.Point3D, imageSize, screenSize image.Point, now, lastClick time.Time) Mapping {
	ix, iy := toPixels(index, imageSize)
	mx, my := toPixels(middle, imageSize)
	dist := math.Hypot(float64(ix-mx), float64(iy-my))

	out := Mapping{
		ScreenX:       int(index.X * float64(screenSize.X)),
		ScreenY:       int(index.Y * float64(screenSize.Y)),
		PinchDistance: dist,
	}

	if dist < m.ClickThresholdPx {
		out.ShouldClick = lastClick.IsZero() || now.Sub(lastClick) > m.ClickDebounce
	}
	return out
}

// MapHand maps the index and middle fingertips of hand.
func (m Mapper) MapHand(hand *detector.HandLandmarks, imageSize, screenSize image.Point, now, lastClick time.Time) Mapping {
	index, middle := hand.Fingertips()
	return m.Map(index, middle, imageSize, screenSize, now, lastClick)
}

func toPixels(p detector.Point3D, size image.Point) (int, int) {
	return int(p.X * float64(size.X)), int(p.Y * float64(size.Y))
}
