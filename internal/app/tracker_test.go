package app

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsfree/internal/capture"
	"github.com/ayusman/handsfree/internal/detector"
	"github.com/ayusman/handsfree/internal/state"
)

// fakeClock returns a fixed time that tests advance by hand.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func installClock(a *App) *fakeClock {
	c := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a.clock = c.Now
	return c
}

type panicDetector struct{}

func (panicDetector) Detect(*gocv.Mat) ([]detector.HandLandmarks, error) { panic("model crashed") }
func (panicDetector) Close() error                                       { return nil }

func TestTrackOnce_ReferenceScenario(t *testing.T) {
	h := newHarness(t)
	installClock(h.app)

	// Index tip at (100,100) and middle tip at (110,105) on a 640x480 frame.
	index := detector.Point3D{X: 100.0 / 640, Y: 100.0 / 480}
	middle := detector.Point3D{X: 110.0 / 640, Y: 105.0 / 480}
	h.det.SetHands([]detector.HandLandmarks{detector.HandAt(index, middle)})

	var tr tracker
	h.app.trackOnce(context.Background(), &tr)

	p := h.app.Pointer()
	assert.True(t, p.Visible)
	assert.Equal(t, 300, p.X)
	assert.InDelta(t, 225, p.Y, 1)
	assert.Equal(t, []image.Point{image.Pt(p.X, p.Y)}, h.rec.Moves())
	assert.Equal(t, 1, h.rec.Clicks(), "first pinch clicks")
}

func TestTrackOnce_ClickDebounce(t *testing.T) {
	h := newHarness(t)
	clock := installClock(h.app)
	h.det.SetHands([]detector.HandLandmarks{detector.PinchLandmarks()})

	var tr tracker
	steps := []struct {
		advance    time.Duration
		wantClicks int
	}{
		{0, 1},
		{100 * time.Millisecond, 1},
		{200 * time.Millisecond, 1}, // exactly 300ms after the click
		{1 * time.Millisecond, 2},
		{299 * time.Millisecond, 2},
		{2 * time.Millisecond, 3},
	}
	for i, step := range steps {
		clock.Advance(step.advance)
		h.app.trackOnce(context.Background(), &tr)
		assert.Equal(t, step.wantClicks, h.rec.Clicks(), "step %d", i)
	}
	assert.Len(t, h.rec.Moves(), len(steps), "pointer moves every cycle")
}

func TestTrackOnce_OpenHandNeverClicks(t *testing.T) {
	h := newHarness(t)
	clock := installClock(h.app)
	h.det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks()})

	var tr tracker
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		h.app.trackOnce(context.Background(), &tr)
	}
	assert.Zero(t, h.rec.Clicks())
	assert.Len(t, h.rec.Moves(), 5)
}

func TestTrackOnce_MouseControlOffOnlyPublishes(t *testing.T) {
	h := newHarness(t, withFlags(state.Flags{MouseControl: false}))
	installClock(h.app)
	h.det.SetHands([]detector.HandLandmarks{detector.PinchLandmarks()})

	var tr tracker
	h.app.trackOnce(context.Background(), &tr)

	p := h.app.Pointer()
	assert.True(t, p.Visible)
	assert.Equal(t, 960, p.X)
	assert.Equal(t, 432, p.Y)
	assert.Empty(t, h.rec.Moves())
	assert.Zero(t, h.rec.Clicks())
	assert.True(t, tr.lastClick.IsZero(), "suppressed clicks do not start the debounce window")
}

func TestTrackOnce_NoHandKeepsLastPosition(t *testing.T) {
	h := newHarness(t)
	installClock(h.app)
	var tr tracker

	h.det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks()})
	h.app.trackOnce(context.Background(), &tr)
	before := h.app.Pointer()
	require.True(t, before.Visible)

	tests := []struct {
		name  string
		setup func()
	}{
		{"no hands", func() { h.det.SetHands(nil) }},
		{"low confidence", func() {
			hand := detector.PointingLandmarks()
			hand.Score = 0.2
			h.det.SetHands([]detector.HandLandmarks{hand})
		}},
		{"detector error", func() {
			h.det.SetHands(nil)
			h.det.SetError(errors.New("sidecar exited"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			h.app.trackOnce(context.Background(), &tr)

			p := h.app.Pointer()
			assert.False(t, p.Visible)
			assert.Equal(t, before.X, p.X)
			assert.Equal(t, before.Y, p.Y)
		})
	}
	assert.Len(t, h.rec.Moves(), 1, "no moves without a hand")
}

func TestTrackOnce_FrameReadFailurePauses(t *testing.T) {
	h := newHarness(t)
	h.cam.SetReadError(errors.New("timeout"))

	var tr tracker
	wait := h.app.trackOnce(context.Background(), &tr)

	assert.Equal(t, 10*time.Millisecond, wait)
	assert.Zero(t, h.det.Calls(), "no extraction without a frame")
}

func TestTrackOnce_ReopensDroppedCamera(t *testing.T) {
	h := newHarness(t)
	h.det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks()})
	var tr tracker

	h.app.trackOnce(context.Background(), &tr)
	require.True(t, h.app.Pointer().Visible)

	h.cam.Drop()
	opens := h.cam.Opens()
	h.app.trackOnce(context.Background(), &tr)

	assert.False(t, h.app.Pointer().Visible, "hidden while the camera is down")
	assert.Equal(t, opens+1, h.cam.Opens())
	assert.True(t, h.cam.IsOpen())

	h.app.trackOnce(context.Background(), &tr)
	assert.True(t, h.app.Pointer().Visible)
}

func TestTrackOnce_StalledCameraIsReopened(t *testing.T) {
	h := newHarness(t)
	clock := installClock(h.app)
	h.det.SetHands([]detector.HandLandmarks{detector.PointingLandmarks()})
	var tr tracker

	h.app.trackOnce(context.Background(), &tr)
	require.True(t, h.app.Pointer().Visible)

	// The device stays open but stops yielding frames.
	h.cam.SetReadError(capture.ErrFrameUnavailable)
	opens := h.cam.Opens()
	for i := 0; i < 5; i++ {
		clock.Advance(100 * time.Millisecond)
		wait := h.app.trackOnce(context.Background(), &tr)
		assert.Equal(t, 10*time.Millisecond, wait)
	}
	assert.Equal(t, opens, h.cam.Opens(), "short gaps do not reopen")
	assert.True(t, h.app.Pointer().Visible, "short gaps keep visibility")

	clock.Advance(2 * time.Second)
	wait := h.app.trackOnce(context.Background(), &tr)

	assert.Zero(t, wait)
	assert.False(t, h.app.Pointer().Visible, "hidden once the camera is treated as lost")
	assert.Equal(t, opens+1, h.cam.Opens())

	h.cam.SetReadError(nil)
	h.app.trackOnce(context.Background(), &tr)
	assert.True(t, h.app.Pointer().Visible)
	assert.True(t, tr.failingSince.IsZero())
}

func TestTrackOnce_FrameSuccessResetsStall(t *testing.T) {
	h := newHarness(t)
	clock := installClock(h.app)
	var tr tracker

	h.cam.SetReadError(capture.ErrFrameUnavailable)
	h.app.trackOnce(context.Background(), &tr)
	clock.Advance(1500 * time.Millisecond)

	h.cam.SetReadError(nil)
	h.app.trackOnce(context.Background(), &tr)

	h.cam.SetReadError(capture.ErrFrameUnavailable)
	opens := h.cam.Opens()
	clock.Advance(1500 * time.Millisecond)
	wait := h.app.trackOnce(context.Background(), &tr)

	assert.Equal(t, 10*time.Millisecond, wait, "stall window restarts after a good frame")
	assert.Equal(t, opens, h.cam.Opens())
}

func TestTrackOnce_ReopenGivesUpOnCancel(t *testing.T) {
	h := newHarness(t)
	h.cam.Drop()
	h.cam.SetOpenError(errors.New("device busy"))
	opens := h.cam.Opens()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var tr tracker
	done := make(chan struct{})
	go func() {
		h.app.trackOnce(ctx, &tr)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reopen did not stop on cancel")
	}
	assert.Greater(t, h.cam.Opens()-opens, 1, "retried with back-off")
	assert.False(t, h.cam.IsOpen())
}

func TestTrackOnce_RecoversFromPanic(t *testing.T) {
	h := newHarness(t)
	h.app.detector = panicDetector{}

	var tr tracker
	var wait time.Duration
	assert.NotPanics(t, func() {
		wait = h.app.trackOnce(context.Background(), &tr)
	})
	assert.Equal(t, time.Millisecond, wait)
	assert.False(t, h.app.Pointer().Visible)
}
