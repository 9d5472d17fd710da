package app

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ayusman/handsfree/internal/capture"
	"github.com/ayusman/handsfree/internal/config"
	"github.com/ayusman/handsfree/internal/detector"
)

// Tracking timing defaults, used when the gesture config leaves them unset.
const (
	DefaultCycleYield       = 10 * time.Millisecond
	DefaultFrameRetry       = 10 * time.Millisecond
	DefaultReopenBackoff    = 500 * time.Millisecond
	DefaultReopenBackoffMax = 5 * time.Second
	DefaultFrameStall       = 2 * time.Second
)

// tracker is the per-loop state of the tracking worker.
type tracker struct {
	lastClick time.Time
	// failingSince is when the current run of failed frame reads began.
	failingSince time.Time
}

// runTracker is the gesture tracking loop:
// 1. Read a frame (failures pause briefly, a lost camera is reopened)
// 2. Mirror it horizontally
// 3. Extract landmarks (no hand hides the pointer)
// 4. Map the primary hand and publish the pointer reading
// 5. When mouse control is on, move the pointer and click on a pinch
func (a *App) runTracker(ctx context.Context) {
	var tr tracker
	for {
		wait := a.trackOnce(ctx, &tr)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// trackOnce runs one tracking cycle and returns how long to wait before the
// next one.
func (a *App) trackOnce(ctx context.Context, tr *tracker) (wait time.Duration) {
	yield := durationOr(a.config.Gesture.CycleYieldMs, DefaultCycleYield)

	defer func() {
		if r := recover(); r != nil {
			a.log.Debug().Interface("panic", r).Msg("tracking cycle recovered")
			a.state.SetPointerHidden()
			wait = yield
		}
	}()

	frame, err := a.camera.ReadFrame()
	if err != nil {
		if errors.Is(err, capture.ErrCameraNotOpen) {
			tr.failingSince = time.Time{}
			a.state.SetPointerHidden()
			a.reopenCamera(ctx)
			return 0
		}

		now := a.clock()
		if tr.failingSince.IsZero() {
			tr.failingSince = now
		}
		stalled := now.Sub(tr.failingSince)
		if stalled < durationOr(a.config.Gesture.FrameStallMs, DefaultFrameStall) {
			a.log.Debug().Err(err).Msg("frame read failed")
			return durationOr(a.config.Gesture.FrameRetryMs, DefaultFrameRetry)
		}

		// An unplugged device can stay "open" while yielding nothing.
		a.log.Warn().Err(err).Dur("stalled", stalled).Msg("camera stopped delivering frames, reopening")
		tr.failingSince = time.Time{}
		a.state.SetPointerHidden()
		if cerr := a.camera.Close(); cerr != nil {
			a.log.Debug().Err(cerr).Msg("error closing stalled camera")
		}
		a.reopenCamera(ctx)
		return 0
	}
	defer frame.Close()
	tr.failingSince = time.Time{}

	mirrored := capture.Mirror(frame)
	defer mirrored.Close()

	hands, err := a.detector.Detect(&mirrored)
	if err != nil {
		if !errors.Is(err, detector.ErrServiceBackoff) {
			a.log.Debug().Err(err).Msg("landmark extraction failed")
		}
		a.state.SetPointerHidden()
		return yield
	}

	hand, ok := a.hands.Primary(hands)
	if !ok {
		a.state.SetPointerHidden()
		return yield
	}

	now := a.clock()
	m := a.mapper.MapHand(hand, capture.FrameSize(&mirrored), a.screen, now, tr.lastClick)
	a.state.SetPointer(m.ScreenX, m.ScreenY)

	if a.state.Flags().MouseControl {
		a.injector.MovePointer(m.ScreenX, m.ScreenY)
		if m.ShouldClick {
			a.injector.Click()
			tr.lastClick = now
			a.log.Debug().
				Int("x", m.ScreenX).
				Int("y", m.ScreenY).
				Float64("pinch_px", m.PinchDistance).
				Msg("click")
		}
	}
	return yield
}

// reopenCamera retries Open with capped exponential back-off until it
// succeeds or ctx is done.
func (a *App) reopenCamera(ctx context.Context) {
	b := retry.WithCappedDuration(
		durationOr(a.config.Gesture.ReopenBackoffMaxMs, DefaultReopenBackoffMax),
		retry.NewExponential(durationOr(a.config.Gesture.ReopenBackoffMs, DefaultReopenBackoff)),
	)

	attempts := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		if err := a.camera.Open(); err != nil {
			a.log.Debug().Err(err).Int("attempt", attempts).Msg("camera reopen failed")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return
	}
	a.log.Info().Int("attempts", attempts).Msg("camera reopened")
}

// durationOr converts a millisecond setting, falling back to def when unset.
func durationOr(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return config.Ms(ms)
}
