package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand landmark extraction.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to report (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// RestartBackoff and RestartBackoffMax bound how often a failing
	// landmark service is restarted.
	RestartBackoff    time.Duration
	RestartBackoffMax time.Duration
}

// DefaultConfig returns the single-hand configuration used for pointer control.
func DefaultConfig() Config {
	return Config{
		MaxHands:          1,
		MinConfidence:     0.7,
		MinTrackingConf:   0.5,
		RestartBackoff:    time.Second,
		RestartBackoffMax: 30 * time.Second,
	}
}

// Primary returns the hand that drives the pointer: the first one reported
// whose score passes the confidence floor.
func (c Config) Primary(hands []HandLandmarks) (*HandLandmarks, bool) {
	for i := range hands {
		if hands[i].Score >= c.MinConfidence {
			return &hands[i], true
		}
	}
	return nil, false
}
