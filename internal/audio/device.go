// Package audio captures microphone input and segments it into utterances.
package audio

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrListenTimeout is returned when no speech starts before the listen timeout.
	ErrListenTimeout = errors.New("listening timed out waiting for phrase to start")

	// ErrDeviceStalled is returned when an open device stops delivering samples.
	ErrDeviceStalled = errors.New("audio device stopped delivering samples")
)

// Device opens a microphone for one listening attempt.
type Device interface {
	Open() (Stream, error)
}

// Stream delivers mono 16-bit PCM chunks from an open microphone.
type Stream interface {
	// Read blocks until the next chunk is available.
	Read(ctx context.Context) ([]int16, error)
	Close() error
}

// Utterance is one captured phrase.
type Utterance struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the length of the utterance.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.SampleRate)
}
