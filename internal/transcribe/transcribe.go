// Package transcribe turns captured utterances into text using a remote
// speech-to-text service.
package transcribe

import (
	"context"
	"errors"

	"github.com/ayusman/handsfree/internal/audio"
)

var (
	// ErrUnintelligible is returned when the service could not make out any
	// words in the audio.
	ErrUnintelligible = errors.New("speech was unintelligible")

	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("transcription service is not configured")
)

// Transcriber converts one utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, u audio.Utterance) (string, error)
}
