package state

import (
	"fmt"
	"time"
)

// Kind classifies the outcome of one dictation attempt.
type Kind string

const (
	KindRecognized     Kind = "recognized"
	KindNoSpeech       Kind = "no_speech"
	KindMicError       Kind = "mic_error"
	KindUnintelligible Kind = "unintelligible"
	KindAPIError       Kind = "api_error"
	KindInternal       Kind = "internal_error"
)

// Transcript is one dictation outcome. Text holds the recognized words for
// KindRecognized and the failure detail otherwise.
type Transcript struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Tagged reports whether the transcript is a bracketed diagnostic rather
// than recognized text.
func (t Transcript) Tagged() bool {
	return t.Kind != KindRecognized
}

// Payload renders the transcript the way the UI displays it.
func (t Transcript) Payload() string {
	switch t.Kind {
	case KindRecognized:
		return t.Text
	case KindNoSpeech:
		return "[no speech detected - timeout]"
	case KindMicError:
		return fmt.Sprintf("[mic error: %s]", t.Text)
	case KindUnintelligible:
		return "[unintelligible]"
	case KindAPIError:
		return fmt.Sprintf("[speech API error: %s]", t.Text)
	case KindInternal:
		return fmt.Sprintf("[internal error: %s]", t.Text)
	}
	return fmt.Sprintf("[%s]", t.Kind)
}
