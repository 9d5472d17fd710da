package transcribe

import (
	"context"
	"sync"

	"github.com/ayusman/handsfree/internal/audio"
)

// Fake returns scripted results in order, repeating the last one.
type Fake struct {
	mu      sync.Mutex
	results []FakeResult
	calls   int
}

// FakeResult is one scripted Transcribe outcome.
type FakeResult struct {
	Text string
	Err  error
}

// NewFake creates a Fake with the given results.
func NewFake(results ...FakeResult) *Fake {
	return &Fake{results: results}
}

// Transcribe returns the next scripted result.
func (f *Fake) Transcribe(ctx context.Context, _ audio.Utterance) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return "", nil
	}
	i := min(f.calls, len(f.results)) - 1
	r := f.results[i]
	return r.Text, r.Err
}

// Calls returns the number of Transcribe calls.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
