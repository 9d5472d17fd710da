package audio

import (
	"context"
	"math"
	"sync"
)

// FakeDevice replays scripted chunks for tests. When the script runs out
// a stream returns the configured read error, or silence when none is set.
type FakeDevice struct {
	mu      sync.Mutex
	script  [][]int16
	openErr error
	readErr error
	opens   int
	closes  int
}

// NewFakeDevice creates a device that plays the given chunks on every Open.
func NewFakeDevice(chunks ...[]int16) *FakeDevice {
	return &FakeDevice{script: chunks}
}

// SetScript replaces the chunks played by subsequent Opens.
func (f *FakeDevice) SetScript(chunks ...[]int16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = chunks
}

// SetOpenError makes Open fail with err (nil clears it).
func (f *FakeDevice) SetOpenError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

// SetReadError makes reads fail with err once the script is exhausted.
func (f *FakeDevice) SetReadError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// Open returns a stream over the current script.
func (f *FakeDevice) Open() (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	return &fakeStream{dev: f, script: f.script, readErr: f.readErr}, nil
}

// Opens returns the number of successful Opens.
func (f *FakeDevice) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Closes returns the number of closed streams.
func (f *FakeDevice) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeStream struct {
	dev     *FakeDevice
	script  [][]int16
	pos     int
	readErr error
	closed  bool
}

func (s *fakeStream) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos < len(s.script) {
		c := s.script[s.pos]
		s.pos++
		return c, nil
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	return Silence(DefaultChunkFrames), nil
}

func (s *fakeStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.dev.mu.Lock()
	s.dev.closes++
	s.dev.mu.Unlock()
	return nil
}

// Silence returns n zero samples.
func Silence(n int) []int16 {
	return make([]int16, n)
}

// Tone returns n samples of a 440 Hz sine at 16 kHz with the given peak.
func Tone(n int, peak float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(peak * math.Sin(2*math.Pi*440*float64(i)/DefaultSampleRate))
	}
	return out
}

// Chunks repeats chunk count times.
func Chunks(chunk []int16, count int) [][]int16 {
	out := make([][]int16, count)
	for i := range out {
		out[i] = chunk
	}
	return out
}

// Phrase builds a script of lead silence, speech and trailing silence, each
// given as a number of DefaultChunkFrames chunks.
func Phrase(lead, speech, trail int) [][]int16 {
	var out [][]int16
	out = append(out, Chunks(Silence(DefaultChunkFrames), lead)...)
	out = append(out, Chunks(Tone(DefaultChunkFrames, 8000), speech)...)
	out = append(out, Chunks(Silence(DefaultChunkFrames), trail)...)
	return out
}
