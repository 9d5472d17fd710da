package audio

import (
	"context"
	"math"
	"time"
)

// Listener segments a stream into utterances by signal energy. The energy
// threshold adapts to ambient noise and is kept across attempts.
type Listener struct {
	SampleRate int

	// EnergyThreshold is the RMS level above which a chunk counts as speech.
	EnergyThreshold float64

	// DynamicThreshold keeps adapting the threshold while waiting for speech.
	DynamicThreshold bool
	DynamicDamping   float64
	DynamicRatio     float64

	// PauseThreshold is the silence that ends a phrase.
	PauseThreshold time.Duration
	// PhraseThreshold is the minimum speech for a phrase to count; shorter
	// bursts are treated as noise.
	PhraseThreshold time.Duration
	// NonSpeakingDuration is the silence kept on both sides of a phrase.
	NonSpeakingDuration time.Duration
}

// NewListener returns a Listener with the standard endpointing parameters.
func NewListener(sampleRate int, energyThreshold float64, pause time.Duration) *Listener {
	return &Listener{
		SampleRate:          sampleRate,
		EnergyThreshold:     energyThreshold,
		DynamicThreshold:    true,
		DynamicDamping:      0.15,
		DynamicRatio:        1.5,
		PauseThreshold:      pause,
		PhraseThreshold:     300 * time.Millisecond,
		NonSpeakingDuration: 500 * time.Millisecond,
	}
}

// Calibrate reads ambient audio for d and moves the threshold toward the
// observed noise floor.
func (l *Listener) Calibrate(ctx context.Context, s Stream, d time.Duration) error {
	var elapsed time.Duration
	for elapsed < d {
		chunk, err := s.Read(ctx)
		if err != nil {
			return err
		}
		elapsed += l.chunkDuration(chunk)
		l.adapt(chunk)
	}
	return nil
}

// Listen waits up to timeout for speech to start, then records until a
// pause or until phraseLimit of audio has been captured. Elapsed time is
// measured in audio, not wall clock. A zero timeout or phraseLimit means
// no limit.
func (l *Listener) Listen(ctx context.Context, s Stream, timeout, phraseLimit time.Duration) (Utterance, error) {
	var elapsed time.Duration
	var buf [][]int16

	for {
		// Wait for speech, keeping a short pre-roll of silence.
		buf = buf[:0]
		var preroll time.Duration
		for {
			chunk, err := s.Read(ctx)
			if err != nil {
				return Utterance{}, err
			}
			d := l.chunkDuration(chunk)
			elapsed += d
			if timeout > 0 && elapsed > timeout {
				return Utterance{}, ErrListenTimeout
			}

			buf = append(buf, chunk)
			preroll += d
			for preroll > l.NonSpeakingDuration && len(buf) > 1 {
				preroll -= l.chunkDuration(buf[0])
				buf = buf[1:]
			}

			if Energy(chunk) > l.EnergyThreshold {
				break
			}
			if l.DynamicThreshold {
				l.adapt(chunk)
			}
		}

		// Record until the pause threshold or the phrase limit.
		phraseStart := elapsed
		var pause, phrase time.Duration
		var pauseChunks int
		for {
			chunk, err := s.Read(ctx)
			if err != nil {
				return Utterance{}, err
			}
			d := l.chunkDuration(chunk)
			elapsed += d
			if phraseLimit > 0 && elapsed-phraseStart > phraseLimit {
				break
			}

			buf = append(buf, chunk)
			phrase += d
			if Energy(chunk) > l.EnergyThreshold {
				pause = 0
				pauseChunks = 0
			} else {
				pause += d
				pauseChunks++
			}
			if pause > l.PauseThreshold {
				break
			}
		}

		// Bursts shorter than the phrase threshold are noise; keep waiting.
		if phrase-pause >= l.PhraseThreshold {
			// Drop trailing silence beyond the non-speaking margin.
			for pauseChunks > 0 && pause > l.NonSpeakingDuration {
				pause -= l.chunkDuration(buf[len(buf)-1])
				buf = buf[:len(buf)-1]
				pauseChunks--
			}
			return Utterance{Samples: flatten(buf), SampleRate: l.SampleRate}, nil
		}
	}
}

// adapt applies one step of the damped threshold update.
func (l *Listener) adapt(chunk []int16) {
	seconds := l.chunkDuration(chunk).Seconds()
	damping := math.Pow(l.DynamicDamping, seconds)
	target := Energy(chunk) * l.DynamicRatio
	l.EnergyThreshold = l.EnergyThreshold*damping + target*(1-damping)
}

func (l *Listener) chunkDuration(chunk []int16) time.Duration {
	if l.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(chunk)) * time.Second / time.Duration(l.SampleRate)
}

// Energy returns the RMS amplitude of a chunk.
func Energy(chunk []int16) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, s := range chunk {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(chunk)))
}

func flatten(chunks [][]int16) []int16 {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]int16, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
