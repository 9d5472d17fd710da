package transcribe

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"github.com/ayusman/handsfree/internal/audio"
)

const (
	flacBlockSize     = 4096
	flacBitsPerSample = 16
)

// EncodeFLAC encodes a mono 16-bit utterance as a FLAC stream.
func EncodeFLAC(u audio.Utterance) ([]byte, error) {
	if len(u.Samples) == 0 {
		return nil, errors.New("empty utterance")
	}
	if u.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", u.SampleRate)
	}

	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(u.SampleRate),
		NChannels:     1,
		BitsPerSample: flacBitsPerSample,
		NSamples:      uint64(len(u.Samples)),
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	for start := 0; start < len(u.Samples); start += flacBlockSize {
		end := min(start+flacBlockSize, len(u.Samples))
		block := u.Samples[start:end]

		samples := make([]int32, len(block))
		for i, s := range block {
			samples[i] = int32(s)
		}

		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    uint32(u.SampleRate),
				Channels:      frame.ChannelsMono,
				BitsPerSample: flacBitsPerSample,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing flac frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return buf.Bytes(), nil
}
