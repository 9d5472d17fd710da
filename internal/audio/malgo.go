package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

// Capture defaults.
const (
	DefaultSampleRate  = 16000
	DefaultChunkFrames = 1024
	defaultStall       = 2 * time.Second
	chunkBacklog       = 64
)

// MalgoDevice captures mono 16-bit PCM from the default input device.
// Each Open initializes a fresh context so the microphone is held only for
// the duration of one listening attempt.
type MalgoDevice struct {
	SampleRate   int
	ChunkFrames  int
	StallTimeout time.Duration
	Log          zerolog.Logger
}

// NewMalgoDevice creates a device with the given sample rate.
func NewMalgoDevice(sampleRate int, log zerolog.Logger) *MalgoDevice {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &MalgoDevice{
		SampleRate:   sampleRate,
		ChunkFrames:  DefaultChunkFrames,
		StallTimeout: defaultStall,
		Log:          log,
	}
}

// Open starts capturing. The returned stream must be closed.
func (d *MalgoDevice) Open() (Stream, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(d.SampleRate)
	cfg.PeriodSizeInFrames = uint32(d.ChunkFrames)

	s := &malgoStream{
		ctx:    ctx,
		chunks: make(chan []int16, chunkBacklog),
		stall:  d.StallTimeout,
		log:    d.Log,
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			s.push(input)
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		s.freeContext()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	s.device = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		s.freeContext()
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	return s, nil
}

type malgoStream struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	chunks chan []int16
	stall  time.Duration
	log    zerolog.Logger

	dropped   atomic.Int64
	closeOnce sync.Once
}

// push runs on the audio thread and never blocks.
func (s *malgoStream) push(input []byte) {
	samples := make([]int16, len(input)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(input[2*i:]))
	}
	select {
	case s.chunks <- samples:
	default:
		s.dropped.Add(1)
	}
}

func (s *malgoStream) Read(ctx context.Context) ([]int16, error) {
	timer := time.NewTimer(s.stall)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk := <-s.chunks:
		return chunk, nil
	case <-timer.C:
		return nil, ErrDeviceStalled
	}
}

func (s *malgoStream) Close() error {
	s.closeOnce.Do(func() {
		if s.device != nil {
			if err := s.device.Stop(); err != nil {
				s.log.Error().Err(err).Msg("stop capture device")
			}
			s.device.Uninit()
		}
		s.freeContext()
		if n := s.dropped.Load(); n > 0 {
			s.log.Debug().Int64("chunks", n).Msg("dropped audio chunks")
		}
	})
	return nil
}

func (s *malgoStream) freeContext() {
	if err := s.ctx.Uninit(); err != nil {
		s.log.Error().Err(err).Msg("uninit audio context")
	}
	s.ctx.Free()
}
