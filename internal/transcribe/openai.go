package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/ayusman/handsfree/internal/audio"
)

// OpenAIConfig configures the OpenAI transcription client.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string // Optional, defaults to the public API
	Model    string // Optional, defaults to whisper-1
	Language string // Optional ISO-639-1 code; empty means auto-detect
	Timeout  time.Duration
}

// OpenAI transcribes utterances with the OpenAI audio transcription API.
type OpenAI struct {
	client   openai.Client
	model    string
	language string
	timeout  time.Duration
	ready    bool
	log      zerolog.Logger
}

// NewOpenAI creates the client. A missing API key is not an error here; each
// Transcribe call then fails with ErrNotConfigured so the failure shows up
// as a tagged transcript.
func NewOpenAI(cfg OpenAIConfig, log zerolog.Logger) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Failed attempts surface as tagged transcripts and the next
		// dictation cycle tries again.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = openai.AudioModelWhisper1
	}

	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		ready:    cfg.APIKey != "",
		log:      log,
	}
}

// Transcribe uploads the utterance as FLAC and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, u audio.Utterance) (string, error) {
	if !o.ready {
		return "", ErrNotConfigured
	}

	start := time.Now()
	data, err := EncodeFLAC(u)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnintelligible, err)
	}
	encodeTime := time.Since(start)

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), "utterance.flac", "audio/flac"),
		Model: o.model,
	}
	if o.language != "" && o.language != "auto" {
		params.Language = openai.String(o.language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && isAudioRejection(apiErr.Message) {
			return "", fmt.Errorf("%w: %s", ErrUnintelligible, apiErr.Message)
		}
		return "", fmt.Errorf("transcription request: %w", err)
	}

	o.log.Debug().
		Float64("audio_s", u.Duration().Seconds()).
		Float64("compressed_kb", float64(len(data))/1024).
		Float64("encode_ms", float64(encodeTime.Microseconds())/1000).
		Float64("total_ms", float64(time.Since(start).Microseconds())/1000).
		Msg("transcription")

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrUnintelligible
	}
	return text, nil
}

// isAudioRejection reports whether a 400 response complains about the audio
// itself rather than the request.
func isAudioRejection(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "audio") || strings.Contains(msg, "file format") || strings.Contains(msg, "decod")
}
