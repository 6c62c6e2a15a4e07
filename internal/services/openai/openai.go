package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
	langpkg "audio2subs/internal/language"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "whisper-1"

// Config holds client settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// Backend is an asr.Backend backed by the audio transcriptions endpoint.
type Backend struct {
	client   oai.Client
	model    string
	language string
}

// New constructs a Backend. The client does not retry on its own; failed
// chunks are retried by the scheduler.
func New(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return &Backend{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: langpkg.ToISO2(cfg.Language),
	}, nil
}

func (b *Backend) Name() string { return "openai" }

func (b *Backend) Close() error { return nil }

type verbose struct {
	Text  string `json:"text"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe uploads pcm as WAV and returns word-level timings.
func (b *Backend) Transcribe(ctx context.Context, pcm audio.PCM) ([]asr.Word, error) {
	if pcm.Empty() {
		return nil, nil
	}
	params := oai.AudioTranscriptionNewParams{
		File:                   oai.File(bytes.NewReader(pcm.WAV()), "chunk.wav", "audio/wav"),
		Model:                  oai.AudioModel(b.model),
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word", "segment"},
		Temperature:            oai.Float(0),
	}
	if b.language != "" {
		params.Language = oai.String(b.language)
	}

	resp, err := b.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}

	var result verbose
	if err := json.Unmarshal([]byte(resp.RawJSON()), &result); err != nil {
		return nil, asr.Transient("parse response", err)
	}
	if len(result.Words) == 0 {
		var words []asr.Word
		for _, seg := range result.Segments {
			words = append(words, asr.SpreadText(seg.Text, seg.Start, seg.End)...)
		}
		if len(words) == 0 && strings.TrimSpace(result.Text) != "" {
			words = asr.SpreadText(result.Text, 0, pcm.Seconds())
		}
		return words, nil
	}
	words := make([]asr.Word, 0, len(result.Words))
	for _, w := range result.Words {
		words = append(words, asr.Word{Text: w.Word, Start: w.Start, End: w.End})
	}
	return words, nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusTooManyRequests || code >= 500 || code == http.StatusRequestTimeout:
			return asr.Transient(fmt.Sprintf("transcription http %d", code), err)
		default:
			return asr.Fatal(fmt.Sprintf("transcription http %d", code), err)
		}
	}
	return asr.Transient("transcription request", err)
}
