// Package backend constructs the configured ASR backend.
package backend

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"audio2subs/internal/asr"
	"audio2subs/internal/asr/mock"
	"audio2subs/internal/config"
	"audio2subs/internal/services"
	"audio2subs/internal/services/openai"
	"audio2subs/internal/services/whispercpp"
	"audio2subs/internal/services/whisperserver"
	"audio2subs/internal/services/whisperx"
)

// New returns the backend named by cfg.Transcription.Backend. An empty
// identifier selects whisperx.
func New(cfg *config.Config, logger *slog.Logger) (asr.Backend, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "backend", "new", "config required", nil)
	}
	t := cfg.Transcription
	timeout := time.Duration(t.RequestTimeout) * time.Second

	switch id := strings.ToLower(strings.TrimSpace(t.Backend)); id {
	case config.BackendWhisperX, "":
		return whisperx.New(whisperx.Config{
			Model:       t.Model,
			Language:    t.Language,
			CUDAEnabled: t.CUDA,
			VADMethod:   t.VADMethod,
			HFToken:     t.HFToken,
			WorkDir:     filepath.Join(cfg.Paths.WorkDir, "whisperx"),
		}, logger), nil
	case config.BackendWhisperServer:
		b, err := whisperserver.New(t.ServerURL, timeout,
			whisperserver.WithLanguage(t.Language),
			whisperserver.WithModel(t.Model),
		)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "backend", "new", id, err)
		}
		return b, nil
	case config.BackendOpenAI:
		b, err := openai.New(openai.Config{
			APIKey:   t.APIKey,
			BaseURL:  t.BaseURL,
			Model:    t.Model,
			Language: t.Language,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "backend", "new", id, err)
		}
		return b, nil
	case config.BackendWhisperCPP:
		b, err := whispercpp.New(whispercpp.Config{ModelPath: t.ModelPath, Language: t.Language}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendMock:
		return mock.Speech(), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "backend", "new", fmt.Sprintf("unknown backend %q", id), nil)
	}
}
