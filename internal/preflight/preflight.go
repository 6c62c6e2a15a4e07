package preflight

import (
	"context"

	"audio2subs/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to the configured backend.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
	}

	switch cfg.Transcription.Backend {
	case config.BackendWhisperServer:
		results = append(results, CheckWhisperServer(ctx, cfg.Transcription.ServerURL))
	case config.BackendOpenAI:
		results = append(results, CheckAPIKey(cfg.Transcription.APIKey))
	case config.BackendWhisperCPP:
		results = append(results, CheckModelFile(cfg.Transcription.ModelPath))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
