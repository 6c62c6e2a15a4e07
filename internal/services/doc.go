// Package services defines shared utilities consumed by the transcription
// engine and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, chunk IDs, video paths, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so backend, audio, and
//     publish failures can be classified with errors.Is.
//
// Backend implementations live in subpackages (whisperx, whisperserver,
// whispercpp, openai) and report failures through these markers.
package services
