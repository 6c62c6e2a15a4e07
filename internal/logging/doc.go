// Package logging assembles structured slog loggers and formatting helpers used
// across the audio2subs service.
//
// It owns the console and JSON handlers, the tee used to mirror a run into its
// log file, and context-aware helpers that tag log lines with session IDs,
// chunk IDs, and video paths. A no-op logger is provided for tests and wiring
// code that cannot fail.
package logging
