// Package preflight provides readiness checks for the directories, external
// binaries and transcription backends audio2subs depends on.
//
// The daemon runs RunAll and CheckSystemDeps before connecting to mpv and
// logs anything that fails; the deps command prints the same results.
// Backend checks only run for the configured backend.
package preflight
