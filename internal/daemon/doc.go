// Package daemon coordinates the long-running audio2subs process.
//
// It holds the flock-based single-instance lock, tracks the controller attached
// to mpv, and answers status, history and session commands for the IPC server
// and the read-only HTTP API. Transcription itself lives in the engine and
// controller packages; the daemon focuses on lifecycle and reporting.
package daemon
