// Package main hosts the audio2subs CLI entrypoint and command graph.
//
// The Cobra command tree either runs the subtitle service in the foreground
// (run, transcribe) or talks to a running service over its JSON-RPC control
// socket (status, stop, seek, history, test-notify). Configuration loading
// and socket discovery live in commandContext so subcommands only render.
//
// Add behaviour to the internal packages first and surface it here as a thin
// command.
package main
