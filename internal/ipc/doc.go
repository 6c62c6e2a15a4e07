// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Status
// and history payloads reuse the api package types so the CLI and the HTTP
// API render the same data.
package ipc
