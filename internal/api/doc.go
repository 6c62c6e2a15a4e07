// Package api defines wire-format types and converters shared by the IPC and
// HTTP API layers. It translates engine snapshots and journal records into
// transport-friendly DTOs so the CLI and other consumers can render them
// without coupling to internal types.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// durations are reported in seconds.
package api
