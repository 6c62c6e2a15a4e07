package ipc

import "audio2subs/internal/api"

// serviceName is the JSON-RPC service prefix.
const serviceName = "AudioSubs"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP API status payload.
type StatusResponse = api.DaemonStatus

// ShutdownRequest asks the service to exit.
type ShutdownRequest struct{}

// ShutdownResponse indicates whether shutdown began.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}

// StopSessionRequest ends the active subtitle session.
type StopSessionRequest struct{}

// StopSessionResponse reports the stop result.
type StopSessionResponse struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message"`
}

// SeekRequest moves the playhead of the active session.
type SeekRequest struct {
	Position float64 `json:"position"`
}

// SeekResponse acknowledges a seek.
type SeekResponse struct {
	Position float64 `json:"position"`
}

// PositionRequest reports a playhead update without a seek.
type PositionRequest struct {
	Position float64 `json:"position"`
}

// PositionResponse acknowledges a position update.
type PositionResponse struct {
	Position float64 `json:"position"`
}

// SessionsRequest lists journaled sessions.
type SessionsRequest struct {
	Limit int `json:"limit"`
}

// SessionsResponse contains journaled sessions, newest first.
type SessionsResponse = api.SessionListResponse

// SessionDetailRequest fetches one session by id or unique prefix.
type SessionDetailRequest struct {
	ID string `json:"id"`
}

// SessionDetailResponse contains a session and its attempts.
type SessionDetailResponse = api.SessionDetailResponse

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification delivery.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
