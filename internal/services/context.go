package services

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	chunkIDKey   contextKey = "chunk_id"
	videoKey     contextKey = "video"
	requestIDKey contextKey = "request_id"
)

// WithSessionID annotates context with the transcription session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithChunkID annotates context with the chunk being transcribed.
func WithChunkID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, chunkIDKey, id)
}

// ChunkIDFromContext extracts the chunk identifier if present.
func ChunkIDFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(chunkIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithVideo annotates context with the video path of the active session.
func WithVideo(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, videoKey, path)
}

// VideoFromContext returns the video path if present.
func VideoFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(videoKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
