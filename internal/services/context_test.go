package services_test

import (
	"context"
	"testing"

	"audio2subs/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "sess-1")
	ctx = services.WithChunkID(ctx, 7)
	ctx = services.WithVideo(ctx, "/media/movie.mkv")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "sess-1" {
		t.Fatalf("unexpected session id: %v %v", id, ok)
	}
	if id, ok := services.ChunkIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("unexpected chunk id: %v %v", id, ok)
	}
	if video, ok := services.VideoFromContext(ctx); !ok || video != "/media/movie.mkv" {
		t.Fatalf("unexpected video: %v %v", video, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "")
	ctx = services.WithVideo(ctx, "")
	if _, ok := services.SessionIDFromContext(ctx); ok {
		t.Fatal("expected no session value")
	}
	if _, ok := services.VideoFromContext(ctx); ok {
		t.Fatal("expected no video value")
	}
	if _, ok := services.ChunkIDFromContext(ctx); ok {
		t.Fatal("expected no chunk value")
	}
}
