package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	b, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Language: "fr", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestTranscribeReturnsWords(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.FormValue("language"); got != "fr" {
			t.Errorf("language = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"bonjour tout","words":[{"word":"bonjour","start":0.2,"end":0.6},{"word":"tout","start":0.7,"end":0.9}]}`))
	})
	words, err := b.Transcribe(context.Background(), audio.Silence(1))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(words) != 2 || words[0] != (asr.Word{Text: "bonjour", Start: 0.2, End: 0.6}) {
		t.Fatalf("words = %+v", words)
	}
}

func TestTranscribeFallsBackToSegments(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"oui","segments":[{"text":"oui","start":1.0,"end":1.5}]}`))
	})
	words, err := b.Transcribe(context.Background(), audio.Silence(2))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(words) != 1 || words[0].Start != 1 || words[0].End != 1.5 {
		t.Fatalf("words = %+v", words)
	}
}

func TestTranscribeClassifiesStatus(t *testing.T) {
	cases := []struct {
		status int
		fatal  bool
	}{
		{http.StatusTooManyRequests, false},
		{http.StatusBadGateway, false},
		{http.StatusUnauthorized, true},
		{http.StatusBadRequest, true},
	}
	for _, tc := range cases {
		b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
		})
		_, err := b.Transcribe(context.Background(), audio.Silence(1))
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := asr.IsFatal(err); got != tc.fatal {
			t.Fatalf("status %d: fatal = %v, want %v (%v)", tc.status, got, tc.fatal, err)
		}
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing key")
	}
}
