package whisperserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
	langpkg "audio2subs/internal/language"
)

// Option configures a Backend.
type Option func(*Backend)

// WithLanguage sets the language hint sent with each request.
func WithLanguage(lang string) Option {
	return func(b *Backend) { b.language = langpkg.ToISO2(lang) }
}

// WithModel forwards a model name. The server ignores it unless it was
// started with several models.
func WithModel(model string) Option {
	return func(b *Backend) { b.model = model }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Backend) { b.httpClient = client }
}

// Backend talks to a whisper.cpp server.
type Backend struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New returns a Backend for the server at serverURL (for example
// "http://127.0.0.1:8080").
func New(serverURL string, timeout time.Duration, opts ...Option) (*Backend, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		return nil, errors.New("whisperserver: server url must not be empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	b := &Backend{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func (b *Backend) Name() string { return "whisperserver" }

func (b *Backend) Close() error { return nil }

type verboseResponse struct {
	Text     string    `json:"text"`
	Segments []segment `json:"segments"`
	Error    string    `json:"error"`
}

type segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// Transcribe uploads pcm and returns the recognized words.
func (b *Backend) Transcribe(ctx context.Context, pcm audio.PCM) ([]asr.Word, error) {
	if pcm.Empty() {
		return nil, nil
	}
	body, contentType, err := b.form(pcm)
	if err != nil {
		return nil, asr.Fatal("build request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.serverURL+"/inference", body)
	if err != nil {
		return nil, asr.Fatal("build request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, asr.Transient("http request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, asr.Transient("read response", err)
	}
	switch {
	case resp.StatusCode >= 500:
		return nil, asr.Transientf("inference", "server returned HTTP %d: %s", resp.StatusCode, snippet(data))
	case resp.StatusCode != http.StatusOK:
		return nil, asr.Fatalf("inference", "server returned HTTP %d: %s", resp.StatusCode, snippet(data))
	}

	var result verboseResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, asr.Transient("parse response", err)
	}
	if result.Error != "" {
		return nil, asr.Transientf("inference", "server error: %s", result.Error)
	}
	return segmentWords(result), nil
}

func (b *Backend) form(pcm audio.PCM) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(pcm.WAV()); err != nil {
		return nil, "", fmt.Errorf("write wav data: %w", err)
	}
	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	if b.language != "" {
		fields["language"] = b.language
	}
	if b.model != "" {
		fields["model"] = b.model
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

func segmentWords(result verboseResponse) []asr.Word {
	if len(result.Segments) == 0 {
		return nil
	}
	var words []asr.Word
	for _, seg := range result.Segments {
		if len(seg.Words) == 0 {
			words = append(words, asr.SpreadText(seg.Text, seg.Start, seg.End)...)
			continue
		}
		for _, w := range seg.Words {
			words = append(words, asr.Word{Text: w.Word, Start: w.Start, End: w.End})
		}
	}
	return words
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
