package whisperx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
)

const sampleJSON = `{"segments":[
 {"text":" Hello world.","start":0.1,"end":1.0,"words":[
   {"word":"Hello","start":0.1,"end":0.4},
   {"word":"world.","start":0.5,"end":1.0}]},
 {"text":"In 1999","start":2.0,"end":3.0,"words":[
   {"word":"In","start":2.0,"end":2.2},
   {"word":"1999"}]},
 {"text":"uh oh","start":4.0,"end":5.0}
]}`

func argValue(args []string, flag string) string {
	if i := slices.Index(args, flag); i >= 0 && i+1 < len(args) {
		return args[i+1]
	}
	return ""
}

func TestTranscribeParsesAlignedWords(t *testing.T) {
	b := New(Config{Model: "small", Language: "English", WorkDir: t.TempDir()}, nil)
	var gotArgs []string
	b.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		if name != UVXCommand {
			t.Fatalf("command = %q", name)
		}
		wav, err := os.ReadFile(args[slices.Index(args, "whisperx")+1])
		if err != nil || string(wav[:4]) != "RIFF" {
			t.Fatalf("chunk wav not written: %v", err)
		}
		return os.WriteFile(filepath.Join(argValue(args, "--output_dir"), "chunk.json"), []byte(sampleJSON), 0o644)
	})

	words, err := b.Transcribe(context.Background(), audio.Silence(5))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	want := []asr.Word{
		{Text: "Hello", Start: 0.1, End: 0.4},
		{Text: "world.", Start: 0.5, End: 1.0},
		{Text: "In", Start: 2.0, End: 2.2},
		{Text: "1999", Start: 2.2, End: 2.2},
		{Text: "uh", Start: 4.0, End: 4.5},
		{Text: "oh", Start: 4.5, End: 5.0},
	}
	if len(words) != len(want) {
		t.Fatalf("words = %+v", words)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("word %d = %+v, want %+v", i, words[i], want[i])
		}
	}
	if argValue(gotArgs, "--language") != "en" || argValue(gotArgs, "--model") != "small" {
		t.Fatalf("args = %v", gotArgs)
	}
	if argValue(gotArgs, "--device") != CPUDevice || argValue(gotArgs, "--output_format") != "json" {
		t.Fatalf("args = %v", gotArgs)
	}
}

func TestBuildArgsCUDAAndPyannote(t *testing.T) {
	b := New(Config{CUDAEnabled: true, VADMethod: VADMethodPyannote, HFToken: "hf_x"}, nil)
	args := b.buildArgs("/tmp/chunk.wav", "/tmp/out")
	joined := strings.Join(args, " ")
	for _, want := range []string{"--index-url " + CUDAIndexURL, "--hf_token hf_x", "--device cuda", "--vad_method pyannote"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if strings.Contains(joined, "--language") {
		t.Fatalf("language should be omitted: %q", joined)
	}
}

func TestTranscribeErrorClassification(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"missing uvx", fmt.Errorf("uvx: %w", exec.ErrNotFound), true},
		{"crash", errors.New("exit status 1: CUDA out of memory"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := New(Config{WorkDir: t.TempDir()}, nil)
			b.WithCommandRunner(func(context.Context, string, ...string) error { return tc.err })
			_, err := b.Transcribe(context.Background(), audio.Silence(1))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := asr.IsFatal(err); got != tc.fatal {
				t.Fatalf("IsFatal = %v, want %v (%v)", got, tc.fatal, err)
			}
		})
	}
}
