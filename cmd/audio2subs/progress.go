package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"audio2subs/internal/player"
)

const progressBarWidth = 30

// progressNotifier renders player states on a terminal for the transcribe
// command. On a TTY the bar redraws in place; otherwise a line is printed per
// ten percent.
type progressNotifier struct {
	mu       sync.Mutex
	out      io.Writer
	tty      bool
	inline   bool
	lastStep int
}

func newProgressNotifier(out io.Writer, tty bool) *progressNotifier {
	return &progressNotifier{out: out, tty: tty, lastStep: -1}
}

func (p *progressNotifier) Notify(_ context.Context, s player.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch st := s.(type) {
	case player.Loading:
		p.line(fmt.Sprintf("Loading %s backend...", st.Backend))
	case player.Transcribing:
		p.progress(st)
	case player.Complete:
		p.line("Transcription complete")
	case player.Error:
		p.line("Error: " + st.Message)
	}
	return nil
}

func (p *progressNotifier) ShowText(_ context.Context, text string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.line(text)
	return nil
}

func (p *progressNotifier) ReloadSubtitles(context.Context, string) error { return nil }

func (p *progressNotifier) progress(st player.Transcribing) {
	if p.tty {
		fmt.Fprintf(p.out, "\r%s", renderProgressBar(st.Percent, st.Done, st.Total))
		p.inline = true
		return
	}
	step := st.Percent / 10
	if step == p.lastStep {
		return
	}
	p.lastStep = step
	fmt.Fprintln(p.out, renderProgressBar(st.Percent, st.Done, st.Total))
}

func (p *progressNotifier) line(text string) {
	if p.inline {
		fmt.Fprintln(p.out)
		p.inline = false
	}
	fmt.Fprintln(p.out, text)
}

func renderProgressBar(percent, done, total int) string {
	percent = max(0, min(100, percent))
	filled := percent * progressBarWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled)
	return fmt.Sprintf("[%s] %3d%% (%d/%d chunks)", bar, percent, done, total)
}
