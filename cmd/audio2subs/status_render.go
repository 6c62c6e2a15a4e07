package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"audio2subs/internal/api"
	"audio2subs/internal/player"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// playerStateKind maps the player state name to a status colour.
func playerStateKind(state string) statusKind {
	switch player.Kind(state) {
	case player.KindReady, player.KindTranscribing, player.KindComplete:
		return statusOK
	case player.KindError:
		return statusError
	case player.KindStopped, player.KindIdle:
		return statusWarn
	default:
		return statusInfo
	}
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+2)
	var missing []string
	available := 0
	for _, dep := range deps {
		if dep.Available || dep.Optional {
			available++
		}
		if !dep.Available && !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}

	summaryKind := statusOK
	summary := fmt.Sprintf("%d of %d ready", available, len(deps))
	if len(missing) > 0 {
		summaryKind = statusError
	}
	lines = append(lines, renderStatusLine("Summary", summaryKind, summary, colorize))

	for _, dep := range deps {
		switch {
		case dep.Available:
			message := "Ready"
			if dep.Version != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Version)
			} else if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
		case dep.Optional:
			lines = append(lines, renderStatusLine(dep.Name, statusWarn, dependencyDetail(dep), colorize))
		default:
			lines = append(lines, renderStatusLine(dep.Name, statusError, dependencyDetail(dep), colorize))
		}
	}
	if len(missing) > 0 {
		lines = append(lines, fmt.Sprintf("%sMissing dependencies: %s", statusIndent, strings.Join(missing, ", ")))
	}
	return lines
}

func dependencyDetail(dep api.DependencyStatus) string {
	if strings.TrimSpace(dep.Detail) != "" {
		return dep.Detail
	}
	return "not available"
}

// sessionLines renders the active session block of the status command.
func sessionLines(s *api.ActiveSession, colorize bool) []string {
	if s == nil {
		return []string{statusIndent + "No active session"}
	}
	progress := fmt.Sprintf("%d%% (%d/%d chunks", s.Progress.Percent, s.Progress.Done, s.Progress.Total)
	if s.Progress.Failed > 0 {
		progress += fmt.Sprintf(", %d failed", s.Progress.Failed)
	}
	progress += ")"
	progressKind := statusInfo
	if s.Progress.Failed > 0 {
		progressKind = statusWarn
	}
	lines := []string{
		renderStatusLine("Video", statusInfo, s.Video, colorize),
		renderStatusLine("Subtitles", statusInfo, s.SubtitlePath, colorize),
		renderStatusLine("Progress", progressKind, progress, colorize),
		renderStatusLine("Playhead", statusInfo, formatClock(s.Position), colorize),
		renderStatusLine("Lines", statusInfo, fmt.Sprintf("%d lines, %d words, %d gaps", s.Lines, s.Words, s.Gaps), colorize),
	}
	if s.LastPublished != "" {
		lines = append(lines, renderStatusLine("Last write", statusInfo, s.LastPublished, colorize))
	}
	return lines
}

// formatClock renders seconds as H:MM:SS.
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
