package engine

import (
	"path/filepath"
	"strings"

	"audio2subs/internal/assemble"
	"audio2subs/internal/config"
	"audio2subs/internal/publish"
)

// RulesFromConfig maps the [subtitles] section to assembly rules.
func RulesFromConfig(s config.Subtitles) assemble.Rules {
	return assemble.Rules{
		CPSMax:          s.CPSMax,
		MinDuration:     s.MinDuration,
		MaxDuration:     s.MaxDuration,
		PauseSplit:      s.PauseSplit,
		MinGap:          s.MinGap,
		Padding:         s.Padding,
		MaxCharsPerLine: s.MaxCharsPerLine,
		SentenceBreak:   s.SentenceBreak,
	}
}

// StyleFromConfig maps the [subtitles] styling keys to an ASS style.
func StyleFromConfig(s config.Subtitles) publish.Style {
	return publish.Style{
		FontName:     s.FontName,
		FontSize:     s.FontSize,
		PrimaryColor: s.PrimaryColor,
		OutlineColor: s.OutlineColor,
	}
}

// outputTitle is the ASS script title for video.
func outputTitle(video string) string {
	base := filepath.Base(video)
	return "AI Subtitles: " + strings.TrimSuffix(base, filepath.Ext(base))
}
