package tracks

import (
	"strconv"
	"strings"

	"audio2subs/internal/language"
	"audio2subs/internal/media/ffprobe"
)

// Selection is the chosen speech track.
type Selection struct {
	Stream ffprobe.AudioStream
	// Ordinal is the zero-based audio ordinal for ffmpeg's 0:a:N, or -1.
	Ordinal int
}

// Label returns a human-readable summary of the selected stream.
func (s Selection) Label() string {
	if s.Ordinal < 0 {
		return ""
	}
	return formatStreamSummary(s.Stream.Stream)
}

// Select ranks audio streams for speech recognition in lang, an ISO code or
// language name. An empty lang skips the language preference.
func Select(streams []ffprobe.AudioStream, lang string) Selection {
	if len(streams) == 0 {
		return Selection{Ordinal: -1}
	}
	want := language.ToISO2(lang)
	best := streams[0]
	bestScore := score(best, want)
	for _, s := range streams[1:] {
		if sc := score(s, want); sc > bestScore {
			best, bestScore = s, sc
		}
	}
	return Selection{Stream: best, Ordinal: best.Ordinal}
}

// secondaryKeywords mark tracks that do not carry the main dialogue.
var secondaryKeywords = []string{
	"commentary",
	"director",
	"audio description",
	"descriptive",
	"described video",
	"narration",
	"isolated score",
	"music only",
}

func score(s ffprobe.AudioStream, want string) float64 {
	total := 0.0

	if want != "" && language.ToISO2(s.Language()) == want {
		total += 1000
	}
	if isSecondary(s.Stream) {
		total -= 500
	}
	if s.Disposition.Default == 1 {
		total += 50
	}

	switch {
	case s.Channels >= 6:
		total += 3
	case s.Channels >= 2:
		total += 2
	case s.Channels == 1:
		total++
	}

	// Prefer earlier tracks when scores tie.
	total -= float64(s.Ordinal) * 0.1
	return total
}

func isSecondary(stream ffprobe.Stream) bool {
	title := strings.ToLower(strings.TrimSpace(stream.Tags["title"]))
	if title == "" {
		title = strings.ToLower(strings.TrimSpace(stream.Tags["handler_name"]))
	}
	for _, keyword := range secondaryKeywords {
		if strings.Contains(title, keyword) {
			return true
		}
	}
	return false
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := stream.Language(); lang != "" {
		parts = append(parts, strings.ToLower(lang))
	}
	if stream.CodecName != "" {
		parts = append(parts, stream.CodecName)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	if title := strings.TrimSpace(stream.Tags["title"]); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
