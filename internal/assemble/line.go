package assemble

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"audio2subs/internal/chunk"
)

// Rules are the readability constraints applied to every line.
type Rules struct {
	CPSMax          float64
	MinDuration     float64
	MaxDuration     float64
	PauseSplit      float64
	MinGap          float64
	Padding         float64
	MaxCharsPerLine int
	SentenceBreak   bool
}

// DefaultRules mirrors the configuration defaults.
func DefaultRules() Rules {
	return Rules{
		CPSMax:          17,
		MinDuration:     0.8,
		MaxDuration:     7,
		PauseSplit:      2,
		MinGap:          0.15,
		Padding:         0.15,
		MaxCharsPerLine: 42,
		SentenceBreak:   true,
	}
}

// Line is one subtitle entry. Start and End are display times and always
// enclose the word span unless a neighbour forces them inward.
type Line struct {
	Words []chunk.Word
	Start float64
	End   float64

	// head marks the first line produced from a candidate group.
	head bool
}

// Text joins the words with single spaces.
func (l Line) Text() string {
	return joinText(l.Words)
}

// Chars counts NFC runes of Text, spaces included.
func (l Line) Chars() int {
	return charCount(l.Text())
}

func (l Line) Duration() float64 { return l.End - l.Start }

// CPS is the reading speed over the display duration.
func (l Line) CPS() float64 {
	return cps(l.Chars(), l.Duration())
}

// WordStart is the start of the first word.
func (l Line) WordStart() float64 {
	if len(l.Words) == 0 {
		return l.Start
	}
	return l.Words[0].Start
}

// WordEnd is the end of the last word.
func (l Line) WordEnd() float64 {
	if len(l.Words) == 0 {
		return l.End
	}
	return l.Words[len(l.Words)-1].End
}

// Rows wraps Text into at most two display rows, breaking at the space
// closest to the middle when the text is longer than maxChars.
func (l Line) Rows(maxChars int) []string {
	text := l.Text()
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return []string{text}
	}
	mid := len(runes) / 2
	best := -1
	for i, r := range runes {
		if r != ' ' {
			continue
		}
		if best < 0 || abs(i-mid) < abs(best-mid) {
			best = i
		}
	}
	if best < 0 {
		return []string{text}
	}
	return []string{string(runes[:best]), string(runes[best+1:])}
}

func joinText(words []chunk.Word) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.Text)
	}
	return b.String()
}

func charCount(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

func cps(chars int, duration float64) float64 {
	if chars == 0 {
		return 0
	}
	if duration <= 0 {
		return math.Inf(1)
	}
	return float64(chars) / duration
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
