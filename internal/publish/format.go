package publish

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"audio2subs/internal/assemble"
)

// Style carries the ASS style fields that are configurable.
type Style struct {
	FontName     string
	FontSize     int
	PrimaryColor string
	OutlineColor string
}

// Header is the per-document metadata a format may render.
type Header struct {
	Title  string
	Width  int
	Height int
	Style  Style
}

// Format serializes a complete document.
type Format interface {
	Name() string
	Extension() string
	Render(doc assemble.Document, h Header) []byte
}

// FormatByName returns the format registered under name.
func FormatByName(name string, maxCharsPerLine int) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ass", "":
		return ASS{MaxCharsPerLine: maxCharsPerLine}, nil
	case "srt":
		return SRT{MaxCharsPerLine: maxCharsPerLine}, nil
	default:
		return nil, fmt.Errorf("unsupported subtitle format %q", name)
	}
}

const defaultTitle = "AI Generated Subtitles"

// ASS renders Advanced SubStation Alpha with a single Default style.
type ASS struct {
	MaxCharsPerLine int
}

func (ASS) Name() string      { return "ass" }
func (ASS) Extension() string { return ".ass" }

func (f ASS) Render(doc assemble.Document, h Header) []byte {
	var b bytes.Buffer
	title := h.Title
	if title == "" {
		title = defaultTitle
	}
	b.WriteString("[Script Info]\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	b.WriteString("ScriptType: v4.00+\n")
	if h.Width > 0 && h.Height > 0 {
		fmt.Fprintf(&b, "PlayResX: %d\nPlayResY: %d\n", h.Width, h.Height)
	}
	b.WriteString("\n[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, " +
		"Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, " +
		"Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Default,%s,%d,%s,&H000000FF,%s,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1\n",
		orDefault(h.Style.FontName, "Arial"), fontSize(h.Style.FontSize),
		orDefault(h.Style.PrimaryColor, "&H00FFFFFF"), orDefault(h.Style.OutlineColor, "&H00000000"))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, line := range doc.Lines {
		rows := line.Rows(f.MaxCharsPerLine)
		for i, row := range rows {
			rows[i] = escapeASS(row)
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			assTimestamp(line.Start), assTimestamp(line.End), strings.Join(rows, `\N`))
	}
	return b.Bytes()
}

// assTimestamp formats H:MM:SS.cc.
func assTimestamp(seconds float64) string {
	cs := int64(math.Round(math.Max(seconds, 0) * 100))
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}

func escapeASS(s string) string {
	return strings.NewReplacer(`\`, `\\`, "{", `\{`, "}", `\}`, "\n", " ").Replace(s)
}

// SRT renders SubRip.
type SRT struct {
	MaxCharsPerLine int
}

func (SRT) Name() string      { return "srt" }
func (SRT) Extension() string { return ".srt" }

func (f SRT) Render(doc assemble.Document, _ Header) []byte {
	var b bytes.Buffer
	for i, line := range doc.Lines {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1,
			srtTimestamp(line.Start), srtTimestamp(line.End), strings.Join(line.Rows(f.MaxCharsPerLine), "\n"))
	}
	return b.Bytes()
}

// srtTimestamp formats HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	ms := int64(math.Round(math.Max(seconds, 0) * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

func fontSize(size int) int {
	if size <= 0 {
		return 65
	}
	return size
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
