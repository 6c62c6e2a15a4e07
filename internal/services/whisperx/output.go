package whisperx

import (
	"encoding/json"
	"fmt"
	"os"

	"audio2subs/internal/asr"
)

// Word represents a single aligned word from WhisperX output. Alignment can
// fail for tokens such as numerals, in which case the times are absent.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type payload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return p.Segments, nil
}

// SegmentWords flattens segments into timed words. Unaligned words take the
// end of the previous word (or the segment start) as both bounds, and a
// segment without any words is spread evenly over its duration.
func SegmentWords(segments []Segment) []asr.Word {
	var out []asr.Word
	for _, seg := range segments {
		if len(seg.Words) == 0 {
			out = append(out, asr.SpreadText(seg.Text, seg.Start, seg.End)...)
			continue
		}
		cursor := seg.Start
		for _, w := range seg.Words {
			start, end := cursor, cursor
			if w.Start != nil {
				start = *w.Start
				end = start
			}
			if w.End != nil {
				end = *w.End
			}
			out = append(out, asr.Word{Text: w.Word, Start: start, End: end})
			cursor = end
		}
	}
	return out
}
