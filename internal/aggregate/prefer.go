package aggregate

import (
	"fmt"
	"math"
	"strings"

	"audio2subs/internal/chunk"
)

// TieBreak selects the duplicate that survives when the core rule cannot
// decide.
type TieBreak string

const (
	// FirstProcessed keeps the word from the chunk accepted earlier.
	FirstProcessed TieBreak = "first_processed"
	// NearestCenter keeps the word closer to the center of its own chunk.
	NearestCenter TieBreak = "nearest_center"
)

// ParseTieBreak validates a configured policy name. Empty selects
// FirstProcessed.
func ParseTieBreak(s string) (TieBreak, error) {
	switch tb := TieBreak(strings.ToLower(strings.TrimSpace(s))); tb {
	case "":
		return FirstProcessed, nil
	case FirstProcessed, NearestCenter:
		return tb, nil
	default:
		return "", fmt.Errorf("unknown tie break %q", s)
	}
}

// Candidate is a word together with the chunk context the merge rule needs.
type Candidate struct {
	Word chunk.Word
	// Core is the un-overlapped span of the originating chunk.
	Core chunk.Span
	// Center is the midpoint of the originating chunk.
	Center float64
	// Order is the arrival rank of the originating chunk, lower is earlier.
	Order int
}

// Prefer reports whether a should be kept over b. A word whose midpoint lies
// in its own chunk's core beats one that does not; otherwise tb decides.
func Prefer(a, b Candidate, tb TieBreak) bool {
	aCore := a.Core.Contains(a.Word.Mid())
	bCore := b.Core.Contains(b.Word.Mid())
	if aCore != bCore {
		return aCore
	}
	if tb == NearestCenter {
		da := math.Abs(a.Word.Mid() - a.Center)
		db := math.Abs(b.Word.Mid() - b.Center)
		if da != db {
			return da < db
		}
	}
	return a.Order < b.Order
}
