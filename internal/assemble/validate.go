package assemble

import (
	"fmt"

	"audio2subs/internal/chunk"
)

// Violation kinds reported by Validate.
const (
	ViolationOrder       = "order"
	ViolationOverlap     = "overlap"
	ViolationEmpty       = "empty"
	ViolationCPS         = "cps"
	ViolationMaxDuration = "max_duration"
	ViolationMinDuration = "min_duration"
	ViolationBridgesGap  = "bridges_gap"
)

// Violation describes a line that breaks a rule. Hard violations indicate a
// bug in assembly; soft ones are allowed when a neighbour leaves no room.
type Violation struct {
	Line   int
	Kind   string
	Detail string
	Hard   bool
}

func (v Violation) Error() string {
	return fmt.Sprintf("line %d: %s: %s", v.Line, v.Kind, v.Detail)
}

// Validate checks lines against the rules. Single-word lines are exempt from
// the CPS and duration limits. A short line is soft when the next line or a
// gap stopped its extension, and hard otherwise.
func Validate(lines []Line, gaps []chunk.Span, r Rules) []Violation {
	var out []Violation
	add := func(i int, kind string, hard bool, format string, args ...any) {
		out = append(out, Violation{Line: i, Kind: kind, Detail: fmt.Sprintf(format, args...), Hard: hard})
	}
	for i, l := range lines {
		if i > 0 {
			prev := lines[i-1]
			if l.Start < prev.Start-epsilon {
				add(i, ViolationOrder, true, "starts at %.3f before previous %.3f", l.Start, prev.Start)
			}
			if l.Start < prev.End-epsilon {
				add(i, ViolationOverlap, true, "starts at %.3f before previous end %.3f", l.Start, prev.End)
			}
		}
		if l.Duration() <= 0 {
			add(i, ViolationEmpty, true, "no display time [%.3f, %.3f]", l.Start, l.End)
			continue
		}
		for j := 1; j < len(l.Words); j++ {
			if gapBetween(l.Words[j-1], l.Words[j], gaps) {
				add(i, ViolationBridgesGap, true, "words %d and %d straddle a failed range", j-1, j)
			}
		}
		if len(l.Words) < 2 {
			continue
		}
		if r.CPSMax > 0 && l.CPS() > r.CPSMax+epsilon {
			add(i, ViolationCPS, true, "%.2f chars/s over %.2f", l.CPS(), r.CPSMax)
		}
		if r.MaxDuration > 0 && l.Duration() > r.MaxDuration+epsilon {
			add(i, ViolationMaxDuration, true, "%.3fs over %.3fs", l.Duration(), r.MaxDuration)
		}
		if l.Duration() < r.MinDuration-epsilon {
			add(i, ViolationMinDuration, !extensionBlocked(lines, i, gaps, r), "%.3fs under %.3fs", l.Duration(), r.MinDuration)
		}
	}
	return out
}

func extensionBlocked(lines []Line, i int, gaps []chunk.Span, r Rules) bool {
	end := lines[i].End
	if i+1 < len(lines) && end >= lines[i+1].Start-r.MinGap-epsilon {
		return true
	}
	for _, g := range gaps {
		if g.Lo >= lines[i].WordEnd() && end >= g.Lo-epsilon {
			return true
		}
	}
	return false
}
