package assemble

import (
	"math"

	"audio2subs/internal/chunk"
)

// retime recomputes display times for lines[from..to]. A line's start depends
// on its own words and the previous line's last word, and its end on its own
// start and the next line's start, so neighbours outside the range keep
// valid times.
func retime(lines []Line, from, to int, gaps []chunk.Span, r Rules) {
	from = max(from, 0)
	to = min(to, len(lines)-1)
	for i := from; i <= to; i++ {
		lines[i].Start = startFor(lines, i, gaps, r)
	}
	for i := from; i <= to; i++ {
		lines[i].End = endFor(lines, i, gaps, r)
	}
}

func startFor(lines []Line, i int, gaps []chunk.Span, r Rules) float64 {
	ws, we := lines[i].WordStart(), lines[i].WordEnd()
	floor := 0.0
	if i > 0 {
		floor = math.Max(floor, lines[i-1].WordEnd()+r.MinGap)
	}
	for _, g := range gaps {
		if g.Hi <= ws && g.Hi > floor {
			floor = g.Hi
		}
	}
	if r.MaxDuration > 0 {
		floor = math.Max(floor, we-r.MaxDuration)
	}
	return math.Min(ws, math.Max(ws-r.Padding, floor))
}

func endFor(lines []Line, i int, gaps []chunk.Span, r Rules) float64 {
	start, we := lines[i].Start, lines[i].WordEnd()
	target := math.Max(we+r.Padding, start+r.MinDuration)
	if r.MaxDuration > 0 {
		target = math.Min(target, start+r.MaxDuration)
	}
	limit := math.Inf(1)
	if i+1 < len(lines) {
		limit = lines[i+1].Start - r.MinGap
	}
	for _, g := range gaps {
		if g.Lo >= we && g.Lo < limit {
			limit = g.Lo
		}
	}
	end := math.Max(we, math.Min(target, limit))
	if i+1 < len(lines) && end > lines[i+1].Start {
		end = lines[i+1].Start
	}
	// A line always shows for some time, even over a word-less instant.
	return math.Max(end, start+chunk.MinWordDuration)
}
