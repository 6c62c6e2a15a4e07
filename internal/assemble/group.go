package assemble

import (
	"math"
	"slices"
	"strings"

	"audio2subs/internal/chunk"
)

const epsilon = 1e-9

// Group splits ordered words into candidate lines. A word joins the current
// candidate unless breaksBefore says otherwise, so the first word of a
// candidate is always accepted even when it alone exceeds the CPS budget.
func Group(words []chunk.Word, gaps []chunk.Span, r Rules) [][]chunk.Word {
	var out [][]chunk.Word
	var current []chunk.Word
	for _, w := range words {
		if len(current) > 0 && breaksBefore(current, w, gaps, r) {
			out = append(out, current)
			current = nil
		}
		current = append(current, w)
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

func breaksBefore(group []chunk.Word, w chunk.Word, gaps []chunk.Span, r Rules) bool {
	prev := group[len(group)-1]
	if r.PauseSplit > 0 && w.Start-prev.End >= r.PauseSplit-epsilon {
		return true
	}
	if gapBetween(prev, w, gaps) {
		return true
	}
	if r.SentenceBreak && endsSentence(prev.Text) {
		return true
	}
	chars := charCount(joinText(group)) + 1 + charCount(w.Text)
	if r.MaxCharsPerLine > 0 && chars > 2*r.MaxCharsPerLine {
		return true
	}
	return r.CPSMax > 0 && cps(chars, w.End-group[0].Start) > r.CPSMax+epsilon
}

// gapBetween reports whether an edge of a failed range lies between the two
// word midpoints. Words that both fall inside one failed range came from a
// neighbouring chunk's overlap and are not separated by it.
func gapBetween(a, b chunk.Word, gaps []chunk.Span) bool {
	lo, hi := a.Mid(), b.Mid()
	for _, g := range gaps {
		if g.Empty() || g.Lo >= hi || g.Hi <= lo {
			continue
		}
		if g.Lo <= lo && hi <= g.Hi {
			continue
		}
		return true
	}
	return false
}

func endsSentence(text string) bool {
	text = strings.TrimRight(text, "\"')]”’")
	return strings.HasSuffix(text, ".") || strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!")
}

// Split breaks a candidate that runs past MaxDuration, or reads faster than
// CPSMax with more than one word, at the boundary giving the most balanced
// halves. It recurses until every part satisfies the rules or holds one word.
func Split(words []chunk.Word, r Rules) [][]chunk.Word {
	if !needsSplit(words, r) {
		return [][]chunk.Word{words}
	}
	k := bestSplit(words)
	return append(Split(words[:k], r), Split(words[k:], r)...)
}

func needsSplit(words []chunk.Word, r Rules) bool {
	if len(words) < 2 {
		return false
	}
	span := words[len(words)-1].End - words[0].Start
	if r.MaxDuration > 0 && span > r.MaxDuration+epsilon {
		return true
	}
	return r.CPSMax > 0 && cps(charCount(joinText(words)), span) > r.CPSMax+epsilon
}

// bestSplit picks k in [1, len) minimising the duration difference between
// words[:k] and words[k:]. Ties go to the lower worst-half CPS, then to the
// earlier boundary.
func bestSplit(words []chunk.Word) int {
	n := len(words)
	best, bestDiff, bestCPS := 1, math.Inf(1), math.Inf(1)
	for k := 1; k < n; k++ {
		left, right := words[:k], words[k:]
		dl := left[len(left)-1].End - left[0].Start
		dr := right[len(right)-1].End - right[0].Start
		diff := math.Abs(dl - dr)
		worst := math.Max(cps(charCount(joinText(left)), dl), cps(charCount(joinText(right)), dr))
		if diff < bestDiff-epsilon || (math.Abs(diff-bestDiff) <= epsilon && worst < bestCPS) {
			best, bestDiff, bestCPS = k, diff, worst
		}
	}
	return best
}

// linesFor converts candidates into untimed lines.
func linesFor(groups [][]chunk.Word, r Rules) []Line {
	var out []Line
	for _, g := range groups {
		for i, part := range Split(g, r) {
			words := slices.Clone(part)
			out = append(out, Line{
				Words: words,
				Start: words[0].Start,
				End:   words[len(words)-1].End,
				head:  i == 0,
			})
		}
	}
	return out
}
