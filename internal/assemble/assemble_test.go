package assemble

import (
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"audio2subs/internal/aggregate"
	"audio2subs/internal/chunk"
)

func w(text string, start, end float64) chunk.Word {
	return chunk.Word{Text: text, Start: start, End: end}
}

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return out
}

func hardViolations(vs []Violation) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Hard {
			out = append(out, v)
		}
	}
	return out
}

func TestPauseSplitsLines(t *testing.T) {
	rules := DefaultRules()
	rules.PauseSplit = 2
	words := []chunk.Word{w("hi", 0, 0.3), w("there", 0.3, 0.6), w("world", 3.1, 3.4)}

	lines := Build(words, nil, rules)
	got := texts(lines)
	want := []string{"hi there", "world"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	if lines[0].End > lines[1].Start {
		t.Fatalf("lines overlap: %v > %v", lines[0].End, lines[1].Start)
	}
}

func TestPauseBreaksRegardlessOfBudget(t *testing.T) {
	rules := DefaultRules()
	rules.CPSMax = 1000
	rules.MaxCharsPerLine = 1000
	rules.PauseSplit = 1.5
	words := []chunk.Word{w("a", 0, 0.1), w("b", 1.6, 1.7), w("c", 1.8, 1.9)}
	got := texts(Build(words, nil, rules))
	if want := []string{"a", "b c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestSingleFastWordIsAccepted(t *testing.T) {
	rules := DefaultRules()
	words := []chunk.Word{w("supercalifragilistic", 1, 1.2)}
	lines := Build(words, nil, rules)
	if len(lines) != 1 || lines[0].Text() != "supercalifragilistic" {
		t.Fatalf("lines = %q", texts(lines))
	}
	if hv := hardViolations(Validate(lines, nil, rules)); len(hv) != 0 {
		t.Fatalf("violations = %v", hv)
	}
}

func TestCPSBudgetBreaksLines(t *testing.T) {
	rules := DefaultRules()
	rules.CPSMax = 10
	words := []chunk.Word{w("abcd", 0, 0.3), w("efgh", 0.3, 0.6), w("ijkl", 0.6, 0.9)}
	got := texts(Build(words, nil, rules))
	if want := []string{"abcd", "efgh", "ijkl"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	rules.CPSMax = 20
	if got := texts(Build(words, nil, rules)); len(got) != 1 {
		t.Fatalf("lines = %q, want one line under a looser budget", got)
	}
}

func TestOverlongLineSplitsIntoBalancedHalves(t *testing.T) {
	rules := DefaultRules()
	rules.SentenceBreak = false
	var words []chunk.Word
	for i, s := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		words = append(words, w(s, float64(i), float64(i)+0.9))
	}
	got := texts(Build(words, nil, rules))
	want := []string{"a b c d e", "f g h i j"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestSentenceEndBreaksLine(t *testing.T) {
	rules := DefaultRules()
	words := []chunk.Word{w("Stop.", 0, 0.4), w("Go", 0.5, 0.8), w("now", 0.8, 1.0)}
	got := texts(Build(words, nil, rules))
	if want := []string{"Stop.", "Go now"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	rules.SentenceBreak = false
	if got := texts(Build(words, nil, rules)); len(got) != 1 {
		t.Fatalf("lines = %q, want one line", got)
	}
}

func TestTimingPadsExtendsAndKeepsGap(t *testing.T) {
	rules := DefaultRules()
	words := []chunk.Word{w("one", 1, 1.2), w("two", 1.5, 1.8), w("three", 4, 4.3)}
	rules.PauseSplit = 0.25
	lines := Build(words, nil, rules)
	if len(lines) != 3 {
		t.Fatalf("lines = %q", texts(lines))
	}
	first, second := lines[0], lines[1]
	if first.Start != 1-rules.Padding {
		t.Fatalf("first start = %v, want padded", first.Start)
	}
	if math.Abs(second.Start-first.End) < rules.MinGap-epsilon {
		t.Fatalf("gap between lines %v < %v", second.Start-first.End, rules.MinGap)
	}
	if first.End > second.Start-rules.MinGap+epsilon {
		t.Fatalf("first end %v crowds next start %v", first.End, second.Start)
	}
	if d := second.Duration(); d < rules.MinDuration-epsilon {
		t.Fatalf("second duration %v, want >= %v", d, rules.MinDuration)
	}
}

func TestGapsAreNotBridged(t *testing.T) {
	rules := DefaultRules()
	rules.PauseSplit = 100
	rules.SentenceBreak = false
	words := []chunk.Word{w("left", 7.0, 7.4), w("side", 7.5, 7.9), w("right", 12.1, 12.5), w("side", 12.6, 13.0)}
	gaps := []chunk.Span{{Lo: 8, Hi: 12}}
	lines := Build(words, gaps, rules)
	if got, want := texts(lines), []string{"left side", "right side"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	if lines[0].End > 8 {
		t.Fatalf("line before gap ends at %v, inside the gap", lines[0].End)
	}
	if lines[1].Start < 12 {
		t.Fatalf("line after gap starts at %v, inside the gap", lines[1].Start)
	}
}

func TestRowsBreakNearMiddle(t *testing.T) {
	l := Line{Words: []chunk.Word{w("the", 0, 1), w("quick", 1, 2), w("brown", 2, 3), w("fox", 3, 4)}}
	got := l.Rows(10)
	if want := []string{"the quick", "brown fox"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %q, want %q", got, want)
	}
	if rows := l.Rows(100); len(rows) != 1 {
		t.Fatalf("short text wrapped: %q", rows)
	}
}

func TestCharsCountsComposedRunes(t *testing.T) {
	l := Line{Words: []chunk.Word{w("cafe\u0301", 0, 1)}}
	if got := l.Chars(); got != 4 {
		t.Fatalf("chars = %d, want 4", got)
	}
}

func TestValidateReportsOverlap(t *testing.T) {
	lines := []Line{
		{Words: []chunk.Word{w("a", 0, 1)}, Start: 0, End: 2},
		{Words: []chunk.Word{w("b", 1.5, 2)}, Start: 1.5, End: 3},
	}
	vs := hardViolations(Validate(lines, nil, DefaultRules()))
	if len(vs) != 1 || vs[0].Kind != ViolationOverlap || vs[0].Line != 1 {
		t.Fatalf("violations = %v", vs)
	}
}

// randomWords produces non-overlapping words with short inter-word spacing
// and occasional long pauses.
func randomWords(r *rand.Rand, total float64) []chunk.Word {
	vocab := []string{"a", "we", "the", "said", "going", "tonight", "absolutely", "yes.", "really?", "no!"}
	var out []chunk.Word
	t := 0.2
	for t < total-1 {
		dur := 0.1 + r.Float64()*0.5
		out = append(out, w(vocab[r.IntN(len(vocab))], t, t+dur))
		t += dur
		if r.IntN(15) == 0 {
			t += 2 + r.Float64()*2
		} else {
			t += r.Float64() * 0.3
		}
	}
	return out
}

func TestGeneratedLinesRespectRules(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		r := rand.New(rand.NewPCG(seed, seed*7))
		rules := DefaultRules()
		rules.SentenceBreak = seed%2 == 0
		words := randomWords(r, 300)
		gaps := []chunk.Span{{Lo: 100, Hi: 120}}
		var kept []chunk.Word
		for _, wd := range words {
			if !gaps[0].Contains(wd.Mid()) {
				kept = append(kept, wd)
			}
		}
		lines := Build(kept, gaps, rules)
		if len(lines) == 0 {
			t.Fatalf("seed %d: no lines", seed)
		}
		if hv := hardViolations(Validate(lines, gaps, rules)); len(hv) != 0 {
			t.Fatalf("seed %d: violations %v", seed, hv)
		}
		count := 0
		for _, l := range lines {
			count += len(l.Words)
			if len(l.Words) > 1 && l.Chars() > 2*rules.MaxCharsPerLine {
				t.Fatalf("seed %d: line %q too long", seed, l.Text())
			}
		}
		if count != len(kept) {
			t.Fatalf("seed %d: lines hold %d words, want %d", seed, count, len(kept))
		}
	}
}

func TestIncrementalAssemblyMatchesFullBuild(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		r := rand.New(rand.NewPCG(seed, 99))
		rules := DefaultRules()
		master := randomWords(r, 200)
		chunks, err := chunk.Split(200, 20, 1)
		if err != nil {
			t.Fatalf("Split: %v", err)
		}
		failed := 4
		order := r.Perm(len(chunks))

		agg := aggregate.New(aggregate.Options{})
		asm := New(rules, nil)
		var seen uint64
		for _, idx := range order {
			c := chunks[idx]
			if idx == failed {
				agg.MarkGap(c.Core)
			} else {
				var ws []chunk.Word
				for _, wd := range master {
					if wd.Start >= c.Start && wd.End <= c.End {
						ws = append(ws, wd)
					}
				}
				agg.Accept(aggregate.OriginOf(c), ws)
			}
			if span, rev, ok := agg.DirtySince(seen); ok {
				asm.Assemble(agg, span)
				agg.Checkpoint(rev)
				seen = rev
			}
		}

		got := asm.Document().Lines
		want := Build(agg.Words(), agg.Gaps(), rules)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("seed %d: incremental lines differ from full build\n got %q\nwant %q", seed, texts(got), texts(want))
		}
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	chunks, err := chunk.Split(40, 20, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	agg := aggregate.New(aggregate.Options{})
	agg.Accept(aggregate.OriginOf(chunks[0]), []chunk.Word{w("hello", 1, 1.4), w("again", 1.5, 1.9)})
	asm := New(DefaultRules(), nil)
	span, _, _ := agg.DirtySince(0)

	first, changed := asm.Assemble(agg, span)
	if !changed || len(first.Lines) != 1 {
		t.Fatalf("first assemble: changed=%v lines=%q", changed, texts(first.Lines))
	}
	second, changed := asm.Assemble(agg, span)
	if changed {
		t.Fatal("second assemble reported a change")
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("documents differ: %+v vs %+v", first, second)
	}
	if _, changed := asm.Assemble(agg, chunk.EmptySpan); changed {
		t.Fatal("empty span reported a change")
	}
}

func TestAssembleLeavesEarlierLinesUntouched(t *testing.T) {
	chunks, err := chunk.Split(60, 20, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	agg := aggregate.New(aggregate.Options{})
	asm := New(DefaultRules(), nil)
	agg.Accept(aggregate.OriginOf(chunks[0]), []chunk.Word{
		w("first.", 1, 1.5), w("second.", 5, 5.5), w("third.", 10, 10.5),
	})
	span, rev, _ := agg.DirtySince(0)
	before, _ := asm.Assemble(agg, span)
	agg.Checkpoint(rev)

	agg.Accept(aggregate.OriginOf(chunks[2]), []chunk.Word{w("later", 45, 45.5)})
	span, _, _ = agg.DirtySince(rev)
	after, changed := asm.Assemble(agg, span)
	if !changed || len(after.Lines) != 4 {
		t.Fatalf("changed=%v lines=%q", changed, texts(after.Lines))
	}
	if !reflect.DeepEqual(after.Lines[:2], before.Lines[:2]) {
		t.Fatalf("earlier lines perturbed: %+v vs %+v", after.Lines[:2], before.Lines[:2])
	}
}

// jitteredWords mimics token-level backend output: words start slightly
// before the previous one ends and some carry no duration at all.
func jitteredWords(r *rand.Rand, total float64) []chunk.Word {
	vocab := []string{"so", "we", "went", "there", "and", "it", "was", "fine.", "right?"}
	var out []chunk.Word
	t := 0.3
	for t < total-1 {
		start := math.Max(0, t-r.Float64()*0.15)
		dur := 0.05 + r.Float64()*0.35
		if r.IntN(5) == 0 {
			dur = 0
		}
		out = append(out, w(vocab[r.IntN(len(vocab))], start, start+dur))
		t = start + dur + 0.01 + r.Float64()*0.2
		if r.IntN(20) == 0 {
			t += 2.5
		}
	}
	return out
}

func TestOverlappingWordTimingsStayValid(t *testing.T) {
	for seed := uint64(1); seed <= 200; seed++ {
		r := rand.New(rand.NewPCG(seed, seed^0x5bd1))
		rules := DefaultRules()
		words := jitteredWords(r, 120)
		lines := Build(words, nil, rules)
		if hv := hardViolations(Validate(lines, nil, rules)); len(hv) != 0 {
			t.Fatalf("seed %d: violations %v", seed, hv)
		}
		count := 0
		for i, l := range lines {
			count += len(l.Words)
			if l.End <= l.Start {
				t.Fatalf("seed %d: line %d shows for no time [%v, %v]", seed, i, l.Start, l.End)
			}
			if l.Start > l.WordStart()+epsilon || l.End < l.WordEnd()-epsilon {
				t.Fatalf("seed %d: line %d [%v, %v] does not cover words [%v, %v]",
					seed, i, l.Start, l.End, l.WordStart(), l.WordEnd())
			}
			for j := 1; j < len(l.Words); j++ {
				if l.Words[j].Start < l.Words[j-1].End {
					t.Fatalf("seed %d: line %d words overlap: %+v", seed, i, l.Words)
				}
			}
		}
		if count != len(words) {
			t.Fatalf("seed %d: lines hold %d words, want %d", seed, count, len(words))
		}
	}
}

func TestZeroLengthWordsGetDisplayTime(t *testing.T) {
	rules := DefaultRules()
	lines := Build([]chunk.Word{w("a", 1, 1), w("b", 1, 1), w("c", 1, 1)}, nil, rules)
	if len(lines) == 0 {
		t.Fatal("no lines")
	}
	if hv := hardViolations(Validate(lines, nil, rules)); len(hv) != 0 {
		t.Fatalf("violations %v", hv)
	}
	last := lines[len(lines)-1]
	if last.Duration() < rules.MinDuration-epsilon {
		t.Fatalf("last line lasts %v, want >= %v", last.Duration(), rules.MinDuration)
	}
}

func TestWordsInsideGapShareLine(t *testing.T) {
	rules := DefaultRules()
	rules.SentenceBreak = false
	gaps := []chunk.Span{{Lo: 20, Hi: 40}}
	words := []chunk.Word{
		w("before", 19.0, 19.4),
		w("over", 20.1, 20.4), w("the", 20.5, 20.7), w("edge", 20.8, 21.1),
		w("after", 40.2, 40.6),
	}
	lines := Build(words, gaps, rules)
	if got, want := texts(lines), []string{"before", "over the edge", "after"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	if hv := hardViolations(Validate(lines, gaps, rules)); len(hv) != 0 {
		t.Fatalf("violations %v", hv)
	}
}
