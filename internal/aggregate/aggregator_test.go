package aggregate

import (
	"reflect"
	"testing"

	"audio2subs/internal/chunk"
)

func splitChunks(t *testing.T) []chunk.Chunk {
	t.Helper()
	chunks, err := chunk.Split(40, 20, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	return chunks
}

func words(id int, triples ...any) []chunk.Word {
	out := make([]chunk.Word, 0, len(triples)/3)
	for i := 0; i+2 < len(triples); i += 3 {
		out = append(out, chunk.Word{
			Text:    triples[i].(string),
			Start:   triples[i+1].(float64),
			End:     triples[i+2].(float64),
			ChunkID: id,
		})
	}
	return out
}

func texts(ws []chunk.Word) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Text
	}
	return out
}

func TestAcceptIsIdempotent(t *testing.T) {
	chunks := splitChunks(t)
	agg := New(Options{})
	batch := words(0, "one", 1.0, 1.4, "two", 2.0, 2.3)
	if !agg.Accept(OriginOf(chunks[0]), batch) {
		t.Fatal("first accept rejected")
	}
	once := agg.Words()
	rev := agg.Revision()
	if agg.Accept(OriginOf(chunks[0]), batch) {
		t.Fatal("second accept should report no change")
	}
	if !reflect.DeepEqual(agg.Words(), once) || agg.Revision() != rev {
		t.Fatalf("stream changed on duplicate accept: %v", texts(agg.Words()))
	}
}

func TestOutOfOrderResultsStaySorted(t *testing.T) {
	chunks := splitChunks(t)
	agg := New(Options{})
	agg.Accept(OriginOf(chunks[1]), words(1, "later", 25.0, 25.5, "end", 30.0, 30.2))
	agg.Accept(OriginOf(chunks[0]), words(0, "early", 2.0, 2.5))
	got := texts(agg.Words())
	want := []string{"early", "later", "end"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("words = %v, want %v", got, want)
	}
}

func TestBoundaryDuplicateKeepsCoreWord(t *testing.T) {
	chunks := splitChunks(t) // chunk 0 [0,21] core [0,20]; chunk 1 [19,40] core [20,40]
	cases := []struct {
		name      string
		first     int
		boundary  []float64
		wantChunk int
	}{
		{"later chunk owns midpoint", 0, []float64{20.2, 20.6}, 1},
		{"earlier chunk owns midpoint", 1, []float64{19.2, 19.6}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := New(Options{DuplicateTolerance: DefaultDuplicateTolerance})
			other := 1 - tc.first
			agg.Accept(OriginOf(chunks[tc.first]), words(tc.first, "edge", tc.boundary[0], tc.boundary[1]))
			agg.Accept(OriginOf(chunks[other]), words(other, "edge", tc.boundary[0]+0.05, tc.boundary[1]+0.05))
			got := agg.Words()
			if len(got) != 1 || got[0].ChunkID != tc.wantChunk {
				t.Fatalf("words = %+v, want single word from chunk %d", got, tc.wantChunk)
			}
			if agg.Dropped() != 1 {
				t.Fatalf("dropped = %d", agg.Dropped())
			}
		})
	}
}

func TestDistinctNeighbourWordsSurvive(t *testing.T) {
	chunks := splitChunks(t)
	agg := New(Options{DuplicateTolerance: DefaultDuplicateTolerance})
	agg.Accept(OriginOf(chunks[0]), words(0, "hello", 19.7, 19.9))
	agg.Accept(OriginOf(chunks[1]), words(1, "world", 20.0, 20.2))
	if got := texts(agg.Words()); !reflect.DeepEqual(got, []string{"hello", "world"}) {
		t.Fatalf("words = %v", got)
	}
}

func TestPreferTieBreaks(t *testing.T) {
	core := chunk.Span{Lo: 0, Hi: 20}
	a := Candidate{Word: chunk.Word{Start: 20, End: 20}, Core: core, Center: 10.5, Order: 1}
	b := Candidate{Word: chunk.Word{Start: 20, End: 20}, Core: chunk.Span{Lo: 20, Hi: 40}, Center: 29.5, Order: 0}

	if Prefer(a, b, FirstProcessed) {
		t.Fatal("first processed: later chunk should lose")
	}
	if !Prefer(b, a, FirstProcessed) {
		t.Fatal("first processed: earlier chunk should win")
	}
	if Prefer(a, b, NearestCenter) {
		t.Fatal("nearest center: a is 9.5 from its center, b 9.5, tie falls to order")
	}
	a.Center = 15
	if !Prefer(a, b, NearestCenter) {
		t.Fatal("nearest center: a is closer to its center")
	}

	outside := Candidate{Word: chunk.Word{Start: 21, End: 21}, Core: core, Order: 0}
	inside := Candidate{Word: chunk.Word{Start: 21, End: 21}, Core: chunk.Span{Lo: 20, Hi: 40}, Order: 5}
	if !Prefer(inside, outside, FirstProcessed) {
		t.Fatal("core membership must beat arrival order")
	}
}

func TestParseTieBreak(t *testing.T) {
	for in, want := range map[string]TieBreak{"": FirstProcessed, "Nearest_Center": NearestCenter, "first_processed": FirstProcessed} {
		got, err := ParseTieBreak(in)
		if err != nil || got != want {
			t.Fatalf("ParseTieBreak(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseTieBreak("coin_flip"); err == nil {
		t.Fatal("expected error")
	}
}

func TestWordsInRangeUsesMidpoints(t *testing.T) {
	chunks := splitChunks(t)
	agg := New(Options{})
	agg.Accept(OriginOf(chunks[0]), words(0, "a", 0.5, 1.5, "b", 1.8, 2.4, "long", 2.5, 6.0, "c", 7.0, 7.2))
	got := texts(agg.WordsInRange(2, 7))
	want := []string{"b", "long"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("WordsInRange = %v, want %v", got, want)
	}
}

func TestDirtyTracking(t *testing.T) {
	chunks := splitChunks(t)
	agg := New(Options{})
	if _, _, ok := agg.DirtySince(0); ok {
		t.Fatal("fresh aggregator should be clean")
	}

	agg.Accept(OriginOf(chunks[1]), words(1, "x", 25.0, 25.5))
	span, rev, ok := agg.DirtySince(0)
	if !ok || span.Lo != 25 || span.Hi != 25.5 {
		t.Fatalf("dirty = %+v ok=%v", span, ok)
	}

	agg.Accept(OriginOf(chunks[0]), words(0, "y", 3.0, 3.5))
	agg.Checkpoint(rev)
	span, rev2, ok := agg.DirtySince(rev)
	if !ok || span.Lo != 3 || span.Hi != 25.5 {
		t.Fatalf("stale checkpoint must keep the span: %+v ok=%v", span, ok)
	}

	agg.Checkpoint(rev2)
	if _, _, ok := agg.DirtySince(rev2); ok {
		t.Fatal("expected clean after checkpoint")
	}

	agg.MarkGap(chunk.Span{Lo: 30, Hi: 40})
	agg.MarkGap(chunk.Span{Lo: 35, Hi: 45})
	span, _, ok = agg.DirtySince(rev2)
	if !ok || span.Lo != 30 || span.Hi != 45 {
		t.Fatalf("gap dirty = %+v ok=%v", span, ok)
	}
	if gaps := agg.Gaps(); len(gaps) != 1 || gaps[0] != (chunk.Span{Lo: 30, Hi: 45}) {
		t.Fatalf("gaps = %+v", gaps)
	}
}

func TestAcceptSequencesOverlappingWords(t *testing.T) {
	chunks := splitChunks(t)
	agg := New(Options{})
	agg.Accept(OriginOf(chunks[0]), words(0, "went", 1.25, 1.3, "so", 1.0, 1.4, "we", 1.2, 1.3, "um", 3.0, 3.0))
	got := agg.Words()
	if want := []string{"so", "we", "went", "um"}; !reflect.DeepEqual(texts(got), want) {
		t.Fatalf("words = %v, want %v", texts(got), want)
	}
	for i, w := range got {
		if w.End <= w.Start {
			t.Fatalf("word %q has no duration [%v, %v]", w.Text, w.Start, w.End)
		}
		if i > 0 && w.Start < got[i-1].End {
			t.Fatalf("word %q starts at %v before %q ends at %v", w.Text, w.Start, got[i-1].Text, got[i-1].End)
		}
	}
}
