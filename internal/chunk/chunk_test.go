package chunk

import (
	"math"
	"testing"
)

func TestSplitCoversTimelineWithOverlap(t *testing.T) {
	chunks, err := Split(150, 60, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("len = %d, want 3", len(chunks))
	}
	want := []struct {
		start, end     float64
		coreLo, coreHi float64
	}{
		{0, 61, 0, 60},
		{59, 121, 60, 120},
		{119, 150, 120, 150},
	}
	for i, w := range want {
		c := chunks[i]
		if c.ID != i || c.Status != StatusPending {
			t.Fatalf("chunk %d: id=%d status=%s", i, c.ID, c.Status)
		}
		if c.Start != w.start || c.End != w.end {
			t.Fatalf("chunk %d span = [%v,%v], want [%v,%v]", i, c.Start, c.End, w.start, w.end)
		}
		if c.Core.Lo != w.coreLo || c.Core.Hi != w.coreHi {
			t.Fatalf("chunk %d core = %+v, want [%v,%v]", i, c.Core, w.coreLo, w.coreHi)
		}
	}
}

func TestSplitExactMultiple(t *testing.T) {
	chunks, err := Split(90, 30, 0)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("len = %d, want 3", len(chunks))
	}
	if chunks[2].Start != 60 || chunks[2].End != 90 {
		t.Fatalf("last chunk = %v", chunks[2])
	}
	if mid := chunks[1].Mid(); mid != 45 {
		t.Fatalf("mid = %v, want 45", mid)
	}
}

func TestSplitShortVideo(t *testing.T) {
	chunks, err := Split(12.5, 60, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Start != 0 || chunks[0].End != 12.5 {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name                   string
		total, length, overlap float64
	}{
		{"zero total", 0, 60, 1},
		{"nan total", math.NaN(), 60, 1},
		{"zero length", 100, 0, 0},
		{"negative overlap", 100, 60, -1},
		{"overlap too wide", 100, 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Split(tt.total, tt.length, tt.overlap); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSpanHelpers(t *testing.T) {
	a := Span{Lo: 1, Hi: 3}
	b := Span{Lo: 3, Hi: 5}
	if a.Overlaps(b) {
		t.Fatal("touching spans should not overlap")
	}
	if !a.Overlaps(Span{Lo: 2.5, Hi: 4}) {
		t.Fatal("expected overlap")
	}
	if u := EmptySpan.Union(a); u != a {
		t.Fatalf("union with empty = %+v", u)
	}
	if u := a.Union(b); u.Lo != 1 || u.Hi != 5 {
		t.Fatalf("union = %+v", u)
	}
}

func TestIndexAndNormalize(t *testing.T) {
	if got := Index(125, 60); got != 2 {
		t.Fatalf("Index = %d, want 2", got)
	}
	w := Word{Text: "  hi ", Start: -0.2, End: -0.5}.Normalize()
	if w.Text != "hi" || w.Start != 0 || w.End != 0 {
		t.Fatalf("Normalize = %+v", w)
	}
	if !StatusDone.Terminal() || StatusInProgress.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestSequence(t *testing.T) {
	word := func(text string, start, end float64) Word { return Word{Text: text, Start: start, End: end} }
	tests := []struct {
		name string
		in   []Word
		want []Word
	}{
		{
			name: "overlap trims the earlier word",
			in:   []Word{word("so", 1.0, 1.4), word("we", 1.2, 1.3), word("went", 1.25, 1.3)},
			want: []Word{word("so", 1.0, 1.2), word("we", 1.2, 1.25), word("went", 1.25, 1.3)},
		},
		{
			name: "zero length words spread out",
			in:   []Word{word("a", 1, 1), word("b", 1, 1)},
			want: []Word{word("a", 1, 1.01), word("b", 1.01, 1.02)},
		},
		{
			name: "same start keeps a minimum for the earlier word",
			in:   []Word{word("x", 1.0, 2.0), word("y", 1.0, 1.5)},
			want: []Word{word("x", 1.0, 1.01), word("y", 1.01, 1.5)},
		},
		{
			name: "sorted and blanks dropped",
			in:   []Word{word("b", 2, 2.5), word("  ", 1, 1.5), word("a", 0.5, 1)},
			want: []Word{word("a", 0.5, 1), word("b", 2, 2.5)},
		},
		{
			name: "successive words unchanged",
			in:   []Word{word("one", 0, 0.5), word("two", 0.5, 0.9), word("three", 1.2, 1.6)},
			want: []Word{word("one", 0, 0.5), word("two", 0.5, 0.9), word("three", 1.2, 1.6)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sequence(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				g, w := got[i], tt.want[i]
				if g.Text != w.Text || math.Abs(g.Start-w.Start) > 1e-9 || math.Abs(g.End-w.End) > 1e-9 {
					t.Fatalf("word %d = %+v, want %+v", i, g, w)
				}
			}
			if again := Sequence(got); !equalWords(again, got) {
				t.Fatalf("second pass changed words: %+v -> %+v", got, again)
			}
		})
	}
}

func equalWords(a, b []Word) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
