package assemble

import (
	"log/slog"
	"math"
	"reflect"
	"slices"
	"sync"

	"audio2subs/internal/chunk"
	"audio2subs/internal/logging"
	"audio2subs/internal/services"
)

// WordSource is the read side of the aggregator.
type WordSource interface {
	WordsInRange(lo, hi float64) []chunk.Word
	Gaps() []chunk.Span
}

// Document is an assembled subtitle document.
type Document struct {
	Lines []Line
	Gaps  []chunk.Span
}

// Build assembles a complete document from words in one pass. Words are
// sequenced first; aggregator output passes through unchanged.
func Build(words []chunk.Word, gaps []chunk.Span, r Rules) []Line {
	lines := linesFor(Group(chunk.Sequence(words), gaps, r), r)
	retime(lines, 0, len(lines)-1, gaps, r)
	return lines
}

// Assembler owns the line set of one session and updates it incrementally.
type Assembler struct {
	mu         sync.Mutex
	rules      Rules
	lines      []Line
	gaps       []chunk.Span
	violations int
	logger     *slog.Logger
}

// New constructs an empty assembler.
func New(rules Rules, logger *slog.Logger) *Assembler {
	return &Assembler{rules: rules, logger: logging.NewComponentLogger(logger, "assembler")}
}

// Document returns a copy of the current lines.
func (a *Assembler) Document() Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.documentLocked()
}

func (a *Assembler) documentLocked() Document {
	return Document{Lines: slices.Clone(a.lines), Gaps: slices.Clone(a.gaps)}
}

// Violations counts hard rule violations logged so far.
func (a *Assembler) Violations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.violations
}

// Assemble rebuilds the lines that words in dirty can affect and reports
// whether the document changed. Lines before the candidate preceding dirty
// and after the first unchanged boundary following it are left untouched.
func (a *Assembler) Assemble(src WordSource, dirty chunk.Span) (Document, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if dirty.Empty() {
		return a.documentLocked(), false
	}
	gaps := src.Gaps()
	gapsChanged := !slices.Equal(gaps, a.gaps)
	a.gaps = gaps

	heads := a.headsLocked()
	first := len(heads)
	for b := range heads {
		if a.lastMid(heads, b) >= dirty.Lo {
			first = b
			break
		}
	}
	restart := max(first-1, 0)
	lo := math.Inf(-1)
	if restart > 0 {
		lo = a.lines[heads[restart]].Words[0].Mid()
	}

	k := restart + 1
	for k < len(heads) && a.lines[heads[k]].Words[0].Mid() <= dirty.Hi {
		k++
	}
	var fresh []Line
	for ; ; k++ {
		hi := math.Inf(1)
		if k < len(heads) {
			hi = a.lines[heads[k]].Words[0].Mid()
		}
		groups := Group(src.WordsInRange(lo, hi), gaps, a.rules)
		if k >= len(heads) || len(groups) == 0 ||
			breaksBefore(groups[len(groups)-1], a.lines[heads[k]].Words[0], gaps, a.rules) {
			fresh = linesFor(groups, a.rules)
			break
		}
	}

	from := len(a.lines)
	if restart < len(heads) {
		from = heads[restart]
	}
	to := len(a.lines)
	if k < len(heads) {
		to = heads[k]
	}
	ctxLo := max(from-1, 0)
	ctxHi := min(to+1, len(a.lines))
	before := slices.Clone(a.lines[ctxLo:ctxHi])

	a.lines = slices.Replace(a.lines, from, to, fresh...)
	retime(a.lines, from-1, from+len(fresh), gaps, a.rules)
	after := a.lines[ctxLo:min(ctxLo+len(fresh)+(ctxHi-ctxLo)-(to-from), len(a.lines))]
	changed := gapsChanged || !reflect.DeepEqual(before, after)

	a.checkLocked(ctxLo, ctxLo+len(after))
	return a.documentLocked(), changed
}

func (a *Assembler) headsLocked() []int {
	var heads []int
	for i, l := range a.lines {
		if l.head {
			heads = append(heads, i)
		}
	}
	return heads
}

func (a *Assembler) lastMid(heads []int, b int) float64 {
	end := len(a.lines)
	if b+1 < len(heads) {
		end = heads[b+1]
	}
	words := a.lines[end-1].Words
	return words[len(words)-1].Mid()
}

// checkLocked logs hard violations in lines[lo:hi]. Offending lines are kept
// as they are.
func (a *Assembler) checkLocked(lo, hi int) {
	lo = max(lo-1, 0)
	hi = min(hi+1, len(a.lines))
	for _, v := range Validate(a.lines[lo:hi], a.gaps, a.rules) {
		if !v.Hard {
			continue
		}
		a.violations++
		line := a.lines[lo+v.Line]
		err := services.Wrap(services.ErrAssembly, "assemble", v.Kind, v.Detail, nil)
		logging.ErrorWithContext(a.logger, "subtitle line breaks assembly rules", "assembly_violation",
			logging.Error(err),
			logging.Seconds("line_start", line.Start),
			logging.Seconds("line_end", line.End),
			logging.String("text", line.Text()),
			logging.String(logging.FieldImpact, "line is published unchanged"),
			logging.String(logging.FieldErrorHint, "report the word timings in this log entry"),
		)
	}
}
