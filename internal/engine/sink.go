package engine

import (
	"context"

	"audio2subs/internal/aggregate"
	"audio2subs/internal/journal"
	"audio2subs/internal/logging"
	"audio2subs/internal/worker"
)

// Handle receives every attempt from the worker. Accepted words and gaps
// land in the aggregator before the scheduler marks the chunk terminal.
func (e *Engine) Handle(ctx context.Context, r worker.Result) {
	switch r.Outcome {
	case worker.OutcomeDone:
		before := e.agg.Dropped()
		if e.agg.Accept(aggregate.OriginOf(r.Chunk), r.Words) {
			e.metrics.AddDuplicates(ctx, e.agg.Dropped()-before)
		}
	case worker.OutcomeFailed, worker.OutcomeFatal:
		e.agg.MarkGap(r.Chunk.Core)
	}

	attempt := journal.Attempt{
		SessionID: e.params.SessionID,
		ChunkID:   r.Chunk.ID,
		Attempt:   r.Chunk.Attempts,
		Start:     r.Chunk.Start,
		End:       r.Chunk.End,
		Outcome:   string(r.Outcome),
		Words:     len(r.Words),
		Elapsed:   r.Elapsed,
	}
	if r.Err != nil {
		attempt.Error = r.Err.Error()
	}
	if err := e.recorder.RecordAttempt(ctx, attempt); err != nil {
		e.logger.Debug("journal attempt not recorded", logging.Error(err))
	}
	e.metrics.RecordChunk(ctx, e.asrName, string(r.Outcome), r.Elapsed)
	e.signal()
}
