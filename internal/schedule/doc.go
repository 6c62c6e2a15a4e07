// Package schedule implements the priority scheduler that decides which chunk
// to transcribe next.
//
// Priority is the distance between a chunk's midpoint and the playhead,
// closest first, with ties going to the earliest start. Ordering is computed
// when Next is called, so position updates only record the new attention
// point and never disturb chunks that are already in progress. Seeks
// additionally demote far in-flight chunks; the running backend call is not
// interrupted and its result is still merged.
//
// Each chunk carries a bounded attempt count. A failed attempt returns the
// chunk to pending until the retry limit is exhausted, after which the chunk
// is permanently failed and its range becomes a gap in the subtitles.
package schedule
