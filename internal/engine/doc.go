// Package engine runs one subtitle session for one video.
//
// An Engine owns the chunk scheduler, the word aggregator, the subtitle
// assembler and the throttled publisher for its video. A single worker
// feeds transcribed chunks into the aggregator; each change re-assembles the
// dirty span and schedules a rewrite of the subtitle file, which the player
// reloads. Seeks and playhead jumps re-prioritize pending chunks.
package engine
