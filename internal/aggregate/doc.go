// Package aggregate merges out-of-order chunk results into one ordered word
// stream.
//
// Words are kept in a B-tree ordered by start time. When overlapping chunks
// both transcribe the same audio, the boundary rule in Prefer decides which
// copy survives. Every mutation widens a dirty span so the assembler can
// rebuild only the affected part of the subtitle document.
package aggregate
