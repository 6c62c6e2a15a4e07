// Package chunk defines the unit of transcription work and the word records
// produced from it.
//
// The timeline of a video is pre-split into fixed-length chunks as soon as the
// duration is known. Neighbouring chunks overlap by a small margin so words
// that straddle a boundary are heard in full by at least one chunk; each chunk
// also carries its un-overlapped core, which the aggregator uses to decide
// which copy of a duplicated word to keep.
package chunk
