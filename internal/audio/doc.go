// Package audio supplies the PCM that transcription backends consume.
//
// Audio is always 16 kHz mono signed 16-bit little-endian. The Extractor
// streams a video's audio track through ffmpeg into a temporary file and
// serves time-range reads that block until the requested span has been
// written. StaticSource serves in-memory PCM for tests and offline runs.
package audio
