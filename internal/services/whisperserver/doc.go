// Package whisperserver transcribes chunks through a running whisper.cpp
// server (POST /inference).
//
// Chunks are uploaded as WAV in a multipart form with
// response_format=verbose_json. Word timings come from the per-segment
// "words" array when the server provides it; otherwise segment text is
// spread across the segment span.
package whisperserver
