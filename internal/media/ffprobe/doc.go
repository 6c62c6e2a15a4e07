// Package ffprobe inspects media files with ffprobe.
//
// The engine uses it when the player cannot report a duration and by the
// offline transcribe command to pick an audio stream and the video size
// written into ASS headers.
package ffprobe
