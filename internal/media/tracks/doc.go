// Package tracks picks the audio stream to transcribe when mpv has not
// reported a selected track.
//
// The ranking prefers streams in the transcription language, avoids
// commentary and audio-description tracks, then favours the container's
// default flag and earlier streams. Channel count matters only to break ties,
// since dialogue is present in every mix.
package tracks
