package publish

import (
	"path/filepath"
	"strings"
)

// SubtitlePath places the subtitle next to the video, replacing its
// extension with suffix.
func SubtitlePath(video, suffix string) string {
	return strings.TrimSuffix(video, filepath.Ext(video)) + suffix
}

// FallbackPath is used when the video's directory is not writable.
func FallbackPath(workDir, video, suffix string) string {
	return filepath.Join(workDir, "subtitles", filepath.Base(SubtitlePath(video, suffix)))
}
