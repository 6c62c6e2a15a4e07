// Package whispercpp runs whisper.cpp in-process through its CGO bindings.
//
// Building the real backend requires the whispercpp build tag with
// libwhisper.a and whisper.h reachable through LIBRARY_PATH and
// C_INCLUDE_PATH. Without the tag, New returns a fatal error so the service
// reports a clear configuration problem instead of failing to link.
package whispercpp

// Config selects the model and decoding options.
type Config struct {
	ModelPath string
	Language  string
	Threads   uint
}
