// Package asr defines the speech recognition backend contract.
//
// A Backend turns one PCM buffer into timed words relative to the start of
// the buffer. Backends are not assumed to be reentrant: the engine owns
// exactly one Handle, which serializes every call behind its own mutex.
// Errors are classified as transient (retry the chunk) or fatal (end the
// session) through the services error markers.
package asr
