// Package worker runs the single transcription loop of a session.
//
// The loop repeatedly claims the chunk closest to the playhead from the
// scheduler, reads its audio, transcribes it through the exclusively owned
// backend handle and hands the outcome to a Sink. Transient failures return
// the chunk to the scheduler for a bounded retry, audio failures fail the
// chunk outright, and fatal backend errors end the loop with an error.
package worker
