// Package whisperx runs WhisperX through uvx as a transcription backend.
//
// Each chunk is written as a WAV file into a scratch directory, WhisperX is
// invoked with JSON output and word alignment, and the aligned words are
// read back. A missing launcher or model configuration problem is fatal;
// any other failed run is reported as transient so the chunk is retried.
package whisperx
