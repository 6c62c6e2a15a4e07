// Package openai transcribes chunks with an OpenAI-compatible audio
// transcription API using word timestamp granularity.
package openai
