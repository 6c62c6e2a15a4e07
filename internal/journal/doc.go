// Package journal keeps a SQLite ledger of transcription sessions and their
// chunk attempts for the history command. Transcript text is never stored.
package journal
