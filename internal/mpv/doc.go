// Package mpv talks to a running mpv player over its JSON IPC socket.
//
// Client correlates command replies by request_id and delivers asynchronous
// events (property changes, client messages, shutdown) on an unbounded queue
// so a slow consumer never stalls command replies. Subtitles manages the AI
// subtitle track, and Notifier adapts the client to player.Notifier.
package mpv
