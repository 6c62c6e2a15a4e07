// Package controller connects the mpv event stream to subtitle sessions.
//
// The controller observes the playing file, playhead, pause state and
// subtitle selection. A newly loaded file closes the previous session and
// opens an engine for the new one; seeks and playhead updates are forwarded
// to the active engine. The ai-subs/stop script message ends the session
// and, unless persistent mode is on, the controller itself.
package controller
