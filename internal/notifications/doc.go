// Package notifications pushes session milestones to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. WrapPlayer
// decorates a player notifier so complete and error states reach the user's
// phone as well as the mpv OSD.
package notifications
