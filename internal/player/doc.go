// Package player models the lifecycle the engine reports to the media player.
//
// State is a closed set of variants; Machine enforces the allowed transitions
// between them and fans changes out to subscribers. Notifier is the outbound
// half of the control plane: lifecycle messages, on-screen text and subtitle
// reload requests.
package player
