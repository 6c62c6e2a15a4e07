// Package publish renders assembled subtitle documents and swaps them into
// place atomically.
//
// A Publisher writes to a pending file in the target directory and renames it
// over the destination, so a reader only ever sees a previous complete file
// or the new one. After each successful write the player is asked to reload.
// Throttle coalesces rapid updates into at most one write per interval.
package publish
