// Package assemble turns the ordered word stream into timed subtitle lines.
//
// Words are grouped greedily into candidate lines under a characters per
// second budget. Long pauses, failed ranges and sentence ends always break a
// line. Candidates that run longer than the maximum duration are split at the
// most balanced word boundary. A final timing pass pads lines, extends short
// ones up to the next line and keeps a minimum gap between neighbours.
//
// The Assembler keeps the current line set and rebuilds only the part of it
// that newly accepted words can affect. Grouping decisions depend only on the
// current candidate and the next word, so restarting at an unchanged line
// boundary and stopping at the first old boundary that still holds produces
// the same lines as rebuilding the whole document.
package assemble
