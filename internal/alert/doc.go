// Package alert implements the threshold/cooldown state machine that turns
// a stream of per-line scores into discrete alert events.
//
// The machine is deliberately the only place alerting policy lives: the
// negative counter, the firing threshold, delivery retries and the cooldown
// all happen here, against persisted state, so a restart resumes a
// half-finished episode instead of duplicating or losing it.
package alert
