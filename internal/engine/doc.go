// Package engine runs the evaluation loop: it tails the watched line file,
// scores every complete line exactly once, persists the result and the
// evaluation cursor, and hands each record to the alert machine and the
// live feed.
package engine
