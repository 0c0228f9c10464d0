// Package storage provides SQLite-backed persistence for the mood history,
// the evaluation cursor, the alert machine state and the alert log.
//
// History and alert log are append-only. Cursor and alert state live in a
// versioned key-value table with compare-and-swap writes, so a concurrent
// evaluation pass fails with domain.ErrStateConflict instead of silently
// clobbering progress.
package storage
