package domain

import (
	"context"
	"time"
)

// ScoreRecord is the immutable result of scoring one TextLine. Exactly one
// record exists per line index; the record carries no text content.
type ScoreRecord struct {
	Index      int64     `json:"index"`
	Score      float64   `json:"score"`
	ObservedAt time.Time `json:"observed_at"`
}

// Cursor marks how far evaluation has progressed over the line stream.
// LastScoredIndex is -1 before any line has been scored. Version supports
// compare-and-swap persistence so concurrent writers fail loudly instead
// of clobbering each other.
type Cursor struct {
	LastScoredIndex int64
	Version         int64
}

// HistoryStore is the durable, append-only mood history log.
type HistoryStore interface {
	// Append records a score. Appending an index that already exists is a
	// no-op; this is what makes crash recovery re-scoring safe.
	Append(ctx context.Context, rec ScoreRecord) error

	// ReadRecent returns the n most recent records in ascending index order.
	ReadRecent(ctx context.Context, n int) ([]ScoreRecord, error)

	// ReadRange returns records with start <= index <= end in ascending order.
	ReadRange(ctx context.Context, start, end int64) ([]ScoreRecord, error)

	// ReadSince returns records observed at or after the given time,
	// in ascending index order.
	ReadSince(ctx context.Context, since time.Time) ([]ScoreRecord, error)
}

// CursorStore persists the evaluation cursor.
type CursorStore interface {
	LoadCursor(ctx context.Context) (Cursor, error)

	// SaveCursor persists cur if cur.Version still matches the stored
	// version, returning the cursor with its version bumped. A stale
	// version yields ErrStateConflict.
	SaveCursor(ctx context.Context, cur Cursor) (Cursor, error)
}
