package domain

import (
	"context"
	"time"
)

// TextLine is a single fragment of observed text. Lines are owned by the
// capture layer: the monitor only ever reads them. Index is 0-based,
// monotonic and unique within a source.
type TextLine struct {
	Index      int64
	Content    string
	ObservedAt time.Time
}

// LineSource supplies the append-only, ordered stream of text fragments.
// Implementations must only return fully written lines, even while the
// capture process is appending concurrently.
type LineSource interface {
	// After returns up to limit lines with Index > after, in strictly
	// increasing index order. An empty slice means the source is caught up.
	After(ctx context.Context, after int64, limit int) ([]TextLine, error)
}

// Scorer maps a text fragment to a polarity score in [-1, 1].
// Scoring is deterministic and never fails: unscorable content degrades
// to the neutral score 0.
type Scorer interface {
	Score(text string) float64
}
