package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RAVBLACK/StrawHats/internal/domain"
	"github.com/RAVBLACK/StrawHats/internal/notify"
)

const sendTimeout = 30 * time.Second

// Digester builds and sends the daily mood summary.
type Digester struct {
	history   domain.HistoryStore
	log       domain.AlertLog
	messenger notify.Messenger
	clock     clockwork.Clock
}

func NewDigester(history domain.HistoryStore, log domain.AlertLog, messenger notify.Messenger, clock clockwork.Clock) *Digester {
	return &Digester{history: history, log: log, messenger: messenger, clock: clock}
}

// Run computes the last 24 hours and sends the digest. Windows with no
// scored lines are skipped.
func (d *Digester) Run(ctx context.Context) error {
	to := d.clock.Now()
	from := to.Add(-24 * time.Hour)

	recs, err := d.history.ReadSince(ctx, from)
	if err != nil {
		return fmt.Errorf("read history since %s: %w", from.Format(time.RFC3339), err)
	}
	if len(recs) == 0 {
		slog.Debug("digest skipped, no scored lines in window")
		return nil
	}

	summary := Summarize(recs, from, to)
	alerts, err := d.alertsInWindow(ctx, from)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Daily mood digest for %s", to.Format("2006-01-02"))
	body := renderDigest(summary, alerts)

	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := d.messenger.Send(sctx, subject, body); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	slog.Info("digest sent", "lines", summary.Lines, "average", summary.Average, "alerts", alerts)
	return nil
}

func (d *Digester) alertsInWindow(ctx context.Context, from time.Time) (int, error) {
	events, err := d.log.ListEvents(ctx, 100)
	if err != nil {
		return 0, fmt.Errorf("list alert events: %w", err)
	}
	count := 0
	for _, ev := range events {
		if !ev.FiredAt.Before(from) {
			count++
		}
	}
	return count, nil
}

func renderDigest(s Summary, alerts int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mood summary for the last 24 hours.\n\n")
	fmt.Fprintf(&b, "Lines scored:   %d\n", s.Lines)
	fmt.Fprintf(&b, "Average score:  %+.3f\n", s.Average)
	fmt.Fprintf(&b, "Range:          %+.3f to %+.3f\n", s.Min, s.Max)
	fmt.Fprintf(&b, "Negative lines: %d\n", s.Negative)
	fmt.Fprintf(&b, "Positive lines: %d\n", s.Positive)
	fmt.Fprintf(&b, "Neutral lines:  %d\n", s.Neutral)
	fmt.Fprintf(&b, "Alerts fired:   %d\n", alerts)
	return b.String()
}
