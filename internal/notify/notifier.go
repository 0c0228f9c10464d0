package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/RAVBLACK/StrawHats/internal/domain"
	"github.com/RAVBLACK/StrawHats/internal/platform/retry"
)

var sendPolicy = retry.Policy{
	MaxAttempts:      2,
	InitialBackoff:   500 * time.Millisecond,
	MaxBackoff:       2 * time.Second,
	ThrottledBackoff: 3 * time.Second,
}

// AlertNotifier renders alert episodes into messages and delivers them via
// a Messenger. It satisfies domain.Notifier.
type AlertNotifier struct {
	messenger Messenger
}

func NewAlertNotifier(messenger Messenger) *AlertNotifier {
	return &AlertNotifier{messenger: messenger}
}

// Deliver sends one episode notification. Context deadline expiry is
// reported as domain.ErrDeliveryTimeout so the caller can count it.
func (n *AlertNotifier) Deliver(ctx context.Context, ep domain.Episode) error {
	if n.messenger == nil {
		return domain.ErrNotifierUnconfigured
	}

	subject := fmt.Sprintf("Mood alert: %s negativity streak", ep.Severity)
	body := renderEpisode(ep)

	err := retry.DoVoid(ctx, sendPolicy, classifySend, func() error {
		return n.messenger.Send(ctx, subject, body)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", domain.ErrDeliveryTimeout, err)
		}
		return err
	}
	return nil
}

// renderEpisode builds the notification body. It must stay content-free:
// only counts, scores, timestamps and identifiers, never observed text.
func renderEpisode(ep domain.Episode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A sustained run of negative sentiment was detected.\n\n")
	fmt.Fprintf(&b, "Severity:       %s\n", ep.Severity)
	fmt.Fprintf(&b, "Negative lines: %d (limit %d)\n", ep.NegativeCount, ep.CountLimit)
	fmt.Fprintf(&b, "Window:         %s - %s\n",
		ep.From.Format(time.RFC3339), ep.To.Format(time.RFC3339))
	fmt.Fprintf(&b, "Fired at:       %s\n", ep.FiredAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Event:          %s (attempt %d)\n", ep.EventID, ep.Attempt)
	b.WriteString("\nConsider checking in.\n")
	return b.String()
}

func classifySend(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return retry.Throttled
	}
	return retry.Transient
}
