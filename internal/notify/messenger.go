package notify

import "context"

// Messenger sends a single subject/body message over one outbound channel.
type Messenger interface {
	Send(ctx context.Context, subject, body string) error
}
