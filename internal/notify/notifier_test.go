package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RAVBLACK/StrawHats/internal/domain"
)

type fakeMessenger struct {
	errs     []error
	subjects []string
	bodies   []string
}

func (f *fakeMessenger) Send(ctx context.Context, subject, body string) error {
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func sampleEpisode() domain.Episode {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return domain.Episode{
		EventID:       uuid.New(),
		FiredAt:       now,
		From:          now.Add(-5 * time.Minute),
		To:            now,
		NegativeCount: 5,
		CountLimit:    5,
		Severity:      domain.SeverityHigh,
		Attempt:       1,
	}
}

func TestDeliver_RendersAggregateOnlyMessage(t *testing.T) {
	m := &fakeMessenger{}
	n := NewAlertNotifier(m)

	require.NoError(t, n.Deliver(context.Background(), sampleEpisode()))

	require.Len(t, m.bodies, 1)
	assert.Contains(t, m.subjects[0], "high")
	assert.Contains(t, m.bodies[0], "Negative lines: 5 (limit 5)")
	assert.Contains(t, m.bodies[0], "2026-03-14T09:30:00Z")
}

func TestDeliver_RetriesTransientFailureOnce(t *testing.T) {
	m := &fakeMessenger{errs: []error{errors.New("connection reset")}}
	n := NewAlertNotifier(m)

	require.NoError(t, n.Deliver(context.Background(), sampleEpisode()))
	assert.Len(t, m.bodies, 2)
}

func TestDeliver_MapsDeadlineToDeliveryTimeout(t *testing.T) {
	m := &fakeMessenger{errs: []error{context.DeadlineExceeded, context.DeadlineExceeded}}
	n := NewAlertNotifier(m)

	err := n.Deliver(context.Background(), sampleEpisode())
	assert.ErrorIs(t, err, domain.ErrDeliveryTimeout)
}

func TestDeliver_NilMessengerIsUnconfigured(t *testing.T) {
	n := NewAlertNotifier(nil)
	err := n.Deliver(context.Background(), sampleEpisode())
	assert.ErrorIs(t, err, domain.ErrNotifierUnconfigured)
}
