package digest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RAVBLACK/StrawHats/internal/domain"
)

type stubHistory struct {
	recs []domain.ScoreRecord
}

func (s *stubHistory) Append(ctx context.Context, rec domain.ScoreRecord) error { return nil }

func (s *stubHistory) ReadRecent(ctx context.Context, n int) ([]domain.ScoreRecord, error) {
	return nil, nil
}

func (s *stubHistory) ReadRange(ctx context.Context, start, end int64) ([]domain.ScoreRecord, error) {
	return nil, nil
}

func (s *stubHistory) ReadSince(ctx context.Context, since time.Time) ([]domain.ScoreRecord, error) {
	var out []domain.ScoreRecord
	for _, r := range s.recs {
		if !r.ObservedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubAlertLog struct {
	events []domain.AlertEvent
}

func (s *stubAlertLog) AppendEvent(ctx context.Context, ev domain.AlertEvent) error { return nil }
func (s *stubAlertLog) UpdateEvent(ctx context.Context, ev domain.AlertEvent) error { return nil }

func (s *stubAlertLog) GetEvent(ctx context.Context, id uuid.UUID) (*domain.AlertEvent, error) {
	return nil, domain.ErrEventNotFound
}

func (s *stubAlertLog) ListEvents(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	return s.events, nil
}

type captureMessenger struct {
	subjects []string
	bodies   []string
}

func (c *captureMessenger) Send(ctx context.Context, subject, body string) error {
	c.subjects = append(c.subjects, subject)
	c.bodies = append(c.bodies, body)
	return nil
}

func TestSummarize(t *testing.T) {
	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	recs := []domain.ScoreRecord{
		{Index: 0, Score: -0.6, ObservedAt: from.Add(time.Hour)},
		{Index: 1, Score: 0.4, ObservedAt: from.Add(2 * time.Hour)},
		{Index: 2, Score: 0, ObservedAt: from.Add(3 * time.Hour)},
		{Index: 3, Score: -0.2, ObservedAt: from.Add(4 * time.Hour)},
	}

	s := Summarize(recs, from, to)
	assert.Equal(t, 4, s.Lines)
	assert.Equal(t, 2, s.Negative)
	assert.Equal(t, 1, s.Positive)
	assert.Equal(t, 1, s.Neutral)
	assert.InDelta(t, -0.1, s.Average, 1e-9)
	assert.Equal(t, -0.6, s.Min)
	assert.Equal(t, 0.4, s.Max)
}

func TestSummarize_EmptyWindow(t *testing.T) {
	from := time.Now()
	s := Summarize(nil, from, from.Add(time.Hour))
	assert.Equal(t, 0, s.Lines)
	assert.Equal(t, 0.0, s.Average)
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 0.0, s.Max)
}

func TestBucketize(t *testing.T) {
	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := from.Add(3 * time.Hour)
	recs := []domain.ScoreRecord{
		{Score: -0.4, ObservedAt: from.Add(10 * time.Minute)},
		{Score: -0.6, ObservedAt: from.Add(20 * time.Minute)},
		{Score: 0.5, ObservedAt: from.Add(90 * time.Minute)},
	}

	buckets := Bucketize(recs, from, to, time.Hour)
	require.Len(t, buckets, 4)
	assert.Equal(t, 2, buckets[0].Lines)
	assert.InDelta(t, -0.5, buckets[0].Average, 1e-9)
	assert.Equal(t, 1, buckets[1].Lines)
	assert.Equal(t, 0, buckets[2].Lines)
	assert.Equal(t, 0.0, buckets[2].Average)
}

func TestRun_SendsAggregateDigest(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC))
	now := clock.Now()

	history := &stubHistory{recs: []domain.ScoreRecord{
		{Index: 0, Score: -0.6, ObservedAt: now.Add(-2 * time.Hour)},
		{Index: 1, Score: 0.3, ObservedAt: now.Add(-time.Hour)},
	}}
	log := &stubAlertLog{events: []domain.AlertEvent{
		{ID: uuid.New(), FiredAt: now.Add(-3 * time.Hour)},
		{ID: uuid.New(), FiredAt: now.Add(-48 * time.Hour)},
	}}
	messenger := &captureMessenger{}

	d := NewDigester(history, log, messenger, clock)
	require.NoError(t, d.Run(context.Background()))

	require.Len(t, messenger.bodies, 1)
	assert.Contains(t, messenger.subjects[0], "2026-03-15")
	assert.Contains(t, messenger.bodies[0], "Lines scored:   2")
	assert.Contains(t, messenger.bodies[0], "Alerts fired:   1")
}

func TestRun_SkipsEmptyWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	messenger := &captureMessenger{}
	d := NewDigester(&stubHistory{}, &stubAlertLog{}, messenger, clock)

	require.NoError(t, d.Run(context.Background()))
	assert.Empty(t, messenger.bodies)
}

func TestSchedule_RejectsInvalidTime(t *testing.T) {
	s, err := NewScheduler("UTC")
	require.NoError(t, err)

	assert.Error(t, s.Schedule("25:00", func() {}))
	assert.Error(t, s.Schedule("9:00", func() {}))
	assert.NoError(t, s.Schedule("09:00", func() {}))
}
