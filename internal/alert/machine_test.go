package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RAVBLACK/StrawHats/internal/domain"
)

// --- Mocks ---

type memStateStore struct {
	st domain.AlertState
}

func newMemStateStore() *memStateStore {
	return &memStateStore{st: domain.NewAlertState()}
}

func (m *memStateStore) LoadAlertState(ctx context.Context) (domain.AlertState, error) {
	return m.st, nil
}

func (m *memStateStore) SaveAlertState(ctx context.Context, st domain.AlertState) (domain.AlertState, error) {
	if st.Version != m.st.Version {
		return domain.AlertState{}, domain.ErrStateConflict
	}
	st.Version++
	m.st = st
	return st, nil
}

type memAlertLog struct {
	events map[uuid.UUID]domain.AlertEvent
	order  []uuid.UUID
}

func newMemAlertLog() *memAlertLog {
	return &memAlertLog{events: make(map[uuid.UUID]domain.AlertEvent)}
}

func (m *memAlertLog) AppendEvent(ctx context.Context, ev domain.AlertEvent) error {
	m.events[ev.ID] = ev
	m.order = append(m.order, ev.ID)
	return nil
}

func (m *memAlertLog) UpdateEvent(ctx context.Context, ev domain.AlertEvent) error {
	if _, ok := m.events[ev.ID]; !ok {
		return domain.ErrEventNotFound
	}
	m.events[ev.ID] = ev
	return nil
}

func (m *memAlertLog) GetEvent(ctx context.Context, id uuid.UUID) (*domain.AlertEvent, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return &ev, nil
}

func (m *memAlertLog) ListEvents(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	var out []domain.AlertEvent
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[m.order[i]])
	}
	return out, nil
}

type fakeNotifier struct {
	errs     []error // popped per call; nil entries mean success
	episodes []domain.Episode
}

func (f *fakeNotifier) Deliver(ctx context.Context, ep domain.Episode) error {
	f.episodes = append(f.episodes, ep)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

// --- Harness ---

type harness struct {
	machine  *Machine
	state    *memStateStore
	log      *memAlertLog
	notifier *fakeNotifier
	clock    *clockwork.FakeClock
	idx      int64
}

func newHarness(t *testing.T, cfg domain.ThresholdConfig, notifier *fakeNotifier) *harness {
	t.Helper()
	state := newMemStateStore()
	log := newMemAlertLog()
	clock := clockwork.NewFakeClock()
	machine := NewMachine(state, log, notifier, clock, cfg, Options{
		DeliverTimeout:      time.Second,
		MaxDeliveryAttempts: 10,
	})
	return &harness{machine: machine, state: state, log: log, notifier: notifier, clock: clock}
}

func defaultCfg() domain.ThresholdConfig {
	return domain.ThresholdConfig{ScoreThreshold: -0.5, CountLimit: 3, Cooldown: time.Hour}
}

// feed processes the next record with the given score.
func (h *harness) feed(t *testing.T, score float64) {
	t.Helper()
	rec := domain.ScoreRecord{Index: h.idx, Score: score, ObservedAt: h.clock.Now()}
	h.idx++
	require.NoError(t, h.machine.Process(context.Background(), rec))
}

// --- Tests ---

func TestProcess_ThreeNegativesFireExactlyOnce(t *testing.T) {
	h := newHarness(t, defaultCfg(), &fakeNotifier{})

	h.feed(t, -0.6)
	h.feed(t, -0.7)
	assert.Empty(t, h.log.order, "no event before the limit")

	h.feed(t, -0.55)
	require.Len(t, h.log.order, 1)
	ev := h.log.events[h.log.order[0]]
	assert.True(t, ev.Delivered)
	assert.Equal(t, int64(0), ev.StartIndex)
	assert.Equal(t, int64(2), ev.EndIndex)

	// A fourth negative during cooldown fires nothing.
	h.feed(t, -0.9)
	assert.Len(t, h.log.order, 1)
}

func TestProcess_PositiveLineDoesNotResetCounter(t *testing.T) {
	h := newHarness(t, defaultCfg(), &fakeNotifier{})

	h.feed(t, -0.6)
	h.feed(t, 0.3)
	h.feed(t, -0.6)
	assert.Empty(t, h.log.order)

	h.feed(t, -0.6)
	require.Len(t, h.log.order, 1)
	ev := h.log.events[h.log.order[0]]
	assert.Equal(t, int64(0), ev.StartIndex)
	assert.Equal(t, int64(3), ev.EndIndex)
}

func TestProcess_NeutralZeroNeverCounts(t *testing.T) {
	// Even with a non-negative threshold, a 0.0 score (empty/unscorable
	// line) must never count toward the tally.
	cfg := domain.ThresholdConfig{ScoreThreshold: 0, CountLimit: 2, Cooldown: time.Hour}
	h := newHarness(t, cfg, &fakeNotifier{})

	h.feed(t, 0)
	h.feed(t, 0)
	h.feed(t, 0)
	assert.Empty(t, h.log.order)

	st, err := h.machine.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.NegativeCount)
	assert.Equal(t, domain.StateIdle, st.State)
}

func TestProcess_RetryExtendsSameEvent(t *testing.T) {
	notifier := &fakeNotifier{errs: []error{errors.New("send failed"), errors.New("send failed"), nil}}
	cfg := domain.ThresholdConfig{ScoreThreshold: -0.5, CountLimit: 2, Cooldown: time.Hour}
	h := newHarness(t, cfg, notifier)

	h.feed(t, -0.6) // accumulating
	h.feed(t, -0.7) // fires, attempt 1 fails
	require.Len(t, h.log.order, 1)

	st, err := h.machine.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatePendingDelivery, st.State)
	assert.Equal(t, 2, st.NegativeCount, "counter must not reset on failed delivery")

	h.feed(t, 0.1)  // attempt 2 fails
	h.feed(t, -0.8) // attempt 3 succeeds

	require.Len(t, h.log.order, 1, "retries must not create a second event")
	ev := h.log.events[h.log.order[0]]
	assert.True(t, ev.Delivered)
	assert.Equal(t, 3, ev.DeliveryAttempts)
	assert.Equal(t, int64(3), ev.EndIndex, "qualifying lines extend the episode")

	st, err = h.machine.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateCooldown, st.State)
	assert.Equal(t, 0, st.NegativeCount, "counter resets only after success")
}

func TestProcess_CooldownSuppressesUntilExpiry(t *testing.T) {
	cfg := domain.ThresholdConfig{ScoreThreshold: -0.5, CountLimit: 1, Cooldown: time.Hour}
	h := newHarness(t, cfg, &fakeNotifier{})

	h.feed(t, -0.9)
	require.Len(t, h.log.order, 1)

	h.feed(t, -0.9)
	assert.Len(t, h.log.order, 1, "cooldown suppresses new events")

	h.clock.Advance(time.Hour + time.Minute)
	h.feed(t, -0.9)
	assert.Len(t, h.log.order, 2, "after expiry the machine may fire again")
}

func TestProcess_AbandonmentForceResetsCounter(t *testing.T) {
	notifier := &fakeNotifier{errs: []error{
		errors.New("down"), errors.New("down"),
	}}
	cfg := domain.ThresholdConfig{ScoreThreshold: -0.5, CountLimit: 1, Cooldown: time.Hour}
	state := newMemStateStore()
	log := newMemAlertLog()
	clock := clockwork.NewFakeClock()
	machine := NewMachine(state, log, notifier, clock, cfg, Options{
		DeliverTimeout:      time.Second,
		MaxDeliveryAttempts: 2,
	})
	ctx := context.Background()

	require.NoError(t, machine.Process(ctx, domain.ScoreRecord{Index: 0, Score: -0.9, ObservedAt: clock.Now()}))
	require.NoError(t, machine.Process(ctx, domain.ScoreRecord{Index: 1, Score: 0.2, ObservedAt: clock.Now()}))

	require.Len(t, log.order, 1)
	ev := log.events[log.order[0]]
	assert.True(t, ev.Abandoned)
	assert.False(t, ev.Delivered)
	assert.Equal(t, 2, ev.DeliveryAttempts)

	st, err := machine.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, st.State)
	assert.Equal(t, 0, st.NegativeCount)

	// A fresh episode gets a fresh event.
	require.NoError(t, machine.Process(ctx, domain.ScoreRecord{Index: 2, Score: -0.9, ObservedAt: clock.Now()}))
	assert.Len(t, log.order, 2)
}

func TestProcess_DownwardReconfigFiresImmediately(t *testing.T) {
	cfg := domain.ThresholdConfig{ScoreThreshold: -0.5, CountLimit: 5, Cooldown: time.Hour}
	h := newHarness(t, cfg, &fakeNotifier{})

	h.feed(t, -0.6)
	h.feed(t, -0.6)
	h.feed(t, -0.6)
	assert.Empty(t, h.log.order)

	cfg.CountLimit = 2
	h.machine.SetConfig(cfg)

	// Even a neutral record re-evaluates against the new limit.
	h.feed(t, 0.0)
	assert.Len(t, h.log.order, 1)
}

func TestProcess_RestartResumesPendingEpisode(t *testing.T) {
	state := newMemStateStore()
	log := newMemAlertLog()
	clock := clockwork.NewFakeClock()
	cfg := domain.ThresholdConfig{ScoreThreshold: -0.5, CountLimit: 1, Cooldown: time.Hour}
	opts := Options{DeliverTimeout: time.Second, MaxDeliveryAttempts: 10}
	ctx := context.Background()

	failing := NewMachine(state, log, &fakeNotifier{errs: []error{errors.New("down")}}, clock, cfg, opts)
	require.NoError(t, failing.Process(ctx, domain.ScoreRecord{Index: 0, Score: -0.9, ObservedAt: clock.Now()}))
	require.Len(t, log.order, 1)

	// New Machine over the same persisted state, as after a restart.
	recovered := NewMachine(state, log, &fakeNotifier{}, clock, cfg, opts)
	require.NoError(t, recovered.Process(ctx, domain.ScoreRecord{Index: 1, Score: 0.1, ObservedAt: clock.Now()}))

	require.Len(t, log.order, 1, "restart must resume the same event")
	ev := log.events[log.order[0]]
	assert.True(t, ev.Delivered)
	assert.Equal(t, 2, ev.DeliveryAttempts)
}

func TestProcess_EpisodePayloadIsContentFree(t *testing.T) {
	notifier := &fakeNotifier{}
	cfg := domain.ThresholdConfig{ScoreThreshold: -0.5, CountLimit: 1, Cooldown: time.Hour}
	h := newHarness(t, cfg, notifier)

	h.feed(t, -0.95)
	require.Len(t, notifier.episodes, 1)
	ep := notifier.episodes[0]
	assert.Equal(t, 1, ep.NegativeCount)
	assert.Equal(t, 1, ep.CountLimit)
	assert.Equal(t, domain.SeverityCritical, ep.Severity)
	assert.Equal(t, 1, ep.Attempt)
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		limit    int
		minScore float64
		want     domain.Severity
	}{
		{"just crossed", 3, 3, -0.6, domain.SeverityElevated},
		{"above limit", 4, 3, -0.6, domain.SeverityHigh},
		{"deep score", 3, 3, -0.75, domain.SeverityHigh},
		{"very deep score", 3, 3, -0.9, domain.SeverityCritical},
		{"double the limit", 6, 3, -0.55, domain.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, severityFor(tt.count, tt.limit, tt.minScore))
		})
	}
}
