package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/RAVBLACK/StrawHats/internal/domain"
	"github.com/RAVBLACK/StrawHats/internal/metrics"
)

// Options bound delivery behaviour.
type Options struct {
	// DeliverTimeout caps a single delivery attempt so the evaluation loop
	// is never starved by a slow notifier.
	DeliverTimeout time.Duration
	// MaxDeliveryAttempts is the attempt budget per episode; beyond it the
	// episode is abandoned (loudly) and the counter force-reset.
	MaxDeliveryAttempts int
}

// Machine is the alert state machine. It is safe for concurrent use, but
// Process is expected to be called from a single evaluation pass at a time;
// the store's versioned writes turn a violation into ErrStateConflict.
type Machine struct {
	store    domain.AlertStateStore
	log      domain.AlertLog
	notifier domain.Notifier
	clock    clockwork.Clock

	mu   sync.Mutex
	cfg  domain.ThresholdConfig
	opts Options
}

// NewMachine creates a Machine with the given threshold configuration.
func NewMachine(store domain.AlertStateStore, log domain.AlertLog, notifier domain.Notifier, clock clockwork.Clock, cfg domain.ThresholdConfig, opts Options) *Machine {
	return &Machine{
		store:    store,
		log:      log,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		opts:     opts,
	}
}

// SetConfig replaces the threshold configuration. The next processed record
// re-evaluates the crossing condition against the new values, so lowering
// count_limit mid-episode can fire immediately.
func (m *Machine) SetConfig(cfg domain.ThresholdConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// Config returns the current threshold configuration.
func (m *Machine) Config() domain.ThresholdConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Snapshot returns the persisted machine state.
func (m *Machine) Snapshot(ctx context.Context) (domain.AlertState, error) {
	return m.store.LoadAlertState(ctx)
}

// Process feeds one ScoreRecord through the state machine and persists the
// outcome. Records must arrive in strictly increasing index order.
func (m *Machine) Process(ctx context.Context, rec domain.ScoreRecord) error {
	m.mu.Lock()
	cfg := m.cfg
	opts := m.opts
	m.mu.Unlock()

	st, err := m.store.LoadAlertState(ctx)
	if err != nil {
		return err
	}

	now := m.clock.Now()

	// Cooldown expiry is checked against wall-clock time on every record.
	if st.State == domain.StateCooldown && st.CooldownUntil != nil && !now.Before(*st.CooldownUntil) {
		st.CooldownUntil = nil
		if st.NegativeCount > 0 {
			st.State = domain.StateAccumulating
		} else {
			st.State = domain.StateIdle
		}
	}

	// A score of exactly 0 is neutral by definition (empty or unscorable
	// input) and never counts toward the tally, whatever the threshold.
	qualifies := rec.Score <= cfg.ScoreThreshold && rec.Score != 0
	if qualifies {
		st.NegativeCount++
		if st.EpisodeStart < 0 {
			st.EpisodeStart = rec.Index
			at := rec.ObservedAt
			st.EpisodeStartAt = &at
			st.MinScore = rec.Score
		} else if rec.Score < st.MinScore {
			st.MinScore = rec.Score
		}
	}

	switch st.State {
	case domain.StatePendingDelivery:
		// An undelivered event exists: retry it rather than creating a
		// second one for the same unresolved episode.
		if err := m.retryPending(ctx, &st, rec, cfg, opts, qualifies); err != nil {
			return err
		}

	case domain.StateIdle, domain.StateAccumulating:
		if st.NegativeCount > 0 {
			st.State = domain.StateAccumulating
		}
		if st.NegativeCount >= cfg.CountLimit {
			if err := m.fire(ctx, &st, rec, cfg, opts); err != nil {
				return err
			}
		}

	case domain.StateCooldown:
		// Suppressed: the record is already in history, the counter above
		// keeps accumulating, but no event may fire until expiry.
	}

	if _, err := m.store.SaveAlertState(ctx, st); err != nil {
		return err
	}
	return nil
}

// fire creates the AlertEvent for a threshold crossing and attempts its
// first delivery. The event is durably logged before the notifier is
// invoked, so a crash cannot lose track of a fired episode.
func (m *Machine) fire(ctx context.Context, st *domain.AlertState, rec domain.ScoreRecord, cfg domain.ThresholdConfig, opts Options) error {
	ev := domain.AlertEvent{
		ID:         uuid.New(),
		FiredAt:    m.clock.Now(),
		StartIndex: st.EpisodeStart,
		EndIndex:   rec.Index,
		Severity:   severityFor(st.NegativeCount, cfg.CountLimit, st.MinScore),
	}
	if err := m.log.AppendEvent(ctx, ev); err != nil {
		return err
	}

	st.State = domain.StatePendingDelivery
	st.PendingEventID = &ev.ID
	metrics.AlertsFired.Inc()
	slog.Info("alert fired",
		"alert_event_id", ev.ID.String(),
		"severity", string(ev.Severity),
		"negative_count", st.NegativeCount,
		"index_range", fmt.Sprintf("[%d,%d]", ev.StartIndex, ev.EndIndex))

	return m.attemptDelivery(ctx, st, &ev, rec, cfg, opts)
}

func (m *Machine) retryPending(ctx context.Context, st *domain.AlertState, rec domain.ScoreRecord, cfg domain.ThresholdConfig, opts Options, qualifies bool) error {
	if st.PendingEventID == nil {
		// Inconsistent persisted state; recover rather than wedge.
		slog.Warn("pending delivery without event id, resetting to idle")
		st.State = domain.StateIdle
		return nil
	}

	ev, err := m.log.GetEvent(ctx, *st.PendingEventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			slog.Warn("pending alert event missing from log, resetting to idle",
				"alert_event_id", st.PendingEventID.String())
			st.State = domain.StateIdle
			st.PendingEventID = nil
			return nil
		}
		return err
	}

	// The episode is still open: qualifying lines extend its range.
	if qualifies && rec.Index > ev.EndIndex {
		ev.EndIndex = rec.Index
		ev.Severity = severityFor(st.NegativeCount, cfg.CountLimit, st.MinScore)
	}

	return m.attemptDelivery(ctx, st, ev, rec, cfg, opts)
}

// attemptDelivery performs exactly one bounded delivery attempt and records
// the outcome on the event and the machine state.
func (m *Machine) attemptDelivery(ctx context.Context, st *domain.AlertState, ev *domain.AlertEvent, rec domain.ScoreRecord, cfg domain.ThresholdConfig, opts Options) error {
	ev.DeliveryAttempts++

	ep := domain.Episode{
		EventID:       ev.ID,
		FiredAt:       ev.FiredAt,
		From:          ev.FiredAt,
		To:            rec.ObservedAt,
		NegativeCount: st.NegativeCount,
		CountLimit:    cfg.CountLimit,
		Severity:      ev.Severity,
		Attempt:       ev.DeliveryAttempts,
	}
	if st.EpisodeStartAt != nil {
		ep.From = *st.EpisodeStartAt
	}

	dctx, cancel := context.WithTimeout(ctx, opts.DeliverTimeout)
	err := m.notifier.Deliver(dctx, ep)
	cancel()

	if err == nil {
		ev.Delivered = true
		if uerr := m.log.UpdateEvent(ctx, *ev); uerr != nil {
			return uerr
		}

		now := m.clock.Now()
		until := now.Add(cfg.Cooldown)
		st.State = domain.StateCooldown
		st.NegativeCount = 0
		st.EpisodeStart = -1
		st.EpisodeStartAt = nil
		st.MinScore = 0
		st.PendingEventID = nil
		st.LastAlertAt = &now
		st.LastScoredIndexAtAlert = ev.EndIndex
		st.CooldownUntil = &until

		metrics.AlertsDelivered.Inc()
		slog.Info("alert delivered",
			"alert_event_id", ev.ID.String(),
			"attempts", ev.DeliveryAttempts,
			"cooldown_until", until)
		return nil
	}

	reason := "error"
	if errors.Is(err, domain.ErrDeliveryTimeout) || errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	metrics.DeliveryFailures.WithLabelValues(reason).Inc()
	slog.Warn("alert delivery failed",
		"alert_event_id", ev.ID.String(),
		"attempt", ev.DeliveryAttempts,
		"error", err)

	if ev.DeliveryAttempts >= opts.MaxDeliveryAttempts {
		ev.Abandoned = true
		if uerr := m.log.UpdateEvent(ctx, *ev); uerr != nil {
			return uerr
		}
		st.State = domain.StateIdle
		st.NegativeCount = 0
		st.EpisodeStart = -1
		st.EpisodeStartAt = nil
		st.MinScore = 0
		st.PendingEventID = nil
		metrics.AlertsAbandoned.Inc()
		slog.Error("alert abandoned after exhausting delivery attempts",
			"alert_event_id", ev.ID.String(),
			"attempts", ev.DeliveryAttempts)
		return nil
	}

	if uerr := m.log.UpdateEvent(ctx, *ev); uerr != nil {
		return uerr
	}
	// Stay pending; the next incoming record retries the same event.
	return nil
}

// severityFor derives the episode's severity tier from counts and the worst
// score seen, keeping the notification payload content-free.
func severityFor(count, limit int, minScore float64) domain.Severity {
	switch {
	case minScore <= -0.85 || count >= 2*limit:
		return domain.SeverityCritical
	case count > limit || minScore <= -0.7:
		return domain.SeverityHigh
	default:
		return domain.SeverityElevated
	}
}
