package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MachineState is the alerting state machine's current phase.
type MachineState string

const (
	// StateIdle means no accumulated concern.
	StateIdle MachineState = "idle"
	// StateAccumulating means the negative counter is above zero but below
	// the configured limit.
	StateAccumulating MachineState = "accumulating"
	// StatePendingDelivery means the threshold was crossed and an AlertEvent
	// exists, but delivery has not yet been confirmed.
	StatePendingDelivery MachineState = "pending_delivery"
	// StateCooldown means an alert was delivered and new alerts are
	// suppressed until the cooldown expires.
	StateCooldown MachineState = "cooldown"
)

// Severity classifies how alarming an episode is, derived purely from
// counts and scores so the notification can stay content-free.
type Severity string

const (
	SeverityElevated Severity = "elevated"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ThresholdConfig controls when the alert machine fires.
type ThresholdConfig struct {
	// ScoreThreshold is the polarity score at or below which a line counts
	// as negative.
	ScoreThreshold float64 `json:"score_threshold"`
	// CountLimit is the number of qualifying negative lines that triggers
	// an alert.
	CountLimit int `json:"count_limit"`
	// Cooldown is the minimum time after a delivered alert during which no
	// new alert may fire.
	Cooldown time.Duration `json:"cooldown"`
}

// AlertState is the persisted state of the alert machine. It survives
// restarts so a half-finished episode is resumed, never duplicated.
type AlertState struct {
	State MachineState `json:"state"`
	// NegativeCount is the number of qualifying negative lines since the
	// last successful (or abandoned) alert.
	NegativeCount int `json:"negative_count"`
	// EpisodeStart is the index of the first qualifying line of the current
	// episode, or -1 when the counter is zero.
	EpisodeStart int64 `json:"episode_start"`
	// EpisodeStartAt is when the current episode's first qualifying line
	// was observed, nil when the counter is zero.
	EpisodeStartAt *time.Time `json:"episode_start_at,omitempty"`
	// MinScore is the lowest score seen during the current episode.
	MinScore float64 `json:"min_score"`
	// PendingEventID identifies the undelivered AlertEvent being retried,
	// if State is StatePendingDelivery.
	PendingEventID *uuid.UUID `json:"pending_event_id,omitempty"`
	// LastAlertAt is when the last alert fired, nil if none ever has.
	LastAlertAt *time.Time `json:"last_alert_at,omitempty"`
	// LastScoredIndexAtAlert is the line index the last alert covered up to.
	LastScoredIndexAtAlert int64 `json:"last_scored_index_at_alert"`
	// CooldownUntil is when suppression ends, nil outside StateCooldown.
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Version       int64      `json:"-"`
}

// NewAlertState returns the zero-episode starting state.
func NewAlertState() AlertState {
	return AlertState{
		State:                  StateIdle,
		EpisodeStart:           -1,
		LastScoredIndexAtAlert: -1,
	}
}

// AlertEvent is one fired alert. Events are only ever appended and updated
// in place (delivery bookkeeping); they are never deleted. Together they
// form the audit log.
type AlertEvent struct {
	ID               uuid.UUID `json:"id"`
	FiredAt          time.Time `json:"fired_at"`
	StartIndex       int64     `json:"start_index"`
	EndIndex         int64     `json:"end_index"`
	Severity         Severity  `json:"severity"`
	Delivered        bool      `json:"delivered"`
	DeliveryAttempts int       `json:"delivery_attempts"`
	Abandoned        bool      `json:"abandoned"`
}

// Episode is the content-free notification payload handed to the notifier.
// It deliberately carries no text: raw captured content never leaves the
// device.
type Episode struct {
	EventID       uuid.UUID
	FiredAt       time.Time
	From          time.Time
	To            time.Time
	NegativeCount int
	CountLimit    int
	Severity      Severity
	Attempt       int
}

// AlertStateStore persists the alert machine state with the same
// compare-and-swap contract as CursorStore.
type AlertStateStore interface {
	LoadAlertState(ctx context.Context) (AlertState, error)
	SaveAlertState(ctx context.Context, st AlertState) (AlertState, error)
}

// AlertLog is the durable record of fired alerts.
type AlertLog interface {
	AppendEvent(ctx context.Context, ev AlertEvent) error
	// UpdateEvent overwrites delivery bookkeeping for an existing event.
	UpdateEvent(ctx context.Context, ev AlertEvent) error
	GetEvent(ctx context.Context, id uuid.UUID) (*AlertEvent, error)
	// ListEvents returns the most recent events first, at most limit.
	ListEvents(ctx context.Context, limit int) ([]AlertEvent, error)
}

// Notifier delivers one alert episode to the configured guardian channel.
// Deliver must respect ctx and return promptly once it is cancelled;
// a timeout is reported as an error and retried by the caller.
type Notifier interface {
	Deliver(ctx context.Context, ep Episode) error
}
