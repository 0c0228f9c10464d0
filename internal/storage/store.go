package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RAVBLACK/StrawHats/internal/domain"
)

const (
	stateKeyCursor     = "cursor"
	stateKeyAlertState = "alert_state"
)

// Store provides SQLite-backed persistence for all durable monitor state.
// It implements domain.HistoryStore, domain.CursorStore,
// domain.AlertStateStore and domain.AlertLog.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at dbPath, runs migrations
// and returns a Store.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	// WAL for concurrent dashboard reads during the evaluation pass,
	// synchronous=FULL so a commit really is on disk before the cursor
	// moves past it.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Mood history ---

// Append records a score. INSERT OR IGNORE keyed on line_idx makes the
// crash-recovery re-score a no-op instead of a duplicate.
func (s *Store) Append(ctx context.Context, rec domain.ScoreRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO mood_history (line_idx, score, observed_at) VALUES (?, ?, ?)`,
		rec.Index, rec.Score, rec.ObservedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storage: append history %d: %w", rec.Index, err)
	}
	return nil
}

// ReadRecent returns the n most recent records in ascending index order.
func (s *Store) ReadRecent(ctx context.Context, n int) ([]domain.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line_idx, score, observed_at FROM
		   (SELECT line_idx, score, observed_at FROM mood_history ORDER BY line_idx DESC LIMIT ?)
		 ORDER BY line_idx ASC`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: read recent history: %w", err)
	}
	return scanRecords(rows)
}

// ReadRange returns records with start <= index <= end in ascending order.
func (s *Store) ReadRange(ctx context.Context, start, end int64) ([]domain.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line_idx, score, observed_at FROM mood_history
		 WHERE line_idx >= ? AND line_idx <= ? ORDER BY line_idx ASC`, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: read history range [%d, %d]: %w", start, end, err)
	}
	return scanRecords(rows)
}

// ReadSince returns records observed at or after since, in ascending index order.
func (s *Store) ReadSince(ctx context.Context, since time.Time) ([]domain.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line_idx, score, observed_at FROM mood_history
		 WHERE observed_at >= ? ORDER BY line_idx ASC`,
		since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: read history since %s: %w", since, err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]domain.ScoreRecord, error) {
	defer rows.Close()

	var records []domain.ScoreRecord
	for rows.Next() {
		var rec domain.ScoreRecord
		var observedAt string
		if err := rows.Scan(&rec.Index, &rec.Score, &observedAt); err != nil {
			return nil, fmt.Errorf("storage: scan history record: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, observedAt)
		if err != nil {
			return nil, fmt.Errorf("storage: parse observed_at %q: %w", observedAt, err)
		}
		rec.ObservedAt = ts
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate history records: %w", err)
	}
	return records, nil
}

// --- Versioned app state (cursor, alert state) ---

type cursorPayload struct {
	LastScoredIndex int64 `json:"last_scored_index"`
}

// LoadCursor returns the persisted cursor, or the default {-1, 0} if none
// has been saved yet.
func (s *Store) LoadCursor(ctx context.Context) (domain.Cursor, error) {
	value, version, err := s.loadState(ctx, stateKeyCursor)
	if err != nil {
		return domain.Cursor{}, err
	}
	if version == 0 {
		return domain.Cursor{LastScoredIndex: -1}, nil
	}

	var p cursorPayload
	if err := json.Unmarshal(value, &p); err != nil {
		return domain.Cursor{}, fmt.Errorf("storage: decode cursor: %w", err)
	}
	return domain.Cursor{LastScoredIndex: p.LastScoredIndex, Version: version}, nil
}

// SaveCursor persists the cursor with compare-and-swap on its version.
func (s *Store) SaveCursor(ctx context.Context, cur domain.Cursor) (domain.Cursor, error) {
	payload, err := json.Marshal(cursorPayload{LastScoredIndex: cur.LastScoredIndex})
	if err != nil {
		return domain.Cursor{}, fmt.Errorf("storage: encode cursor: %w", err)
	}
	newVersion, err := s.saveState(ctx, stateKeyCursor, payload, cur.Version)
	if err != nil {
		return domain.Cursor{}, err
	}
	cur.Version = newVersion
	return cur, nil
}

type alertStatePayload struct {
	State                  domain.MachineState `json:"state"`
	NegativeCount          int                 `json:"negative_count"`
	EpisodeStart           int64               `json:"episode_start"`
	EpisodeStartAt         *time.Time          `json:"episode_start_at,omitempty"`
	MinScore               float64             `json:"min_score"`
	PendingEventID         *uuid.UUID          `json:"pending_event_id,omitempty"`
	LastAlertAt            *time.Time          `json:"last_alert_at,omitempty"`
	LastScoredIndexAtAlert int64               `json:"last_scored_index_at_alert"`
	CooldownUntil          *time.Time          `json:"cooldown_until,omitempty"`
}

// LoadAlertState returns the persisted alert machine state, or the idle
// starting state if none has been saved yet.
func (s *Store) LoadAlertState(ctx context.Context) (domain.AlertState, error) {
	value, version, err := s.loadState(ctx, stateKeyAlertState)
	if err != nil {
		return domain.AlertState{}, err
	}
	if version == 0 {
		return domain.NewAlertState(), nil
	}

	var p alertStatePayload
	if err := json.Unmarshal(value, &p); err != nil {
		return domain.AlertState{}, fmt.Errorf("storage: decode alert state: %w", err)
	}
	return domain.AlertState{
		State:                  p.State,
		NegativeCount:          p.NegativeCount,
		EpisodeStart:           p.EpisodeStart,
		EpisodeStartAt:         p.EpisodeStartAt,
		MinScore:               p.MinScore,
		PendingEventID:         p.PendingEventID,
		LastAlertAt:            p.LastAlertAt,
		LastScoredIndexAtAlert: p.LastScoredIndexAtAlert,
		CooldownUntil:          p.CooldownUntil,
		Version:                version,
	}, nil
}

// SaveAlertState persists the alert machine state with compare-and-swap on
// its version.
func (s *Store) SaveAlertState(ctx context.Context, st domain.AlertState) (domain.AlertState, error) {
	payload, err := json.Marshal(alertStatePayload{
		State:                  st.State,
		NegativeCount:          st.NegativeCount,
		EpisodeStart:           st.EpisodeStart,
		EpisodeStartAt:         st.EpisodeStartAt,
		MinScore:               st.MinScore,
		PendingEventID:         st.PendingEventID,
		LastAlertAt:            st.LastAlertAt,
		LastScoredIndexAtAlert: st.LastScoredIndexAtAlert,
		CooldownUntil:          st.CooldownUntil,
	})
	if err != nil {
		return domain.AlertState{}, fmt.Errorf("storage: encode alert state: %w", err)
	}
	newVersion, err := s.saveState(ctx, stateKeyAlertState, payload, st.Version)
	if err != nil {
		return domain.AlertState{}, err
	}
	st.Version = newVersion
	return st, nil
}

func (s *Store) loadState(ctx context.Context, key string) ([]byte, int64, error) {
	var value string
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, version FROM app_state WHERE key = ?`, key,
	).Scan(&value, &version)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("storage: load state %q: %w", key, err)
	}
	return []byte(value), version, nil
}

// saveState writes the state row only if the caller still holds the current
// version. Version 0 means "no row yet": the row is created, and losing the
// creation race surfaces as a conflict too.
func (s *Store) saveState(ctx context.Context, key string, payload []byte, version int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if version == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO app_state (key, value, version, updated_at) VALUES (?, ?, 1, ?)`,
			key, string(payload), now,
		)
		if err != nil {
			return 0, fmt.Errorf("storage: insert state %q: %w", key, err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("storage: insert state %q rows affected: %w", key, err)
		}
		if inserted == 1 {
			return 1, nil
		}
		return 0, fmt.Errorf("storage: save state %q: %w", key, domain.ErrStateConflict)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE app_state SET value = ?, version = version + 1, updated_at = ? WHERE key = ? AND version = ?`,
		string(payload), now, key, version,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: update state %q: %w", key, err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage: update state %q rows affected: %w", key, err)
	}
	if updated == 0 {
		return 0, fmt.Errorf("storage: save state %q: %w", key, domain.ErrStateConflict)
	}
	return version + 1, nil
}

// --- Alert log ---

// AppendEvent inserts a new alert event into the log.
func (s *Store) AppendEvent(ctx context.Context, ev domain.AlertEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_log (id, fired_at, start_idx, end_idx, severity, delivered, attempts, abandoned)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.FiredAt.UTC().Format(time.RFC3339Nano),
		ev.StartIndex, ev.EndIndex, string(ev.Severity),
		boolToInt(ev.Delivered), ev.DeliveryAttempts, boolToInt(ev.Abandoned),
	)
	if err != nil {
		return fmt.Errorf("storage: append alert event %s: %w", ev.ID, err)
	}
	return nil
}

// UpdateEvent overwrites delivery bookkeeping for an existing event.
func (s *Store) UpdateEvent(ctx context.Context, ev domain.AlertEvent) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_log SET end_idx = ?, severity = ?, delivered = ?, attempts = ?, abandoned = ? WHERE id = ?`,
		ev.EndIndex, string(ev.Severity),
		boolToInt(ev.Delivered), ev.DeliveryAttempts, boolToInt(ev.Abandoned), ev.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("storage: update alert event %s: %w", ev.ID, err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: update alert event %s rows affected: %w", ev.ID, err)
	}
	if updated == 0 {
		return fmt.Errorf("storage: update alert event %s: %w", ev.ID, domain.ErrEventNotFound)
	}
	return nil
}

// GetEvent returns the event with the given id.
func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*domain.AlertEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fired_at, start_idx, end_idx, severity, delivered, attempts, abandoned
		 FROM alert_log WHERE id = ?`, id.String(),
	)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("storage: get alert event %s: %w", id, domain.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get alert event %s: %w", id, err)
	}
	return ev, nil
}

// ListEvents returns the most recent events first, at most limit.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fired_at, start_idx, end_idx, severity, delivered, attempts, abandoned
		 FROM alert_log ORDER BY fired_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list alert events: %w", err)
	}
	defer rows.Close()

	var events []domain.AlertEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan alert event: %w", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate alert events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.AlertEvent, error) {
	var ev domain.AlertEvent
	var id, firedAt, severity string
	var delivered, abandoned int
	if err := row.Scan(&id, &firedAt, &ev.StartIndex, &ev.EndIndex, &severity, &delivered, &ev.DeliveryAttempts, &abandoned); err != nil {
		return nil, err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", id, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, firedAt)
	if err != nil {
		return nil, fmt.Errorf("parse fired_at %q: %w", firedAt, err)
	}
	ev.ID = parsedID
	ev.FiredAt = ts
	ev.Severity = domain.Severity(severity)
	ev.Delivered = delivered != 0
	ev.Abandoned = abandoned != 0
	return &ev, nil
}

// --- Privacy reset ---

// Reset atomically clears history, alert log and the alert machine state.
// The evaluation cursor survives the reset: wiping it would make the next
// sweep re-score the whole file and repopulate the history just cleared.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: reset: begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{
		`DELETE FROM mood_history`,
		`DELETE FROM alert_log`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage: reset: %s: %w", stmt, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM app_state WHERE key = ?`, stateKeyAlertState); err != nil {
		return fmt.Errorf("storage: reset: clear alert state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: reset: commit: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
