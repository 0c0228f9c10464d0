package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/RAVBLACK/StrawHats/internal/domain"
	"github.com/RAVBLACK/StrawHats/internal/metrics"
)

const (
	commandTimeout   = 5 * time.Second
	stopTimeout      = 10 * time.Second
	defaultBatchSize = 256
)

// AlertProcessor consumes every persisted score record in order.
type AlertProcessor interface {
	Process(ctx context.Context, rec domain.ScoreRecord) error
}

// Publisher receives every newly scored record, e.g. for the live feed.
// Publish must not block.
type Publisher interface {
	Publish(rec domain.ScoreRecord)
}

// Status is a point-in-time snapshot of the evaluation loop.
type Status struct {
	LastScoredIndex int64     `json:"last_scored_index"`
	LastSweepAt     time.Time `json:"last_sweep_at"`
	LastSweepLines  int       `json:"last_sweep_lines"`
	Sweeps          uint64    `json:"sweeps"`
	LastError       string    `json:"last_error,omitempty"`
}

// engineCmd is the command interface for the Engine actor.
type engineCmd interface{ isEngineCmd() }

type baseEngineCmd struct{}

func (baseEngineCmd) isEngineCmd() {}

type sweepCmd struct {
	baseEngineCmd
	errorChannel chan error
}

type statusCmd struct {
	baseEngineCmd
	replyChannel chan Status
}

type engineStopCmd struct {
	baseEngineCmd
}

// Options tunes the evaluation loop.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
}

// Engine owns the single evaluation goroutine. All mutation of the cursor
// and the alert state happens inside this actor, so the exactly-once
// processing order (history, cursor, alert) never races with itself.
type Engine struct {
	cmdCh     chan engineCmd
	clock     clockwork.Clock
	source    domain.LineSource
	scorer    domain.Scorer
	history   domain.HistoryStore
	cursors   domain.CursorStore
	processor AlertProcessor
	publisher Publisher
	opts      Options

	status Status
	done   chan struct{}
}

// New creates the engine and starts its evaluation goroutine. The publisher
// may be nil when no live feed is attached.
func New(source domain.LineSource, scorer domain.Scorer, history domain.HistoryStore, cursors domain.CursorStore, processor AlertProcessor, publisher Publisher, clock clockwork.Clock, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	e := &Engine{
		cmdCh:     make(chan engineCmd, 64),
		clock:     clock,
		source:    source,
		scorer:    scorer,
		history:   history,
		cursors:   cursors,
		processor: processor,
		publisher: publisher,
		opts:      opts,
		done:      make(chan struct{}),
	}
	go e.run()
	return e
}

// Sweep triggers one evaluation pass immediately and waits for its result.
func (e *Engine) Sweep() error {
	errCh := make(chan error, 1)
	e.cmdCh <- sweepCmd{errorChannel: errCh}

	timer := e.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("sweep command timed out after %v", commandTimeout)
	}
}

// Status returns a snapshot of the loop state. Returns the zero Status if
// the command times out.
func (e *Engine) Status() Status {
	replyCh := make(chan Status, 1)
	e.cmdCh <- statusCmd{replyChannel: replyCh}

	timer := e.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case st := <-replyCh:
		return st
	case <-timer.Chan():
		slog.Warn("engine status command timed out", "timeout", commandTimeout)
		return Status{}
	}
}

// Stop shuts the evaluation goroutine down. A sweep in progress finishes
// its current record chain before the goroutine exits.
func (e *Engine) Stop() {
	e.cmdCh <- engineStopCmd{}

	timer := e.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-e.done:
		slog.Info("engine stopped gracefully")
	case <-timer.Chan():
		slog.Warn("engine stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (e *Engine) run() {
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine panic recovered", "panic", r)
		}
	}()

	ticker := e.clock.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			e.recordSweep(e.sweep(context.Background()))

		case cmd := <-e.cmdCh:
			switch c := cmd.(type) {
			case sweepCmd:
				err := e.sweep(context.Background())
				e.recordSweep(err)
				c.errorChannel <- err
			case statusCmd:
				c.replyChannel <- e.status
			case engineStopCmd:
				return
			default:
				slog.Warn("engine received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (e *Engine) recordSweep(err error) {
	e.status.Sweeps++
	e.status.LastSweepAt = e.clock.Now()
	if err != nil {
		e.status.LastError = err.Error()
		metrics.SweepErrors.Inc()
		slog.Error("sweep failed", "error", err)
	} else {
		e.status.LastError = ""
	}
}

// sweep scores every complete line beyond the cursor. Per record the order
// is: append to history, advance the cursor, run the alert machine, publish.
// Appends are idempotent on the line index, so a crash between steps is
// repaired by re-running the record on the next sweep.
func (e *Engine) sweep(ctx context.Context) error {
	start := e.clock.Now()
	defer func() {
		metrics.SweepDuration.Observe(e.clock.Since(start).Seconds())
	}()

	cur, err := e.cursors.LoadCursor(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	scored := 0
	for {
		lines, err := e.source.After(ctx, cur.LastScoredIndex, e.opts.BatchSize)
		if err != nil {
			return fmt.Errorf("read lines after %d: %w", cur.LastScoredIndex, err)
		}
		if len(lines) == 0 {
			break
		}

		for _, line := range lines {
			rec := domain.ScoreRecord{
				Index:      line.Index,
				Score:      e.scorer.Score(line.Content),
				ObservedAt: line.ObservedAt,
			}

			if err := e.history.Append(ctx, rec); err != nil {
				return fmt.Errorf("append record %d: %w", rec.Index, err)
			}

			cur.LastScoredIndex = rec.Index
			cur, err = e.cursors.SaveCursor(ctx, cur)
			if err != nil {
				// On ErrStateConflict another writer advanced the cursor
				// underneath us; abandon this sweep and reload next time.
				return fmt.Errorf("save cursor at %d: %w", rec.Index, err)
			}

			if err := e.processor.Process(ctx, rec); err != nil {
				return fmt.Errorf("process record %d: %w", rec.Index, err)
			}

			if e.publisher != nil {
				e.publisher.Publish(rec)
			}

			metrics.LinesScored.Inc()
			metrics.ScoreDistribution.Observe(rec.Score)
			scored++
		}

		if len(lines) < e.opts.BatchSize {
			break
		}
	}

	e.status.LastScoredIndex = cur.LastScoredIndex
	e.status.LastSweepLines = scored
	if scored > 0 {
		slog.Debug("sweep scored lines", "count", scored, "last_index", cur.LastScoredIndex)
	}
	return nil
}
