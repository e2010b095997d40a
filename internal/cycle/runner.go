// Package cycle drives one full aggregation pass: fetch every source,
// filter the postings, reconcile them into the record store, expire stale
// records, and notify operators. Cycles never overlap within a process.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/clock/system"
	"github.com/jobradar/jobradar/internal/fetch"
	"github.com/jobradar/jobradar/internal/filter"
	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/notify"
	"github.com/jobradar/jobradar/internal/progress"
	"github.com/jobradar/jobradar/internal/reconcile"
	"github.com/jobradar/jobradar/internal/source"
	"github.com/jobradar/jobradar/internal/store"
)

// ErrBusy is returned by TryRun when a cycle is already in flight.
var ErrBusy = errors.New("a sync cycle is already running")

const defaultRetentionDays = 30

// Clock abstracts time.Now so tests can pin the cycle date.
type Clock interface {
	Now() time.Time
}

// SourceResult is the JSON-safe account of one adapter's fetch.
type SourceResult struct {
	Source     string `json:"source"`
	Company    string `json:"company"`
	Postings   int    `json:"postings"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Result summarizes one completed cycle.
type Result struct {
	CycleID    uuid.UUID      `json:"cycle_id"`
	Started    time.Time      `json:"started"`
	DurationMS int64          `json:"duration_ms"`
	Fetched    int            `json:"fetched"`
	Admitted   int            `json:"admitted"`
	Rejected   map[string]int `json:"rejected,omitempty"`
	Stats      jobs.Stats     `json:"stats"`
	Sources    []SourceResult `json:"sources"`
}

// Config wires the Runner's collaborators. Orchestrator, Filter, Engine,
// and Records are required; the rest default to inert implementations.
type Config struct {
	Adapters      []source.Adapter
	Orchestrator  *fetch.Orchestrator
	Filter        *filter.Filter
	Engine        *reconcile.Engine
	Records       store.RecordStore
	Notifier      notify.Notifier
	Emitter       progress.Emitter
	Clock         Clock
	Logger        *zap.Logger
	RetentionDays int
}

// Runner executes cycles one at a time. Run blocks on an in-flight cycle;
// TryRun fails fast with ErrBusy instead.
type Runner struct {
	adapters  []source.Adapter
	orch      *fetch.Orchestrator
	filter    *filter.Filter
	engine    *reconcile.Engine
	records   store.RecordStore
	notifier  notify.Notifier
	emitter   progress.Emitter
	clock     Clock
	logger    *zap.Logger
	retention int

	mu sync.Mutex

	lastMu sync.RWMutex
	last   *Result
}

// New validates the wiring and builds a Runner.
func New(cfg Config) (*Runner, error) {
	switch {
	case cfg.Orchestrator == nil:
		return nil, errors.New("cycle runner requires an orchestrator")
	case cfg.Filter == nil:
		return nil, errors.New("cycle runner requires a filter")
	case cfg.Engine == nil:
		return nil, errors.New("cycle runner requires a reconcile engine")
	case cfg.Records == nil:
		return nil, errors.New("cycle runner requires a record store")
	}
	r := &Runner{
		adapters:  cfg.Adapters,
		orch:      cfg.Orchestrator,
		filter:    cfg.Filter,
		engine:    cfg.Engine,
		records:   cfg.Records,
		notifier:  cfg.Notifier,
		emitter:   cfg.Emitter,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		retention: cfg.RetentionDays,
	}
	if r.emitter == nil {
		r.emitter = nopEmitter{}
	}
	if r.clock == nil {
		r.clock = system.New()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.retention <= 0 {
		r.retention = defaultRetentionDays
	}
	return r, nil
}

// Run executes one cycle, waiting for any in-flight cycle to finish first.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run(ctx)
}

// TryRun executes one cycle unless another is already in flight, in which
// case it returns ErrBusy immediately.
func (r *Runner) TryRun(ctx context.Context) (Result, error) {
	if !r.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer r.mu.Unlock()
	return r.run(ctx)
}

// Last returns the most recent completed Result, if any.
func (r *Runner) Last() (Result, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

func (r *Runner) run(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("cycle aborted: %w", err)
	}

	id := uuid.New()
	started := r.clock.Now()
	logger := r.logger.With(zap.String("cycle_id", id.String()))
	logger.Info("cycle started", zap.Int("adapters", len(r.adapters)))
	r.emit(progress.Event{CycleID: progress.UUIDToBytes(id), TS: started, Stage: progress.StageCycleStart})

	postings, outcomes := r.orch.RunAll(ctx, r.adapters)
	sources, failed := r.recordOutcomes(id, outcomes)

	admitted, rejected := r.filter.Split(postings)
	r.emit(progress.Event{
		CycleID: progress.UUIDToBytes(id),
		TS:      r.clock.Now(),
		Stage:   progress.StageFilterDone,
		Count:   int64(len(admitted)),
	})
	for reason, n := range rejected {
		r.emit(progress.Event{
			CycleID: progress.UUIDToBytes(id),
			TS:      r.clock.Now(),
			Stage:   progress.StageFilterRejected,
			Reason:  reason,
			Count:   int64(n),
		})
	}

	stats, err := r.engine.Reconcile(ctx, admitted, started)
	if err != nil {
		return r.fail(id, started, logger, fmt.Errorf("reconcile postings: %w", err))
	}
	r.emit(progress.Event{
		CycleID:     progress.UUIDToBytes(id),
		TS:          r.clock.Now(),
		Stage:       progress.StageReconcileDone,
		New:         int64(stats.New),
		Updated:     int64(stats.Updated),
		Reactivated: int64(stats.Reactivated),
	})

	expired, err := r.engine.Expire(ctx, started, r.retention)
	if err != nil {
		return r.fail(id, started, logger, fmt.Errorf("expire records: %w", err))
	}
	stats.Expired = expired
	r.emit(progress.Event{
		CycleID: progress.UUIDToBytes(id),
		TS:      r.clock.Now(),
		Stage:   progress.StageExpireDone,
		Count:   int64(expired),
	})

	active, err := r.records.CountActive(ctx)
	if err != nil {
		return r.fail(id, started, logger, fmt.Errorf("count active records: %w", err))
	}
	stats.TotalActive = active

	duration := r.clock.Now().Sub(started)
	r.emit(progress.Event{
		CycleID: progress.UUIDToBytes(id),
		TS:      r.clock.Now(),
		Stage:   progress.StageCycleDone,
		Active:  active,
		Dur:     duration,
	})

	result := Result{
		CycleID:    id,
		Started:    started,
		DurationMS: duration.Milliseconds(),
		Fetched:    len(postings),
		Admitted:   len(admitted),
		Rejected:   rejected,
		Stats:      stats,
		Sources:    sources,
	}
	r.setLast(result)
	logger.Info("cycle completed",
		zap.Int("fetched", result.Fetched),
		zap.Int("admitted", result.Admitted),
		zap.String("stats", stats.String()),
		zap.Duration("duration", duration),
	)
	r.sendSummary(ctx, result, duration, failed)
	return result, nil
}

// recordOutcomes emits a progress event per adapter and builds the DTOs.
func (r *Runner) recordOutcomes(id uuid.UUID, outcomes []fetch.Outcome) ([]SourceResult, []string) {
	sources := make([]SourceResult, 0, len(outcomes))
	var failed []string
	for _, out := range outcomes {
		sr := SourceResult{
			Source:     out.Source,
			Company:    out.Company,
			Postings:   out.Postings,
			Attempts:   out.Attempts,
			DurationMS: out.Duration.Milliseconds(),
		}
		evt := progress.Event{
			CycleID: progress.UUIDToBytes(id),
			TS:      r.clock.Now(),
			Source:  out.Source,
			Company: out.Company,
			Dur:     out.Duration,
		}
		if out.OK() {
			evt.Stage = progress.StageSourceDone
			evt.Count = int64(out.Postings)
		} else {
			sr.Error = out.Err.Error()
			failed = append(failed, out.Source+"/"+out.Company)
			evt.Stage = progress.StageSourceError
			evt.Note = out.Err.Error()
		}
		r.emit(evt)
		sources = append(sources, sr)
	}
	return sources, failed
}

// fail emits the terminal error event and logs before surfacing the error.
func (r *Runner) fail(id uuid.UUID, started time.Time, logger *zap.Logger, err error) (Result, error) {
	duration := r.clock.Now().Sub(started)
	r.emit(progress.Event{
		CycleID: progress.UUIDToBytes(id),
		TS:      r.clock.Now(),
		Stage:   progress.StageCycleError,
		Dur:     duration,
		Note:    err.Error(),
	})
	logger.Error("cycle failed", zap.Duration("duration", duration), zap.Error(err))
	return Result{}, err
}

// sendSummary delivers the end-of-cycle notification. Failures are logged
// and swallowed; a delivered cycle must not be reported as failed because a
// chat webhook was down.
func (r *Runner) sendSummary(ctx context.Context, res Result, duration time.Duration, failed []string) {
	if r.notifier == nil {
		return
	}
	summary := notify.Summary{
		CycleID:       res.CycleID,
		Started:       res.Started,
		Duration:      duration,
		Fetched:       res.Fetched,
		Admitted:      res.Admitted,
		Stats:         res.Stats,
		SourcesFailed: failed,
	}
	if err := r.notifier.Notify(ctx, summary); err != nil {
		r.logger.Warn("cycle notification failed",
			zap.String("cycle_id", res.CycleID.String()),
			zap.Error(err),
		)
	}
}

func (r *Runner) setLast(res Result) {
	stored := res
	stored.Sources = append([]SourceResult(nil), res.Sources...)
	if res.Rejected != nil {
		stored.Rejected = make(map[string]int, len(res.Rejected))
		for k, v := range res.Rejected {
			stored.Rejected[k] = v
		}
	}
	r.lastMu.Lock()
	r.last = &stored
	r.lastMu.Unlock()
}

func (r *Runner) emit(evt progress.Event) {
	r.emitter.Emit(evt)
}

type nopEmitter struct{}

func (nopEmitter) Emit(progress.Event) {}
