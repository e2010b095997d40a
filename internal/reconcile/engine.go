// Package reconcile applies fetched postings to the record store: the
// idempotent upsert pass and the retention-based expiration pass.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/store"
)

// Engine serializes reconciliation passes against one RecordStore. Two
// passes never interleave within a process; both hold the engine mutex for
// their whole duration.
type Engine struct {
	mu     sync.Mutex
	store  store.RecordStore
	logger *zap.Logger
}

// New wires an Engine to the store.
func New(st store.RecordStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: st, logger: logger}
}

// Reconcile upserts every admitted posting, keyed by canonical URL.
//
// Unknown URLs become fresh active Records (FirstSeen = LastSeen = today).
// Known URLs get LastSeen stamped and company/title refreshed; an inactive
// Record is reactivated and counted separately from plain updates. Status
// and notes are only overwritten by non-blank posting values, so user edits
// survive re-fetches. Invalid postings are counted and skipped. Any store
// error aborts the pass; replaying the same postings later is safe because
// every step is idempotent.
func (e *Engine) Reconcile(ctx context.Context, postings []jobs.Posting, today time.Time) (jobs.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	day := jobs.DateOnly(today)
	var stats jobs.Stats
	for _, p := range postings {
		candidate, err := jobs.NewRecord(p, day)
		if err != nil {
			stats.Skipped++
			e.logger.Warn("skipping invalid posting",
				zap.String("source", p.Source),
				zap.String("url", p.URL),
				zap.Error(err),
			)
			continue
		}

		existing, err := e.store.FindByURL(ctx, candidate.URL)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if err := e.store.Save(ctx, &candidate); err != nil {
				return stats, fmt.Errorf("insert record %q: %w", candidate.URL, err)
			}
			stats.New++
		case err != nil:
			return stats, fmt.Errorf("find record %q: %w", candidate.URL, err)
		default:
			reactivated := !existing.Active
			mergePosting(&existing, candidate, p, day)
			if err := e.store.Save(ctx, &existing); err != nil {
				return stats, fmt.Errorf("update record %q: %w", existing.URL, err)
			}
			if reactivated {
				stats.Reactivated++
			} else {
				stats.Updated++
			}
		}
	}
	return stats, nil
}

// mergePosting folds a re-observed posting into the stored Record. Status
// and notes come from the raw posting, not the candidate, because the
// candidate carries the "Awaiting" default that must never clobber a user
// edit.
func mergePosting(existing *jobs.Record, candidate jobs.Record, p jobs.Posting, day time.Time) {
	existing.LastSeen = day
	existing.Active = true
	existing.Company = candidate.Company
	existing.Title = candidate.Title
	if status := strings.TrimSpace(p.Status); status != "" {
		existing.Status = status
	}
	if note := strings.TrimSpace(p.Note); note != "" {
		existing.Notes = note
	}
}

// Expire deactivates active Records whose LastSeen date is strictly before
// today minus retentionDays. Expired Records are never deleted; a posting
// that reappears later is reactivated by Reconcile. Running Expire twice in
// a row is a no-op.
func (e *Engine) Expire(ctx context.Context, today time.Time, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := jobs.DateOnly(today).AddDate(0, 0, -retentionDays)
	stale, err := e.store.FindActiveLastSeenBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale records: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	recs := make([]*jobs.Record, len(stale))
	for i := range stale {
		stale[i].Active = false
		recs[i] = &stale[i]
	}
	if err := e.store.SaveAll(ctx, recs); err != nil {
		return 0, fmt.Errorf("deactivate stale records: %w", err)
	}
	e.logger.Info("expired stale records",
		zap.Int("count", len(recs)),
		zap.Time("cutoff", cutoff),
	)
	return len(recs), nil
}
