// Package store defines the Record persistence contract shared by the
// in-memory and Postgres implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jobradar/jobradar/internal/jobs"
)

// ErrNotFound is returned by FindByURL when no Record exists for the URL.
var ErrNotFound = errors.New("record not found")

// RecordStore persists posting Records keyed by canonical URL.
//
// Save is an upsert: the full field set of a Record is written in a single
// statement, so a concurrent reader never observes a torn Record. FirstSeen
// is write-once; upserting an existing URL keeps the original value.
type RecordStore interface {
	// FindByURL returns the Record for the canonical URL, or ErrNotFound.
	FindByURL(ctx context.Context, url string) (jobs.Record, error)
	// FindActive returns every active Record.
	FindActive(ctx context.Context) ([]jobs.Record, error)
	// FindActiveLastSeenBefore returns active Records whose LastSeen date
	// is strictly before cutoff.
	FindActiveLastSeenBefore(ctx context.Context, cutoff time.Time) ([]jobs.Record, error)
	// Save upserts by URL and fills in the assigned ID.
	Save(ctx context.Context, rec *jobs.Record) error
	// SaveAll upserts every Record, filling in assigned IDs.
	SaveAll(ctx context.Context, recs []*jobs.Record) error
	// CountActive returns the number of active Records.
	CountActive(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
