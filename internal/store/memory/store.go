// Package memory provides an in-memory RecordStore for development and
// tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/store"
)

// RecordStore keeps Records in a map keyed by canonical URL. Values are
// copied in and out, so callers never share memory with the store.
type RecordStore struct {
	mu    sync.RWMutex
	byURL map[string]jobs.Record
}

// New constructs an empty RecordStore.
func New() *RecordStore {
	return &RecordStore{byURL: make(map[string]jobs.Record)}
}

// FindByURL returns the Record for the URL, or store.ErrNotFound.
func (s *RecordStore) FindByURL(_ context.Context, url string) (jobs.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byURL[url]
	if !ok {
		return jobs.Record{}, store.ErrNotFound
	}
	return rec, nil
}

// FindActive returns active Records ordered by URL.
func (s *RecordStore) FindActive(_ context.Context) ([]jobs.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []jobs.Record
	for _, rec := range s.byURL {
		if rec.Active {
			out = append(out, rec)
		}
	}
	sortByURL(out)
	return out, nil
}

// FindActiveLastSeenBefore returns active Records with LastSeen strictly
// before cutoff, ordered by URL.
func (s *RecordStore) FindActiveLastSeenBefore(_ context.Context, cutoff time.Time) ([]jobs.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []jobs.Record
	for _, rec := range s.byURL {
		if rec.Active && rec.LastSeen.Before(cutoff) {
			out = append(out, rec)
		}
	}
	sortByURL(out)
	return out, nil
}

// Save upserts the Record by URL, assigning an ID on first save and keeping
// the original FirstSeen on replacement.
func (s *RecordStore) Save(_ context.Context, rec *jobs.Record) error {
	if rec == nil {
		return errors.New("record is required")
	}
	if rec.URL == "" {
		return errors.New("record url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byURL[rec.URL]; ok {
		rec.ID = existing.ID
		rec.FirstSeen = existing.FirstSeen
	} else if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	s.byURL[rec.URL] = *rec
	return nil
}

// SaveAll upserts every Record.
func (s *RecordStore) SaveAll(ctx context.Context, recs []*jobs.Record) error {
	for _, rec := range recs {
		if err := s.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// CountActive returns the number of active Records.
func (s *RecordStore) CountActive(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, rec := range s.byURL {
		if rec.Active {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *RecordStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *RecordStore) Close() error { return nil }

func sortByURL(recs []jobs.Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].URL < recs[j].URL })
}
