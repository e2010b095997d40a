package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func record(url string, lastSeen time.Time, active bool) *jobs.Record {
	return &jobs.Record{
		Source:    "greenhouse",
		Company:   "Acme",
		Title:     "Engineer",
		URL:       url,
		FirstSeen: lastSeen,
		LastSeen:  lastSeen,
		Active:    active,
		Status:    jobs.DefaultStatus,
	}
}

func TestFindByURL(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	_, err := s.FindByURL(ctx, "https://jobs.example.com/1")
	require.ErrorIs(t, err, store.ErrNotFound)

	rec := record("https://jobs.example.com/1", day(2026, 8, 1), true)
	require.NoError(t, s.Save(ctx, rec))
	require.NotEqual(t, uuid.Nil, rec.ID)

	got, err := s.FindByURL(ctx, rec.URL)
	require.NoError(t, err)
	require.Equal(t, *rec, got)
}

func TestSavePreservesIdentityOnUpsert(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	first := record("https://jobs.example.com/1", day(2026, 8, 1), true)
	require.NoError(t, s.Save(ctx, first))

	second := record("https://jobs.example.com/1", day(2026, 8, 10), true)
	second.FirstSeen = day(2026, 8, 10)
	require.NoError(t, s.Save(ctx, second))

	require.Equal(t, first.ID, second.ID)

	got, err := s.FindByURL(ctx, first.URL)
	require.NoError(t, err)
	require.Equal(t, day(2026, 8, 1), got.FirstSeen, "first observation wins")
	require.Equal(t, day(2026, 8, 10), got.LastSeen)
}

func TestFindActiveLastSeenBeforeIsStrict(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	cutoff := day(2026, 7, 24)

	onCutoff := record("https://jobs.example.com/on", cutoff, true)
	older := record("https://jobs.example.com/older", cutoff.AddDate(0, 0, -1), true)
	inactive := record("https://jobs.example.com/inactive", cutoff.AddDate(0, 0, -10), false)
	require.NoError(t, s.SaveAll(ctx, []*jobs.Record{onCutoff, older, inactive}))

	stale, err := s.FindActiveLastSeenBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, older.URL, stale[0].URL)
}

func TestCountActive(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	require.NoError(t, s.SaveAll(ctx, []*jobs.Record{
		record("https://jobs.example.com/1", day(2026, 8, 1), true),
		record("https://jobs.example.com/2", day(2026, 8, 1), true),
		record("https://jobs.example.com/3", day(2026, 8, 1), false),
	}))

	n, err := s.CountActive(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	rec := record("https://jobs.example.com/1", day(2026, 8, 1), true)
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.FindByURL(ctx, rec.URL)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := s.FindByURL(ctx, rec.URL)
	require.NoError(t, err)
	require.Equal(t, "Engineer", again.Title)
}
