package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/store/memory"
)

var today = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

func posting(url, title string) jobs.Posting {
	return jobs.Posting{
		Source:  "greenhouse",
		Company: "Acme",
		Title:   title,
		URL:     url,
		Note:    "Remote",
	}
}

func TestReconcileIdempotentReplay(t *testing.T) {
	t.Parallel()

	st := memory.New()
	eng := New(st, nil)
	ctx := context.Background()

	batch := []jobs.Posting{
		posting("https://jobs.example.com/1", "Java Developer"),
		posting("https://jobs.example.com/2", "Backend Engineer"),
		posting("https://jobs.example.com/3", "Platform Engineer"),
	}

	stats, err := eng.Reconcile(ctx, batch, today)
	require.NoError(t, err)
	require.Equal(t, 3, stats.New)
	require.Zero(t, stats.Updated)

	stats, err = eng.Reconcile(ctx, batch, today)
	require.NoError(t, err)
	require.Zero(t, stats.New)
	require.Equal(t, 3, stats.Updated)
	require.Zero(t, stats.Reactivated)

	n, err := st.CountActive(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestReconcileReactivatesInsteadOfDuplicating(t *testing.T) {
	t.Parallel()

	st := memory.New()
	eng := New(st, nil)
	ctx := context.Background()

	p := posting("https://jobs.example.com/1", "Java Developer")
	_, err := eng.Reconcile(ctx, []jobs.Posting{p}, today.AddDate(0, 0, -40))
	require.NoError(t, err)

	expired, err := eng.Expire(ctx, today, 30)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	stats, err := eng.Reconcile(ctx, []jobs.Posting{p}, today)
	require.NoError(t, err)
	require.Zero(t, stats.New)
	require.Equal(t, 1, stats.Reactivated)

	rec, err := st.FindByURL(ctx, "https://jobs.example.com/1")
	require.NoError(t, err)
	require.True(t, rec.Active)
	require.Equal(t, jobs.DateOnly(today.AddDate(0, 0, -40)), rec.FirstSeen, "first observation survives")
	require.Equal(t, jobs.DateOnly(today), rec.LastSeen)
}

func TestReconcilePreservesUserEdits(t *testing.T) {
	t.Parallel()

	st := memory.New()
	eng := New(st, nil)
	ctx := context.Background()

	p := posting("https://jobs.example.com/1", "Java Developer")
	_, err := eng.Reconcile(ctx, []jobs.Posting{p}, today.AddDate(0, 0, -1))
	require.NoError(t, err)

	// User moves the record along.
	rec, err := st.FindByURL(ctx, "https://jobs.example.com/1")
	require.NoError(t, err)
	rec.Status = "Applied"
	rec.Notes = "phone screen Friday"
	require.NoError(t, st.Save(ctx, &rec))

	// Re-fetch with no note and no status: both edits survive.
	bare := p
	bare.Note = ""
	stats, err := eng.Reconcile(ctx, []jobs.Posting{bare}, today)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Updated)

	rec, err = st.FindByURL(ctx, "https://jobs.example.com/1")
	require.NoError(t, err)
	require.Equal(t, "Applied", rec.Status)
	require.Equal(t, "phone screen Friday", rec.Notes)

	// A non-blank note does overwrite.
	stats, err = eng.Reconcile(ctx, []jobs.Posting{p}, today)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Updated)

	rec, err = st.FindByURL(ctx, "https://jobs.example.com/1")
	require.NoError(t, err)
	require.Equal(t, "Applied", rec.Status)
	require.Equal(t, "Remote", rec.Notes)
}

func TestReconcileSkipsInvalidPostings(t *testing.T) {
	t.Parallel()

	st := memory.New()
	eng := New(st, nil)

	stats, err := eng.Reconcile(context.Background(), []jobs.Posting{
		{Source: "greenhouse", Company: "Acme", Title: "No URL"},
		posting("https://jobs.example.com/ok", "Java Developer"),
		{Source: "lever", Company: "Acme", Title: "Bad scheme", URL: "ftp://x"},
	}, today)
	require.NoError(t, err)
	require.Equal(t, 1, stats.New)
	require.Equal(t, 2, stats.Skipped)
}

func TestReconcileDuplicateURLsWithinBatch(t *testing.T) {
	t.Parallel()

	st := memory.New()
	eng := New(st, nil)

	dup := posting("https://jobs.example.com/1", "Java Developer")
	stats, err := eng.Reconcile(context.Background(), []jobs.Posting{dup, dup}, today)
	require.NoError(t, err)
	require.Equal(t, 1, stats.New)
	require.Equal(t, 1, stats.Updated)
}

func TestReconcileConvergesURLVariants(t *testing.T) {
	t.Parallel()

	st := memory.New()
	eng := New(st, nil)
	ctx := context.Background()

	a := posting("https://Jobs.Example.com:443/open/9?y=2&x=1#frag", "Java Developer")
	b := posting("https://jobs.example.com/open/9?x=1&y=2", "Java Developer")

	stats, err := eng.Reconcile(ctx, []jobs.Posting{a}, today)
	require.NoError(t, err)
	require.Equal(t, 1, stats.New)

	stats, err = eng.Reconcile(ctx, []jobs.Posting{b}, today)
	require.NoError(t, err)
	require.Zero(t, stats.New)
	require.Equal(t, 1, stats.Updated)
}

func TestExpireBoundary(t *testing.T) {
	t.Parallel()

	st := memory.New()
	eng := New(st, nil)
	ctx := context.Background()

	cutoffDay := jobs.DateOnly(today).AddDate(0, 0, -30)

	onCutoff := &jobs.Record{
		Source: "greenhouse", Company: "Acme", Title: "On Cutoff",
		URL: "https://jobs.example.com/on", FirstSeen: cutoffDay, LastSeen: cutoffDay,
		Active: true, Status: jobs.DefaultStatus,
	}
	older := &jobs.Record{
		Source: "greenhouse", Company: "Acme", Title: "Older",
		URL: "https://jobs.example.com/older", FirstSeen: cutoffDay.AddDate(0, 0, -1),
		LastSeen: cutoffDay.AddDate(0, 0, -1), Active: true, Status: jobs.DefaultStatus,
	}
	require.NoError(t, st.SaveAll(ctx, []*jobs.Record{onCutoff, older}))

	expired, err := eng.Expire(ctx, today, 30)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	rec, err := st.FindByURL(ctx, onCutoff.URL)
	require.NoError(t, err)
	require.True(t, rec.Active, "record seen exactly at the cutoff survives")

	rec, err = st.FindByURL(ctx, older.URL)
	require.NoError(t, err)
	require.False(t, rec.Active)
	require.Equal(t, "Older", rec.Title, "expiration deactivates, never deletes")

	// Immediately re-running expires nothing.
	expired, err = eng.Expire(ctx, today, 30)
	require.NoError(t, err)
	require.Zero(t, expired)
}

func TestExpireRejectsNonPositiveRetention(t *testing.T) {
	t.Parallel()

	eng := New(memory.New(), nil)
	_, err := eng.Expire(context.Background(), today, 0)
	require.Error(t, err)
}

// failingStore wraps the memory store and fails writes after a set number
// of successes.
type failingStore struct {
	*memory.RecordStore
	remaining int
}

func (f *failingStore) Save(ctx context.Context, rec *jobs.Record) error {
	if f.remaining <= 0 {
		return errors.New("disk on fire")
	}
	f.remaining--
	return f.RecordStore.Save(ctx, rec)
}

func TestReconcileStoreFailureIsFatal(t *testing.T) {
	t.Parallel()

	st := &failingStore{RecordStore: memory.New(), remaining: 1}
	eng := New(st, nil)

	stats, err := eng.Reconcile(context.Background(), []jobs.Posting{
		posting("https://jobs.example.com/1", "Java Developer"),
		posting("https://jobs.example.com/2", "Backend Engineer"),
	}, today)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk on fire")
	require.Equal(t, 1, stats.New, "partial progress is reported")

	// Replay after recovery converges without duplicates.
	recovered := New(st.RecordStore, nil)
	replay, err := recovered.Reconcile(context.Background(), []jobs.Posting{
		posting("https://jobs.example.com/1", "Java Developer"),
		posting("https://jobs.example.com/2", "Backend Engineer"),
	}, today)
	require.NoError(t, err)
	require.Equal(t, 1, replay.New)
	require.Equal(t, 1, replay.Updated)
}
