package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jobradar/jobradar/internal/jobs"
)

func sampleSummary() Summary {
	return Summary{
		CycleID:  uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		Started:  time.Date(2026, 3, 14, 6, 30, 0, 0, time.UTC),
		Duration: 42 * time.Second,
		Fetched:  84,
		Admitted: 61,
		Stats: jobs.Stats{
			New:         4,
			Updated:     3,
			Reactivated: 2,
			Expired:     1,
			TotalActive: 42,
		},
	}
}

func TestSummaryMessage(t *testing.T) {
	t.Parallel()

	s := sampleSummary()
	msg := s.Message()
	require.Contains(t, msg, "jobradar sync 2026-03-14")
	require.Contains(t, msg, "fetched=84")
	require.Contains(t, msg, "admitted=61")
	require.Contains(t, msg, "new=4")
	require.Contains(t, msg, "active=42")
	require.NotContains(t, msg, "failed sources")

	s.SourcesFailed = []string{"lever/globex"}
	require.Contains(t, s.Message(), "failed sources: lever/globex")
}

func TestWebhookNotifierPostsContent(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got webhookPayload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL, time.Second)
	defer func() { require.NoError(t, n.Close()) }()

	require.NoError(t, n.Notify(context.Background(), sampleSummary()))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "application/json", contentType)
	require.Contains(t, got.Content, "fetched=84")
}

func TestWebhookNotifierRejectsNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL, time.Second)
	defer func() { require.NoError(t, n.Close()) }()

	err := n.Notify(context.Background(), sampleSummary())
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestWebhookNotifierHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	n := NewWebhook(srv.URL, time.Minute)
	defer func() { require.NoError(t, n.Close()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := n.Notify(ctx, sampleSummary())
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []Summary
	notifyErr error
	closed    bool
}

func (r *recordingNotifier) Notify(_ context.Context, s Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
	return r.notifyErr
}

func (r *recordingNotifier) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestMultiDeliversToAllDespiteFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("channel down")
	first := &recordingNotifier{notifyErr: boom}
	second := &recordingNotifier{}

	m := NewMulti(first, nil, second)
	err := m.Notify(context.Background(), sampleSummary())
	require.ErrorIs(t, err, boom)

	// The failing notifier must not shadow delivery to the healthy one.
	require.Len(t, first.summaries, 1)
	require.Len(t, second.summaries, 1)

	require.NoError(t, m.Close())
	require.True(t, first.closed)
	require.True(t, second.closed)
}
