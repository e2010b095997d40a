// Package notify delivers end-of-cycle summaries to operators. Delivery is
// best-effort: the cycle runner logs notifier failures but never fails a
// cycle because of them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jobradar/jobradar/internal/jobs"
)

// Summary is the payload handed to notifiers after a completed cycle.
type Summary struct {
	CycleID  uuid.UUID     `json:"cycle_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	// Fetched counts postings returned by all sources before filtering.
	Fetched int `json:"fetched"`
	// Admitted counts postings that passed the keyword filter.
	Admitted int        `json:"admitted"`
	Stats    jobs.Stats `json:"stats"`
	// SourcesFailed lists "family/company" labels of adapters that
	// exhausted their retries.
	SourcesFailed []string `json:"sources_failed,omitempty"`
}

// Message renders the one-line human summary posted to chat webhooks.
func (s Summary) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "jobradar sync %s: fetched=%d admitted=%d %s (%.1fs)",
		s.Started.UTC().Format("2006-01-02"), s.Fetched, s.Admitted,
		s.Stats.String(), s.Duration.Seconds())
	if len(s.SourcesFailed) > 0 {
		fmt.Fprintf(&b, " | failed sources: %s", strings.Join(s.SourcesFailed, ", "))
	}
	return b.String()
}

// Notifier delivers one cycle summary. Implementations must honor ctx and
// be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
	Close() error
}

// Multi fans one summary out to several notifiers, attempting every one
// even when some fail, and joining their errors.
type Multi struct {
	notifiers []Notifier
}

// NewMulti builds a fan-out notifier. Nil entries are skipped.
func NewMulti(notifiers ...Notifier) *Multi {
	kept := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return &Multi{notifiers: kept}
}

// Notify delivers to every notifier and returns the joined errors.
func (m *Multi) Notify(ctx context.Context, s Summary) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier and returns the joined errors.
func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
