// Package fetch runs every configured source adapter concurrently and
// collects their postings, isolating each adapter's failures, timeouts, and
// retries from its siblings.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/source"
)

// Config tunes per-adapter execution.
type Config struct {
	// Timeout bounds a single fetch attempt.
	Timeout time.Duration
	// MaxAttempts is the total number of attempts per adapter, including
	// the first.
	MaxAttempts int
	// RetryBackoff is the base delay between attempts; the actual sleep is
	// the base multiplied by the attempt number just failed.
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	return c
}

// Outcome records how one adapter's fetch went. Err is nil on success; zero
// postings with a nil Err is a successful fetch of an empty board.
type Outcome struct {
	Source   string
	Company  string
	Postings int
	Attempts int
	Duration time.Duration
	Err      error
}

// OK reports whether the adapter ultimately succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Orchestrator fans adapters out to goroutines and fans their results back
// in over a channel. It holds no state between runs and is safe for
// concurrent use.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger
}

// New builds an Orchestrator. Zero config fields fall back to defaults.
func New(cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg.withDefaults(), logger: logger}
}

type adapterResult struct {
	outcome  Outcome
	postings []jobs.Posting
}

// RunAll executes every adapter concurrently and returns the aggregated
// postings plus one Outcome per adapter, in adapter order. A failing adapter
// never aborts the run; its postings are simply absent and its Outcome
// carries the final error. An empty adapter list yields empty results.
//
// Postings carry no ordering guarantee; callers must treat the aggregate as
// an unordered multiset.
func (o *Orchestrator) RunAll(ctx context.Context, adapters []source.Adapter) ([]jobs.Posting, []Outcome) {
	if len(adapters) == 0 {
		return nil, nil
	}

	// One goroutine per adapter; each sends exactly one result, so the
	// buffered channel never blocks a sender and collection cannot lose or
	// duplicate an adapter's postings.
	results := make(chan adapterResult, len(adapters))
	var wg sync.WaitGroup
	for _, adapter := range adapters {
		wg.Add(1)
		go func(a source.Adapter) {
			defer wg.Done()
			results <- o.fetchOne(ctx, a)
		}(adapter)
	}
	wg.Wait()
	close(results)

	byKey := make(map[string]adapterResult, len(adapters))
	var postings []jobs.Posting
	for res := range results {
		byKey[res.outcome.Source+"/"+res.outcome.Company] = res
		postings = append(postings, res.postings...)
	}

	// Report outcomes in the caller's adapter order, not completion order.
	outcomes := make([]Outcome, 0, len(adapters))
	for _, adapter := range adapters {
		if res, ok := byKey[adapter.Name()+"/"+adapter.Company()]; ok {
			outcomes = append(outcomes, res.outcome)
		}
	}

	o.logger.Info("fetch pass complete",
		zap.Int("adapters", len(adapters)),
		zap.Int("failed", countFailed(outcomes)),
		zap.Int("postings", len(postings)),
	)
	return postings, outcomes
}

// fetchOne drives one adapter through its attempt/retry loop.
func (o *Orchestrator) fetchOne(ctx context.Context, adapter source.Adapter) adapterResult {
	start := time.Now()
	outcome := Outcome{Source: adapter.Name(), Company: adapter.Company()}

	var postings []jobs.Posting
	var err error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		outcome.Attempts = attempt
		postings, err = o.attempt(ctx, adapter)
		if err == nil {
			break
		}
		if !o.shouldRetry(ctx, attempt) {
			break
		}
		o.logger.Warn("adapter fetch failed, will retry",
			zap.String("source", adapter.Name()),
			zap.String("company", adapter.Company()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if !o.backoff(ctx, attempt) {
			break
		}
	}

	outcome.Duration = time.Since(start)
	if err != nil {
		outcome.Err = fmt.Errorf("%s/%s after %d attempts: %w",
			adapter.Name(), adapter.Company(), outcome.Attempts, err)
		o.logger.Warn("adapter abandoned",
			zap.String("source", adapter.Name()),
			zap.String("company", adapter.Company()),
			zap.Int("attempts", outcome.Attempts),
			zap.Error(err),
		)
		return adapterResult{outcome: outcome}
	}

	outcome.Postings = len(postings)
	o.logger.Debug("adapter fetch succeeded",
		zap.String("source", adapter.Name()),
		zap.String("company", adapter.Company()),
		zap.Int("postings", len(postings)),
		zap.Int("attempts", outcome.Attempts),
	)
	return adapterResult{outcome: outcome, postings: postings}
}

// attempt runs one bounded fetch. The adapter call runs in its own
// goroutine so an adapter that ignores its context cannot stall the worker
// past the deadline; the goroutine drains on its own once the underlying
// request dies.
func (o *Orchestrator) attempt(ctx context.Context, adapter source.Adapter) ([]jobs.Posting, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	type reply struct {
		postings []jobs.Posting
		err      error
	}
	done := make(chan reply, 1)
	go func() {
		postings, err := adapter.Fetch(attemptCtx)
		done <- reply{postings: postings, err: err}
	}()

	select {
	case r := <-done:
		return r.postings, r.err
	case <-attemptCtx.Done():
		return nil, fmt.Errorf("fetch attempt: %w", attemptCtx.Err())
	}
}

// shouldRetry allows another attempt unless the budget is spent or the
// parent run is shutting down. An attempt that timed out on its own
// deadline is still retryable; only parent cancellation is terminal.
func (o *Orchestrator) shouldRetry(ctx context.Context, attempt int) bool {
	if attempt >= o.cfg.MaxAttempts {
		return false
	}
	return ctx.Err() == nil
}

// backoff sleeps base×attempt without holding any lock. It reports false
// when the parent context ended during the wait.
func (o *Orchestrator) backoff(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(o.cfg.RetryBackoff * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func countFailed(outcomes []Outcome) int {
	var n int
	for _, out := range outcomes {
		if !out.OK() {
			n++
		}
	}
	return n
}
