package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config tunes Hub buffering and delivery. Non-positive fields fall back to
// the package defaults; a nil BaseContext falls back to context.Background.
type Config struct {
	// BufferSize caps how many events may queue before Emit starts dropping.
	BufferSize int
	// MaxBatchEvents flushes a batch once it reaches this size.
	MaxBatchEvents int
	// MaxBatchWait flushes a partial batch this long after its first event.
	MaxBatchWait time.Duration
	// SinkTimeout bounds one sink's handling of one batch.
	SinkTimeout time.Duration
	// BaseContext is the parent of every sink call's context.
	BaseContext context.Context
	// Logger receives drop and sink-failure warnings.
	Logger *zap.Logger
}

const (
	defaultBufferSize     = 1024
	defaultMaxBatchEvents = 256
	defaultMaxBatchWait   = 500 * time.Millisecond
	defaultSinkTimeout    = 10 * time.Second
	dropLogEvery          = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.MaxBatchEvents <= 0 {
		c.MaxBatchEvents = defaultMaxBatchEvents
	}
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = defaultMaxBatchWait
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = defaultSinkTimeout
	}
	if c.BaseContext == nil {
		c.BaseContext = context.Background()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Hub decouples cycle execution from progress delivery. Emit is a
// non-blocking enqueue; a single collector goroutine batches queued events
// and hands each batch to every sink in turn. A full buffer drops events
// rather than slowing the cycle down.
type Hub struct {
	cfg   Config
	sinks []Sink

	events chan Event
	quit   chan struct{}
	done   chan struct{}

	dropped     atomic.Int64
	lastDropLog atomic.Int64
	closing     atomic.Bool

	stopOnce sync.Once
	// closeCtx is written before quit closes and read only after, so the
	// collector sees it without further locking.
	closeCtx context.Context
}

// NewHub starts the collector goroutine over the given sinks. Nil sinks are
// discarded. The Hub accepts events immediately.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}

	h := &Hub{
		cfg:   cfg.withDefaults(),
		sinks: kept,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	h.events = make(chan Event, h.cfg.BufferSize)
	go h.collect()
	return h
}

// Emit enqueues one event without ever blocking the caller. Invalid events
// and events arriving after Close are discarded; a full buffer drops the
// event and logs the drop tally at most once per interval.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closing.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.cfg.Logger.Debug("discarding malformed progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.noteDrop()
	}
}

// noteDrop counts a backpressure drop and emits a rate-limited warning.
func (h *Hub) noteDrop() {
	h.dropped.Add(1)
	now := time.Now().UnixNano()
	last := h.lastDropLog.Load()
	if now-last < int64(dropLogEvery) {
		return
	}
	if h.lastDropLog.CompareAndSwap(last, now) {
		h.cfg.Logger.Warn("progress buffer full, dropping events",
			zap.Int64("dropped", h.dropped.Swap(0)),
		)
	}
}

// Close stops intake, drains whatever is queued, flushes it to the sinks,
// closes them, and waits for the collector to exit. Safe to call more than
// once; ctx bounds only the wait.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.stopOnce.Do(func() {
		h.closing.Store(true)
		h.closeCtx = ctx
		close(h.quit)
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub shutdown: %w", ctx.Err())
	}
}

// collect owns the batch. A timer is armed when the first event of a batch
// arrives and disarmed whenever the batch ships, so an idle hub holds no
// timer at all.
func (h *Hub) collect() {
	defer close(h.done)

	var (
		batch  []Event
		timer  *time.Timer
		expiry <-chan time.Time
	)
	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			expiry = nil
		}
	}

	for {
		select {
		case evt := <-h.events:
			batch = append(batch, evt)
			switch {
			case len(batch) >= h.cfg.MaxBatchEvents:
				h.deliver(batch)
				batch = nil
				disarm()
			case timer == nil:
				timer = time.NewTimer(h.cfg.MaxBatchWait)
				expiry = timer.C
			}
		case <-expiry:
			timer = nil
			expiry = nil
			h.deliver(batch)
			batch = nil
		case <-h.quit:
			disarm()
			h.drain(batch)
			return
		}
	}
}

// drain empties the queue after Close, ships the remainder, and closes the
// sinks.
func (h *Hub) drain(batch []Event) {
	for {
		select {
		case evt := <-h.events:
			batch = append(batch, evt)
			if len(batch) >= h.cfg.MaxBatchEvents {
				h.deliver(batch)
				batch = nil
			}
		default:
			h.deliver(batch)
			h.closeSinks()
			return
		}
	}
}

// deliver hands one batch to every sink sequentially, each call under its
// own timeout. The batch slice is handed off and never reused afterwards,
// so sinks may retain it.
func (h *Hub) deliver(batch []Event) {
	if len(batch) == 0 {
		return
	}
	for _, sink := range h.sinks {
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, batch); err != nil {
			h.cfg.Logger.Warn("progress sink rejected batch",
				zap.Int("events", len(batch)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if err := sink.Close(ctx); err != nil {
			h.cfg.Logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}
