package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jobradar/jobradar/internal/progress"
)

// PrometheusSink exports cycle progress metrics via Prometheus. It owns all
// collectors for cycles started/completed/running, per-source fetch counters,
// filter admissions, and record transitions.
type PrometheusSink struct {
	cyclesStarted   prometheus.Counter
	cyclesCompleted *prometheus.CounterVec
	cyclesRunning   prometheus.Gauge
	cycleDuration   *prometheus.HistogramVec

	sourceFetches  *prometheus.CounterVec
	sourcePostings *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec

	postingsAdmitted prometheus.Counter
	postingsRejected *prometheus.CounterVec

	recordTransitions *prometheus.CounterVec
	activeRecords     prometheus.Gauge

	tracker *cycleTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		cyclesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobradar_cycles_started_total",
			Help: "Total sync cycles that have started.",
		}),
		cyclesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_cycles_completed_total",
			Help: "Total sync cycles completed partitioned by result.",
		}, []string{"result"}),
		cyclesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobradar_cycles_running",
			Help: "Current number of running sync cycles.",
		}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobradar_cycle_duration_seconds",
			Help:    "Wall time per completed sync cycle.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		sourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_source_fetches_total",
			Help: "Source fetch completions partitioned by adapter family and result.",
		}, []string{"source", "result"}),
		sourcePostings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_source_postings_total",
			Help: "Postings fetched per adapter family.",
		}, []string{"source"}),
		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobradar_source_fetch_duration_seconds",
			Help:    "Source fetch duration partitioned by adapter family and result.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source", "result"}),
		postingsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobradar_postings_admitted_total",
			Help: "Postings admitted by the keyword filter.",
		}),
		postingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_postings_rejected_total",
			Help: "Postings rejected by the keyword filter partitioned by reason.",
		}, []string{"reason"}),
		recordTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobradar_record_transitions_total",
			Help: "Record state transitions applied by reconciliation.",
		}, []string{"transition"}),
		activeRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobradar_active_records",
			Help: "Active records after the most recent cycle.",
		}),
		tracker: newCycleTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.cyclesStarted,
		s.cyclesCompleted,
		s.cyclesRunning,
		s.cycleDuration,
		s.sourceFetches,
		s.sourcePostings,
		s.sourceDuration,
		s.postingsAdmitted,
		s.postingsRejected,
		s.recordTransitions,
		s.activeRecords,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCycleStart, progress.StageCycleDone, progress.StageCycleError:
		s.handleCycleEvent(evt)
	case progress.StageSourceDone, progress.StageSourceError:
		s.handleSourceEvent(evt)
	case progress.StageFilterDone:
		s.postingsAdmitted.Add(float64(evt.Count))
	case progress.StageFilterRejected:
		s.postingsRejected.WithLabelValues(evt.Reason).Add(float64(evt.Count))
	case progress.StageReconcileDone:
		s.recordTransitions.WithLabelValues("new").Add(float64(evt.New))
		s.recordTransitions.WithLabelValues("updated").Add(float64(evt.Updated))
		s.recordTransitions.WithLabelValues("reactivated").Add(float64(evt.Reactivated))
	case progress.StageExpireDone:
		s.recordTransitions.WithLabelValues("expired").Add(float64(evt.Count))
	}
}

func (s *PrometheusSink) handleCycleEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCycleStart:
		s.cyclesStarted.Inc()
		if s.tracker.start(evt.CycleID) {
			s.cyclesRunning.Inc()
		}
	case progress.StageCycleDone:
		s.cyclesCompleted.WithLabelValues("success").Inc()
		s.observeCycle(evt, "success")
		s.activeRecords.Set(float64(evt.Active))
	case progress.StageCycleError:
		s.cyclesCompleted.WithLabelValues("error").Inc()
		s.observeCycle(evt, "error")
	}
	if evt.Stage != progress.StageCycleStart && s.tracker.complete(evt.CycleID) {
		s.cyclesRunning.Dec()
	}
}

func (s *PrometheusSink) observeCycle(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.cycleDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleSourceEvent(evt progress.Event) {
	src := evt.Source
	if src == "" {
		src = "unknown"
	}
	result := "success"
	if evt.Stage == progress.StageSourceError {
		result = "error"
	}
	s.sourceFetches.WithLabelValues(src, result).Inc()
	if evt.Stage == progress.StageSourceDone && evt.Count > 0 {
		s.sourcePostings.WithLabelValues(src).Add(float64(evt.Count))
	}
	if evt.Dur > 0 {
		s.sourceDuration.WithLabelValues(src, result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type cycleTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newCycleTracker() *cycleTracker {
	return &cycleTracker{running: make(map[[16]byte]struct{})}
}

func (t *cycleTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *cycleTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
