package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes the summary to the structured log. It is the default
// notifier when no external channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLog wires a Zap logger to the Notifier interface.
func NewLog(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the summary fields.
func (n *LogNotifier) Notify(_ context.Context, s Summary) error {
	fields := []zap.Field{
		zap.String("cycle_id", s.CycleID.String()),
		zap.Time("started", s.Started),
		zap.Duration("duration", s.Duration),
		zap.Int("fetched", s.Fetched),
		zap.Int("admitted", s.Admitted),
		zap.Int("new", s.Stats.New),
		zap.Int("updated", s.Stats.Updated),
		zap.Int("reactivated", s.Stats.Reactivated),
		zap.Int("expired", s.Stats.Expired),
		zap.Int("skipped", s.Stats.Skipped),
		zap.Int64("active", s.Stats.TotalActive),
	}
	if len(s.SourcesFailed) > 0 {
		fields = append(fields, zap.Strings("sources_failed", s.SourcesFailed))
	}
	n.logger.Info("cycle summary", fields...)
	return nil
}

// Close implements the Notifier interface; it performs no action.
func (n *LogNotifier) Close() error { return nil }
