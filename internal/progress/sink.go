package progress

import "context"

// Sink receives the batches the Hub collects. Consume must honor its ctx
// deadline; a sink that overruns it only loses that batch, never the hub.
// Batches are delivered from a single goroutine, one sink at a time.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// cycle runner can remain agnostic about how events are buffered or exported.
type Emitter interface {
	Emit(evt Event)
}
