package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// sinkFunc adapts a closure to the Sink interface for example use.
type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error { return f(ctx, batch) }

func (sinkFunc) Close(context.Context) error { return nil }

// ExampleHub_Emit walks one miniature cycle through a Hub and counts what
// reaches the sink once Close flushes the remainder.
func ExampleHub_Emit() {
	var forwarded int
	hub := NewHub(Config{MaxBatchEvents: 8}, sinkFunc(func(_ context.Context, batch []Event) error {
		forwarded += len(batch)
		return nil
	}))

	cycle := UUIDToBytes(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	at := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	hub.Emit(Event{CycleID: cycle, TS: at, Stage: StageCycleStart})
	hub.Emit(Event{CycleID: cycle, TS: at, Stage: StageSourceDone, Source: "greenhouse", Company: "acme", Count: 12})
	hub.Emit(Event{CycleID: cycle, TS: at, Stage: StageFilterDone, Count: 9})
	hub.Emit(Event{CycleID: cycle, TS: at, Stage: StageCycleDone, Active: 9})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Println("forwarded:", forwarded)
	// Output:
	// forwarded: 4
}

// ExampleSink tallies fetched postings per adapter family from SOURCE_DONE
// events.
func ExampleSink() {
	perFamily := map[string]int64{}
	tally := sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StageSourceDone {
				perFamily[evt.Source] += evt.Count
			}
		}
		return nil
	})

	hub := NewHub(Config{MaxBatchEvents: 4}, tally)
	cycle := UUIDToBytes(uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8"))
	at := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	hub.Emit(Event{CycleID: cycle, TS: at, Stage: StageSourceDone, Source: "lever", Company: "initech", Count: 7})
	hub.Emit(Event{CycleID: cycle, TS: at, Stage: StageSourceDone, Source: "lever", Company: "hooli", Count: 4})
	hub.Emit(Event{CycleID: cycle, TS: at, Stage: StageSourceDone, Source: "ashby", Company: "acme", Count: 3})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Println("lever:", perFamily["lever"])
	fmt.Println("ashby:", perFamily["ashby"])
	// Output:
	// lever: 11
	// ashby: 3
}
