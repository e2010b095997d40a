// Package progress defines the event structures emitted by the sync cycle.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCycleStart     Stage = "CYCLE_START"
	StageCycleDone      Stage = "CYCLE_DONE"
	StageCycleError     Stage = "CYCLE_ERROR"
	StageSourceDone     Stage = "SOURCE_DONE"
	StageSourceError    Stage = "SOURCE_ERROR"
	StageFilterDone     Stage = "FILTER_DONE"
	StageFilterRejected Stage = "FILTER_REJECTED"
	StageReconcileDone  Stage = "RECONCILE_DONE"
	StageExpireDone     Stage = "EXPIRE_DONE"
)

// Event captures a single milestone of one aggregation cycle.
type Event struct {
	// CycleID uniquely identifies a cycle run using the 16-byte UUID form.
	CycleID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Source optionally scopes source events to an adapter family label.
	Source string
	// Company optionally scopes source events to one employer board.
	Company string
	// Reason labels FILTER_REJECTED events with the rejection reason.
	Reason string
	// Count carries the stage's primary quantity: postings fetched,
	// admitted, rejected, or records expired.
	Count int64
	// New, Updated, and Reactivated break down a RECONCILE_DONE event.
	New         int64
	Updated     int64
	Reactivated int64
	// Active is the active-record total reported on CYCLE_DONE.
	Active int64
	// Dur captures execution latency for source fetches and completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CycleID == [16]byte{} {
		return errors.New("cycle id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCycleStart, StageCycleDone, StageCycleError:
	case StageFilterDone, StageReconcileDone, StageExpireDone:
	case StageSourceDone, StageSourceError:
		if e.Source == "" {
			return errors.New("source event requires source")
		}
	case StageFilterRejected:
		if e.Reason == "" {
			return errors.New("filter rejection requires reason")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Count < 0 {
		return errors.New("count must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// CycleUUID converts the binary cycle ID to uuid.UUID for display.
func (e Event) CycleUUID() uuid.UUID {
	return uuid.UUID(e.CycleID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
