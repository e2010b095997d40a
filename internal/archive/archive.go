// Package archive defines the interface for storing raw page snapshots.
// Snapshots are captured when a board's markup stops matching the extraction
// rules, so the drift can be inspected offline. The abstraction keeps the
// application independent of a specific backend (Google Cloud Storage or the
// local filesystem).
package archive

import (
	"context"
)

// Store persists page snapshots under an object name.
type Store interface {
	// Save writes the snapshot and returns the URI of the stored object.
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// NoOp is a snapshot store that discards everything. It is useful for tests
// or for running cycles with snapshotting disabled.
type NoOp struct{}

// Save for NoOp does nothing and always returns an empty URI.
func (NoOp) Save(_ context.Context, _ string, _ []byte) (string, error) {
	return "", nil
}
