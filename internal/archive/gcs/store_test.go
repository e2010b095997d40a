// Package gcs_test tests the GCS snapshot store configuration checks.
package gcs_test

import (
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"

	"github.com/jobradar/jobradar/internal/archive/gcs"
)

// Uploads themselves need a live bucket and are exercised against a real
// project; here we only verify the constructor rejects bad wiring.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("NilClient", func(t *testing.T) {
		_, err := gcs.New(nil, gcs.Config{Bucket: "snapshots"})
		assert.ErrorContains(t, err, "storage client is required")
	})

	t.Run("MissingBucket", func(t *testing.T) {
		_, err := gcs.New(&storage.Client{}, gcs.Config{})
		assert.ErrorContains(t, err, "bucket name is required")
	})

	t.Run("TrimsPrefixSlashes", func(t *testing.T) {
		store, err := gcs.New(&storage.Client{}, gcs.Config{Bucket: "snapshots", Prefix: "/jobradar/"})
		assert.NoError(t, err)
		assert.NotNil(t, store)
	})
}
