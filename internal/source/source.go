// Package source implements the ATS board adapters that produce postings.
// Structured families (greenhouse, lever, recruitee, workable) consume JSON
// APIs; breezy scrapes HTML; ashby sniffs the body and takes whichever path
// fits. All transport goes through the shared PageFetcher.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jobradar/jobradar/internal/jobs"
)

// Adapter fetches the current postings of one company board.
//
// Adapters are stateless between calls and must honor ctx cancellation.
// Returning zero postings is success; an error means the board could not be
// fetched at all and the orchestrator may retry.
type Adapter interface {
	// Name is the adapter family, e.g. "greenhouse".
	Name() string
	// Company is the employer display name postings are attributed to.
	Company() string
	Fetch(ctx context.Context) ([]jobs.Posting, error)
}

// Board identifies one company's board within an ATS family. URL, when set,
// overrides the endpoint derived from Slug (tests, self-hosted instances).
type Board struct {
	Company string
	Slug    string
	URL     string
}

// errNotJSON marks a payload that is not a JSON document. A JSON board
// serving HTML (expired slug, platform error page) yields zero postings,
// not an adapter failure.
var errNotJSON = errors.New("payload is not json")

// looksLikeJSON reports whether the first non-space byte opens a JSON
// value.
func looksLikeJSON(body []byte) bool {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}

// decodeBoardJSON unmarshals a board payload, mapping any malformed body to
// errNotJSON.
func decodeBoardJSON(body []byte, out any) error {
	if !looksLikeJSON(body) {
		return errNotJSON
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s", errNotJSON, err)
	}
	return nil
}
