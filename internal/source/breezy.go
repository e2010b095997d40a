package source

import (
	"context"
	"fmt"

	"github.com/jobradar/jobradar/internal/jobs"
)

const breezyEndpoint = "https://%s.breezy.hr"

// breezyRules matches the position anchors Breezy renders server-side.
var breezyRules = anchorRules{
	Cards:    "a.position, a.position.transition, a[href*='/p/'], a[href*='/position/'], .position-card a, .job-listing a",
	Title:    "h2, .position-title, .job-title",
	Location: ".location, .job-location",
	HostHint: "breezy.hr",
	MaxTitle: 200,
}

// Breezy scrapes the public careers page of one company. Breezy has no
// public JSON listing, so postings come out of the rendered markup.
type Breezy struct {
	board   Board
	fetcher *PageFetcher
	guard   *driftGuard
}

// NewBreezy constructs the adapter for one board.
func NewBreezy(board Board, fetcher *PageFetcher, guard *driftGuard) *Breezy {
	if guard == nil {
		guard = newDriftGuard(nil, nil)
	}
	return &Breezy{board: board, fetcher: fetcher, guard: guard}
}

func (b *Breezy) Name() string { return "breezy" }

func (b *Breezy) Company() string { return b.board.Company }

// Fetch scrapes the board's open positions.
func (b *Breezy) Fetch(ctx context.Context) ([]jobs.Posting, error) {
	page, err := b.fetcher.Fetch(ctx, boardURL(b.board, breezyEndpoint))
	if err != nil {
		return nil, fmt.Errorf("fetch breezy board %q: %w", b.board.Slug, err)
	}

	postings, cards, err := parseAnchorPostings(page, breezyRules, b.Name(), b.board.Company)
	if err != nil {
		return nil, err
	}
	b.guard.check(ctx, b.Name(), b.board, page, len(postings), cards)
	return postings, nil
}
