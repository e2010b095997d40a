package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
)

const ashbyEndpoint = "https://jobs.ashbyhq.com/%s"

// ashbyRules layers several selector generations because Ashby restyles its
// board markup frequently.
var ashbyRules = anchorRules{
	Cards:    "a[href*='/applications/'], a[href*='/jobs/'], div[class*='JobsList'] a, div[class*='ashby-job'] a, a[class*='JobPosting'] a, .job-link, [data-job-id]",
	Title:    ".ashby-job-posting-title, [class*='Title']",
	Location: ".ashby-job-posting-location, [class*='Location']",
	HostHint: "ashbyhq.com",
	MaxTitle: 200,
}

// Ashby scrapes the hosted board page of one company. Ashby exposes no
// public JSON listing, so postings come out of the rendered markup. Some
// deployments answer with JSON on the board path, which carries nothing we
// can use.
type Ashby struct {
	board   Board
	fetcher *PageFetcher
	guard   *driftGuard
	logger  *zap.Logger
}

// NewAshby constructs the adapter for one board.
func NewAshby(board Board, fetcher *PageFetcher, guard *driftGuard, logger *zap.Logger) *Ashby {
	if guard == nil {
		guard = newDriftGuard(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ashby{board: board, fetcher: fetcher, guard: guard, logger: logger}
}

func (a *Ashby) Name() string { return "ashby" }

func (a *Ashby) Company() string { return a.board.Company }

// Fetch scrapes the board's open positions.
func (a *Ashby) Fetch(ctx context.Context) ([]jobs.Posting, error) {
	page, err := a.fetcher.Fetch(ctx, boardURL(a.board, ashbyEndpoint))
	if err != nil {
		return nil, fmt.Errorf("fetch ashby board %q: %w", a.board.Slug, err)
	}

	if looksLikeJSON(page.Body) {
		a.logger.Info("ashby board answered with JSON, no public listing schema, skipping",
			zap.String("company", a.board.Company),
			zap.String("url", page.URL),
		)
		return nil, nil
	}

	postings, cards, err := parseAnchorPostings(page, ashbyRules, a.Name(), a.board.Company)
	if err != nil {
		return nil, err
	}
	a.guard.check(ctx, a.Name(), a.board, page, len(postings), cards)
	return postings, nil
}
