package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
)

const greenhouseEndpoint = "https://boards-api.greenhouse.io/v1/boards/%s/jobs"

// Greenhouse reads the public board API of one company.
type Greenhouse struct {
	board   Board
	fetcher *PageFetcher
	logger  *zap.Logger
}

// NewGreenhouse constructs the adapter for one board.
func NewGreenhouse(board Board, fetcher *PageFetcher, logger *zap.Logger) *Greenhouse {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Greenhouse{board: board, fetcher: fetcher, logger: logger}
}

func (g *Greenhouse) Name() string { return "greenhouse" }

func (g *Greenhouse) Company() string { return g.board.Company }

// Fetch lists the board's open postings.
func (g *Greenhouse) Fetch(ctx context.Context) ([]jobs.Posting, error) {
	page, err := g.fetcher.Fetch(ctx, boardURL(g.board, greenhouseEndpoint))
	if err != nil {
		return nil, fmt.Errorf("fetch greenhouse board %q: %w", g.board.Slug, err)
	}

	var resp struct {
		Jobs []struct {
			Title       string `json:"title"`
			AbsoluteURL string `json:"absolute_url"`
			Location    struct {
				Name string `json:"name"`
			} `json:"location"`
		} `json:"jobs"`
	}
	if err := decodeBoardJSON(page.Body, &resp); err != nil {
		g.logger.Warn("greenhouse board returned a non-JSON payload, skipping",
			zap.String("company", g.board.Company),
			zap.Error(err),
		)
		return nil, nil
	}

	postings := make([]jobs.Posting, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		if j.Title == "" || j.AbsoluteURL == "" {
			continue
		}
		postings = append(postings, jobs.Posting{
			Source:  g.Name(),
			Company: g.board.Company,
			Title:   j.Title,
			URL:     j.AbsoluteURL,
			Note:    j.Location.Name,
		})
	}
	return postings, nil
}

// boardURL resolves a board's endpoint, honoring an explicit override.
func boardURL(b Board, format string) string {
	if b.URL != "" {
		return b.URL
	}
	return fmt.Sprintf(format, b.Slug)
}
