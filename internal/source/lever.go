package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
)

const leverEndpoint = "https://api.lever.co/v0/postings/%s?mode=json"

// Lever reads the public postings API of one company.
type Lever struct {
	board   Board
	fetcher *PageFetcher
	logger  *zap.Logger
}

// NewLever constructs the adapter for one board.
func NewLever(board Board, fetcher *PageFetcher, logger *zap.Logger) *Lever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lever{board: board, fetcher: fetcher, logger: logger}
}

func (l *Lever) Name() string { return "lever" }

func (l *Lever) Company() string { return l.board.Company }

// Fetch lists the board's open postings. The lever API returns a bare JSON
// array.
func (l *Lever) Fetch(ctx context.Context) ([]jobs.Posting, error) {
	page, err := l.fetcher.Fetch(ctx, boardURL(l.board, leverEndpoint))
	if err != nil {
		return nil, fmt.Errorf("fetch lever board %q: %w", l.board.Slug, err)
	}

	var resp []struct {
		Text       string `json:"text"`
		HostedURL  string `json:"hostedUrl"`
		Categories struct {
			Location string `json:"location"`
		} `json:"categories"`
	}
	if err := decodeBoardJSON(page.Body, &resp); err != nil {
		l.logger.Warn("lever board returned a non-JSON payload, skipping",
			zap.String("company", l.board.Company),
			zap.Error(err),
		)
		return nil, nil
	}

	postings := make([]jobs.Posting, 0, len(resp))
	for _, j := range resp {
		if j.Text == "" || j.HostedURL == "" {
			continue
		}
		postings = append(postings, jobs.Posting{
			Source:  l.Name(),
			Company: l.board.Company,
			Title:   j.Text,
			URL:     j.HostedURL,
			Note:    j.Categories.Location,
		})
	}
	return postings, nil
}
