package source

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
)

const recruiteeEndpoint = "https://%s.recruitee.com/api/offers/"

// Recruitee reads the public offers API of one company.
type Recruitee struct {
	board   Board
	fetcher *PageFetcher
	logger  *zap.Logger
}

// NewRecruitee constructs the adapter for one board.
func NewRecruitee(board Board, fetcher *PageFetcher, logger *zap.Logger) *Recruitee {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recruitee{board: board, fetcher: fetcher, logger: logger}
}

func (r *Recruitee) Name() string { return "recruitee" }

func (r *Recruitee) Company() string { return r.board.Company }

// Fetch lists the board's open offers.
func (r *Recruitee) Fetch(ctx context.Context) ([]jobs.Posting, error) {
	page, err := r.fetcher.Fetch(ctx, boardURL(r.board, recruiteeEndpoint))
	if err != nil {
		return nil, fmt.Errorf("fetch recruitee board %q: %w", r.board.Slug, err)
	}

	var resp struct {
		Offers []struct {
			Title      string `json:"title"`
			CareersURL string `json:"careers_url"`
			Location   string `json:"location"`
			Locations  []struct {
				City string `json:"city"`
			} `json:"locations"`
		} `json:"offers"`
	}
	if err := decodeBoardJSON(page.Body, &resp); err != nil {
		r.logger.Warn("recruitee board returned a non-JSON payload, skipping",
			zap.String("company", r.board.Company),
			zap.Error(err),
		)
		return nil, nil
	}

	postings := make([]jobs.Posting, 0, len(resp.Offers))
	for _, offer := range resp.Offers {
		if offer.Title == "" || offer.CareersURL == "" {
			continue
		}
		note := offer.Location
		if note == "" && len(offer.Locations) > 0 {
			cities := make([]string, 0, len(offer.Locations))
			for _, loc := range offer.Locations {
				if loc.City != "" {
					cities = append(cities, loc.City)
				}
			}
			note = strings.Join(cities, ", ")
		}
		postings = append(postings, jobs.Posting{
			Source:  r.Name(),
			Company: r.board.Company,
			Title:   offer.Title,
			URL:     offer.CareersURL,
			Note:    note,
		})
	}
	return postings, nil
}
