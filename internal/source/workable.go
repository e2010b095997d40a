package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
)

const workableEndpoint = "https://apply.workable.com/api/v3/accounts/%s/jobs"

// Workable reads the v3 accounts API of one company.
type Workable struct {
	board   Board
	fetcher *PageFetcher
	logger  *zap.Logger
}

// NewWorkable constructs the adapter for one board.
func NewWorkable(board Board, fetcher *PageFetcher, logger *zap.Logger) *Workable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workable{board: board, fetcher: fetcher, logger: logger}
}

func (w *Workable) Name() string { return "workable" }

func (w *Workable) Company() string { return w.board.Company }

type workableJob struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Location struct {
		LocationStr string `json:"location_str"`
		City        string `json:"city"`
	} `json:"location"`
}

// Fetch lists the account's published jobs. Some tenants answer with a
// top-level "results" array, older ones with "jobs".
func (w *Workable) Fetch(ctx context.Context) ([]jobs.Posting, error) {
	page, err := w.fetcher.Fetch(ctx, boardURL(w.board, workableEndpoint))
	if err != nil {
		return nil, fmt.Errorf("fetch workable board %q: %w", w.board.Slug, err)
	}

	var resp struct {
		Results []workableJob `json:"results"`
		Jobs    []workableJob `json:"jobs"`
	}
	if err := decodeBoardJSON(page.Body, &resp); err != nil {
		w.logger.Warn("workable board returned a non-JSON payload, skipping",
			zap.String("company", w.board.Company),
			zap.Error(err),
		)
		return nil, nil
	}

	entries := resp.Results
	if len(entries) == 0 {
		entries = resp.Jobs
	}

	postings := make([]jobs.Posting, 0, len(entries))
	for _, job := range entries {
		if job.Title == "" || job.URL == "" {
			continue
		}
		note := job.Location.LocationStr
		if note == "" {
			note = job.Location.City
		}
		postings = append(postings, jobs.Posting{
			Source:  w.Name(),
			Company: w.board.Company,
			Title:   job.Title,
			URL:     job.URL,
			Note:    note,
		})
	}
	return postings, nil
}
