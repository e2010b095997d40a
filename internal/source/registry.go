package source

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/archive"
)

// Boards lists the tracked boards per source family. Each entry is either a
// bare slug or "Company Name:slug"; a bare slug doubles as the display name.
type Boards struct {
	Greenhouse []string `mapstructure:"greenhouse" yaml:"greenhouse"`
	Lever      []string `mapstructure:"lever" yaml:"lever"`
	Recruitee  []string `mapstructure:"recruitee" yaml:"recruitee"`
	Workable   []string `mapstructure:"workable" yaml:"workable"`
	Breezy     []string `mapstructure:"breezy" yaml:"breezy"`
	Ashby      []string `mapstructure:"ashby" yaml:"ashby"`
}

// Empty reports whether no boards are configured at all.
func (b Boards) Empty() bool {
	return len(b.Greenhouse)+len(b.Lever)+len(b.Recruitee)+
		len(b.Workable)+len(b.Breezy)+len(b.Ashby) == 0
}

// ParseBoard splits a configured board entry into its company and slug.
// Malformed entries report ok=false and are skipped by the registry.
func ParseBoard(entry string) (Board, bool) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return Board{}, false
	}
	if company, slug, found := strings.Cut(entry, ":"); found {
		company = strings.TrimSpace(company)
		slug = strings.TrimSpace(slug)
		if slug == "" {
			return Board{}, false
		}
		if company == "" {
			company = slug
		}
		return Board{Company: company, Slug: slug}, true
	}
	return Board{Company: entry, Slug: entry}, true
}

// BuildAdapters wires one adapter per configured board. HTML-scraping
// families share a drift guard so selector breakage gets snapshotted.
func BuildAdapters(boards Boards, fetcher *PageFetcher, snaps archive.Store, logger *zap.Logger) []Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := newDriftGuard(snaps, logger)

	var adapters []Adapter
	add := func(entries []string, build func(Board) Adapter) {
		for _, entry := range entries {
			board, ok := ParseBoard(entry)
			if !ok {
				logger.Warn("skipping malformed board entry", zap.String("entry", entry))
				continue
			}
			adapters = append(adapters, build(board))
		}
	}

	add(boards.Greenhouse, func(b Board) Adapter { return NewGreenhouse(b, fetcher, logger) })
	add(boards.Lever, func(b Board) Adapter { return NewLever(b, fetcher, logger) })
	add(boards.Recruitee, func(b Board) Adapter { return NewRecruitee(b, fetcher, logger) })
	add(boards.Workable, func(b Board) Adapter { return NewWorkable(b, fetcher, logger) })
	add(boards.Breezy, func(b Board) Adapter { return NewBreezy(b, fetcher, guard) })
	add(boards.Ashby, func(b Board) Adapter { return NewAshby(b, fetcher, guard, logger) })

	return adapters
}
