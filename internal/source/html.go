package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/archive"
	"github.com/jobradar/jobradar/internal/hash/sha256"
	"github.com/jobradar/jobradar/internal/jobs"
)

// anchorRules describes how to pull job anchors out of rendered board markup.
// Boards without a public JSON API are scraped this way.
type anchorRules struct {
	// Cards selects the anchor elements that each represent one posting.
	Cards string
	// Title selects the title node inside a card. The card's own text is the
	// fallback when nothing matches.
	Title string
	// Location selects the location node inside a card.
	Location string
	// HostHint, when set, drops anchors whose resolved URL does not contain it.
	HostHint string
	// MaxTitle drops cards whose extracted title exceeds this many characters.
	// Oversized titles usually mean the selector caught a container element.
	MaxTitle int
}

// parseAnchorPostings extracts postings from board markup. It returns the
// postings along with the number of card elements the selectors matched, so
// callers can tell an empty board from selector drift.
func parseAnchorPostings(page Page, rules anchorRules, sourceName, company string) ([]jobs.Posting, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s markup: %w", sourceName, err)
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil || base.Host == "" {
		base, err = url.Parse(page.URL)
		if err != nil {
			return nil, 0, fmt.Errorf("parse %s page url: %w", sourceName, err)
		}
	}

	seen := make(map[string]struct{})
	var postings []jobs.Posting
	cards := doc.Find(rules.Cards)
	cards.Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if rules.HostHint != "" && !strings.Contains(abs, rules.HostHint) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		title := firstText(card, rules.Title)
		if title == "" {
			title = strings.TrimSpace(card.Text())
		}
		if title == "" || (rules.MaxTitle > 0 && len(title) > rules.MaxTitle) {
			return
		}

		postings = append(postings, jobs.Posting{
			Source:  sourceName,
			Company: company,
			Title:   title,
			URL:     abs,
			Note:    firstText(card, rules.Location),
		})
	})

	return postings, cards.Length(), nil
}

// firstText returns the first non-empty trimmed text among the nodes the
// selector matches under sel.
func firstText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	var text string
	sel.Find(selector).EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if t := strings.TrimSpace(node.Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	return text
}

// driftGuard warns and archives the page when the selectors match nothing on
// a non-empty body. Board operators restyle their markup without notice, and
// the archived snapshot is what makes the breakage diagnosable after the fact.
type driftGuard struct {
	snaps  archive.Store
	logger *zap.Logger
}

func newDriftGuard(snaps archive.Store, logger *zap.Logger) *driftGuard {
	if snaps == nil {
		snaps = archive.NoOp{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &driftGuard{snaps: snaps, logger: logger}
}

// check records a possible drift when a non-empty page parsed into zero
// postings. A genuinely empty body is a transport problem, not drift, and is
// left to the fetch layer.
func (g *driftGuard) check(ctx context.Context, sourceName string, board Board, page Page, postings, matchedCards int) {
	if postings > 0 || len(page.Body) == 0 {
		return
	}

	name := g.snapshotName(sourceName, board.Slug, page.Body)
	uri, err := g.snaps.Save(ctx, name, page.Body)
	if err != nil {
		g.logger.Warn("failed to archive board snapshot",
			zap.String("source", sourceName),
			zap.String("company", board.Company),
			zap.Error(err),
		)
	}
	g.logger.Warn("zero postings parsed, board markup may have changed",
		zap.String("source", sourceName),
		zap.String("company", board.Company),
		zap.String("url", page.URL),
		zap.Int("cards_matched", matchedCards),
		zap.Int("body_bytes", len(page.Body)),
		zap.String("snapshot", uri),
	)
}

func (g *driftGuard) snapshotName(sourceName, slug string, body []byte) string {
	return fmt.Sprintf("%s/%s/%s_%s.html",
		time.Now().UTC().Format(time.DateOnly), sourceName, slug, sha256.Sum(body)[:16])
}
