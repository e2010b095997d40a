package source

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivememory "github.com/jobradar/jobradar/internal/archive/memory"
)

func pageWith(url, body string) Page {
	return Page{URL: url, FinalURL: url, StatusCode: 200, Body: []byte(body)}
}

func TestParseAnchorPostingsResolvesRelativeURLs(t *testing.T) {
	t.Parallel()

	rules := anchorRules{Cards: "a.job", Title: "h3", Location: ".loc"}
	page := pageWith("https://boards.example.com/acme/",
		`<a class="job" href="/openings/1"><h3>Engineer</h3><span class="loc">Remote</span></a>`)

	postings, cards, err := parseAnchorPostings(page, rules, "board", "Acme")
	require.NoError(t, err)
	require.Equal(t, 1, cards)
	require.Len(t, postings, 1)
	require.Equal(t, "https://boards.example.com/openings/1", postings[0].URL)
	require.Equal(t, "Engineer", postings[0].Title)
	require.Equal(t, "Remote", postings[0].Note)
}

func TestParseAnchorPostingsResolvesAgainstFinalURL(t *testing.T) {
	t.Parallel()

	// Redirected pages must resolve hrefs against where the body actually
	// came from, not the requested URL.
	page := Page{
		URL:      "https://old.example.com/x",
		FinalURL: "https://careers.example.org/acme/",
		Body:     []byte(`<a class="job" href="jobs/2">Analyst</a>`),
	}

	postings, _, err := parseAnchorPostings(page, anchorRules{Cards: "a.job"}, "board", "Acme")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "https://careers.example.org/acme/jobs/2", postings[0].URL)
}

func TestParseAnchorPostingsFallsBackToRequestURL(t *testing.T) {
	t.Parallel()

	page := Page{
		URL:      "https://boards.example.com/acme/",
		FinalURL: "",
		Body:     []byte(`<a class="job" href="/openings/9">Engineer</a>`),
	}

	postings, _, err := parseAnchorPostings(page, anchorRules{Cards: "a.job"}, "board", "Acme")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "https://boards.example.com/openings/9", postings[0].URL)
}

func TestParseAnchorPostingsDeduplicatesByURL(t *testing.T) {
	t.Parallel()

	page := pageWith("https://b.example.com/",
		`<a class="job" href="/p/1">Engineer</a><a class="job" href="/p/1">Engineer</a>`)

	postings, cards, err := parseAnchorPostings(page, anchorRules{Cards: "a.job"}, "board", "Acme")
	require.NoError(t, err)
	require.Equal(t, 2, cards)
	require.Len(t, postings, 1)
}

func TestParseAnchorPostingsHonorsHostHint(t *testing.T) {
	t.Parallel()

	page := pageWith("https://acme.breezy.hr/",
		`<a class="job" href="https://acme.breezy.hr/p/1">Engineer</a>
		 <a class="job" href="https://linkedin.com/acme">Follow</a>`)

	rules := anchorRules{Cards: "a.job", HostHint: "breezy.hr"}
	postings, cards, err := parseAnchorPostings(page, rules, "board", "Acme")
	require.NoError(t, err)
	require.Equal(t, 2, cards)
	require.Len(t, postings, 1)
	require.Equal(t, "https://acme.breezy.hr/p/1", postings[0].URL)
}

func TestParseAnchorPostingsDropsOversizedTitles(t *testing.T) {
	t.Parallel()

	page := pageWith("https://b.example.com/",
		`<a class="job" href="/p/1">`+strings.Repeat("x", 50)+`</a>`)

	postings, cards, err := parseAnchorPostings(page, anchorRules{Cards: "a.job", MaxTitle: 20}, "board", "Acme")
	require.NoError(t, err)
	require.Equal(t, 1, cards)
	require.Empty(t, postings, "a selector that caught a container element must not produce a posting")
}

func TestParseAnchorPostingsSkipsEmptyHrefs(t *testing.T) {
	t.Parallel()

	page := pageWith("https://b.example.com/",
		`<a class="job" href="  ">Engineer</a><a class="job">Engineer</a>`)

	postings, cards, err := parseAnchorPostings(page, anchorRules{Cards: "a.job"}, "board", "Acme")
	require.NoError(t, err)
	require.Equal(t, 2, cards)
	require.Empty(t, postings)
}

func TestFirstText(t *testing.T) {
	t.Parallel()

	page := pageWith("https://b.example.com/",
		`<a class="job" href="/p/1"><span class="t"> </span><span class="t">Engineer</span></a>`)

	postings, _, err := parseAnchorPostings(page, anchorRules{Cards: "a.job", Title: ".t"}, "board", "Acme")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "Engineer", postings[0].Title, "the first non-empty match wins")
}

type failingArchive struct{}

func (failingArchive) Save(context.Context, string, []byte) (string, error) {
	return "", errors.New("bucket gone")
}

func TestDriftGuardArchivesZeroPostingPages(t *testing.T) {
	t.Parallel()

	snaps := archivememory.New()
	guard := newDriftGuard(snaps, zap.NewNop())
	board := Board{Company: "Acme", Slug: "acme"}

	guard.check(context.Background(), "breezy", board, pageWith("https://acme.breezy.hr/", "<html>shell</html>"), 0, 0)
	require.Equal(t, 1, snaps.Len())
}

func TestDriftGuardSkipsHealthyAndEmptyPages(t *testing.T) {
	t.Parallel()

	snaps := archivememory.New()
	guard := newDriftGuard(snaps, zap.NewNop())
	board := Board{Company: "Acme", Slug: "acme"}

	// Postings were parsed: not drift.
	guard.check(context.Background(), "breezy", board, pageWith("https://acme.breezy.hr/", "<html>ok</html>"), 3, 3)
	// Empty body: a transport problem, not drift.
	guard.check(context.Background(), "breezy", board, pageWith("https://acme.breezy.hr/", ""), 0, 0)

	require.Equal(t, 0, snaps.Len())
}

func TestDriftGuardToleratesArchiveFailure(t *testing.T) {
	t.Parallel()

	guard := newDriftGuard(failingArchive{}, zap.NewNop())
	board := Board{Company: "Acme", Slug: "acme"}

	// Must not panic or propagate the storage failure.
	guard.check(context.Background(), "breezy", board, pageWith("https://acme.breezy.hr/", "<html>shell</html>"), 0, 0)
}

func TestDriftGuardSnapshotName(t *testing.T) {
	t.Parallel()

	guard := newDriftGuard(nil, nil)
	name := guard.snapshotName("breezy", "acme", []byte("<html></html>"))

	require.Contains(t, name, "/breezy/acme_")
	require.True(t, strings.HasSuffix(name, ".html"))
}
