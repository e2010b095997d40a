// Package jobs defines the posting aggregation domain model: the transient
// Posting produced by source adapters, the persisted Record keyed by
// canonical URL, and the Stats summary of one aggregation cycle.
package jobs

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultStatus is assigned to a Record when the incoming posting carries
// no status of its own.
const DefaultStatus = "Awaiting"

// Field length caps enforced by NewRecord. Oversized values are rejected,
// never truncated.
const (
	MaxSourceLen  = 100
	MaxCompanyLen = 200
	MaxTitleLen   = 300
	MaxURLLen     = 2048
	MaxStatusLen  = 50
	MaxNotesLen   = 2048
)

// Posting is the transient product of one source fetch. It carries no
// identity; the URL becomes the identity key once canonicalized.
type Posting struct {
	Source  string `json:"source"`
	Company string `json:"company"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Note    string `json:"note,omitempty"`
	Status  string `json:"status,omitempty"`
}

// AdmissionText returns the lowercased text the keyword filter evaluates:
// title, URL, and note joined by single spaces.
func (p Posting) AdmissionText() string {
	return strings.ToLower(p.Title + " " + p.URL + " " + p.Note)
}

// Record is a persisted posting. Status and Notes are user-owned once set;
// reconciliation only ever overwrites them with non-blank values.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	Company   string    `json:"company"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Active    bool      `json:"active"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
}

// NewRecord builds an active Record from a posting first observed on the
// given day. All fields are trimmed and validated; the URL is stored in
// canonical form. It returns an error instead of panicking on bad input.
func NewRecord(p Posting, today time.Time) (Record, error) {
	canonical, err := CanonicalURL(p.URL)
	if err != nil {
		return Record{}, err
	}
	source := strings.TrimSpace(p.Source)
	company := strings.TrimSpace(p.Company)
	title := strings.TrimSpace(p.Title)
	status := strings.TrimSpace(p.Status)
	if status == "" {
		status = DefaultStatus
	}
	notes := strings.TrimSpace(p.Note)

	switch {
	case source == "":
		return Record{}, errors.New("posting source is required")
	case company == "":
		return Record{}, errors.New("posting company is required")
	case title == "":
		return Record{}, errors.New("posting title is required")
	case len(source) > MaxSourceLen:
		return Record{}, fmt.Errorf("source exceeds %d characters", MaxSourceLen)
	case len(company) > MaxCompanyLen:
		return Record{}, fmt.Errorf("company exceeds %d characters", MaxCompanyLen)
	case len(title) > MaxTitleLen:
		return Record{}, fmt.Errorf("title exceeds %d characters", MaxTitleLen)
	case len(canonical) > MaxURLLen:
		return Record{}, fmt.Errorf("url exceeds %d characters", MaxURLLen)
	case len(status) > MaxStatusLen:
		return Record{}, fmt.Errorf("status exceeds %d characters", MaxStatusLen)
	case len(notes) > MaxNotesLen:
		return Record{}, fmt.Errorf("notes exceed %d characters", MaxNotesLen)
	}

	day := DateOnly(today)
	return Record{
		Source:    source,
		Company:   company,
		Title:     title,
		URL:       canonical,
		FirstSeen: day,
		LastSeen:  day,
		Active:    true,
		Status:    status,
		Notes:     notes,
	}, nil
}

// CanonicalURL standardizes a posting URL so cosmetic variants converge on
// one identity key. It lowercases the scheme and host, strips the default
// port and any fragment, and re-encodes the query in sorted order. Only
// http and https URLs are accepted.
func CanonicalURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("posting url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url %q must use http or https", trimmed)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	} else {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()
	return u.String(), nil
}

// DateOnly truncates t to its UTC calendar date. FirstSeen and LastSeen are
// always stored at date granularity.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Stats summarizes the reconciliation outcome of one aggregation cycle.
type Stats struct {
	New         int   `json:"new"`
	Updated     int   `json:"updated"`
	Reactivated int   `json:"reactivated"`
	Expired     int   `json:"expired"`
	Skipped     int   `json:"skipped"`
	TotalActive int64 `json:"total_active"`
}

// String renders the one-line summary used by notifiers and the CLI.
func (s Stats) String() string {
	return fmt.Sprintf("new=%d updated=%d reactivated=%d expired=%d skipped=%d active=%d",
		s.New, s.Updated, s.Reactivated, s.Expired, s.Skipped, s.TotalActive)
}
