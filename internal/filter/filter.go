// Package filter implements the three-tier keyword admission policy applied
// to fetched postings: role keywords (word-boundary match), include keywords
// (substring match), and exclude keywords (substring veto).
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jobradar/jobradar/internal/jobs"
)

// Modes for combining the role and include tiers. Exclusion vetoes in both.
const (
	// ModeStrict admits a posting only when the role tier and the include
	// tier are both satisfied.
	ModeStrict = "strict"
	// ModeLenient admits a posting when either tier is satisfied.
	ModeLenient = "lenient"
)

// Rejection reasons reported by Admit, used as metric labels.
const (
	ReasonRole    = "role"
	ReasonInclude = "include"
	ReasonExclude = "exclude"
)

// DefaultIncludeTerms backs the include tier when no include keywords are
// configured. They mark remote-friendly postings.
var DefaultIncludeTerms = []string{"remote", "wfh", "work from home", "anywhere", "latam", "brazil"}

// Config holds the raw keyword lists. An empty role list satisfies the role
// tier vacuously; an empty include list falls back to DefaultIncludeTerms.
type Config struct {
	Mode    string
	Role    []string
	Include []string
	Exclude []string
}

// Filter is an immutable admission policy compiled once from a Config.
// It is safe for concurrent use.
type Filter struct {
	mode    string
	role    []*regexp.Regexp
	include []string
	exclude []string
}

// New compiles the policy. Role keywords become case-insensitive
// word-boundary regexes so that "java" never matches "javascript".
func New(cfg Config) (*Filter, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeStrict
	}
	if mode != ModeStrict && mode != ModeLenient {
		return nil, fmt.Errorf("unknown filter mode %q", cfg.Mode)
	}

	f := &Filter{mode: mode}
	for _, kw := range cfg.Role {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile role keyword %q: %w", kw, err)
		}
		f.role = append(f.role, re)
	}
	f.include = lowerTrim(cfg.Include)
	if len(f.include) == 0 {
		f.include = append([]string(nil), DefaultIncludeTerms...)
	}
	f.exclude = lowerTrim(cfg.Exclude)
	return f, nil
}

// Admit reports whether the posting passes the policy. On rejection the
// second return value names the failing tier.
func (f *Filter) Admit(p jobs.Posting) (bool, string) {
	text := p.AdmissionText()
	if containsAny(text, f.exclude) {
		return false, ReasonExclude
	}

	role := f.roleSatisfied(text)
	include := containsAny(text, f.include)

	if f.mode == ModeLenient {
		if role || include {
			return true, ""
		}
		return false, ReasonRole
	}
	if !role {
		return false, ReasonRole
	}
	if !include {
		return false, ReasonInclude
	}
	return true, ""
}

// Split partitions postings into the admitted slice and a tally of
// rejection reasons.
func (f *Filter) Split(postings []jobs.Posting) ([]jobs.Posting, map[string]int) {
	admitted := make([]jobs.Posting, 0, len(postings))
	rejected := make(map[string]int)
	for _, p := range postings {
		ok, reason := f.Admit(p)
		if !ok {
			rejected[reason]++
			continue
		}
		admitted = append(admitted, p)
	}
	return admitted, rejected
}

func (f *Filter) roleSatisfied(text string) bool {
	if len(f.role) == 0 {
		return true
	}
	for _, re := range f.role {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func lowerTrim(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}
