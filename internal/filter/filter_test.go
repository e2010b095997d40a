package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobradar/jobradar/internal/jobs"
)

func posting(title, note string) jobs.Posting {
	return jobs.Posting{
		Source:  "greenhouse",
		Company: "Acme",
		Title:   title,
		URL:     "https://jobs.example.com/1",
		Note:    note,
	}
}

func TestRoleKeywordRespectsWordBoundaries(t *testing.T) {
	t.Parallel()

	f, err := New(Config{Role: []string{"java"}, Include: []string{"remote"}})
	require.NoError(t, err)

	ok, _ := f.Admit(posting("Senior Java Developer", "remote"))
	require.True(t, ok)

	ok, reason := f.Admit(posting("Senior JavaScript Developer", "remote"))
	require.False(t, ok)
	require.Equal(t, ReasonRole, reason)
}

func TestExclusionDominates(t *testing.T) {
	t.Parallel()

	f, err := New(Config{
		Role:    []string{"java"},
		Include: []string{"remote"},
		Exclude: []string{"clearance"},
	})
	require.NoError(t, err)

	ok, reason := f.Admit(posting("Java Developer", "remote, requires Clearance"))
	require.False(t, ok)
	require.Equal(t, ReasonExclude, reason)

	// Exclusion also vetoes in lenient mode.
	lenient, err := New(Config{
		Mode:    ModeLenient,
		Role:    []string{"java"},
		Exclude: []string{"clearance"},
	})
	require.NoError(t, err)
	ok, reason = lenient.Admit(posting("Java Developer", "clearance required"))
	require.False(t, ok)
	require.Equal(t, ReasonExclude, reason)
}

func TestEmptyRoleListIsVacuouslySatisfied(t *testing.T) {
	t.Parallel()

	f, err := New(Config{Include: []string{"remote"}})
	require.NoError(t, err)

	ok, _ := f.Admit(posting("Underwater Basket Weaver", "fully remote"))
	require.True(t, ok)
}

func TestIncludeFallsBackToRemoteTerms(t *testing.T) {
	t.Parallel()

	f, err := New(Config{Role: []string{"engineer"}})
	require.NoError(t, err)

	ok, _ := f.Admit(posting("Platform Engineer", "WFH friendly"))
	require.True(t, ok)

	ok, _ = f.Admit(posting("Platform Engineer", "LATAM welcome"))
	require.True(t, ok)

	ok, reason := f.Admit(posting("Platform Engineer", "onsite only, NYC"))
	require.False(t, ok)
	require.Equal(t, ReasonInclude, reason)
}

func TestLenientModeAdmitsEitherTier(t *testing.T) {
	t.Parallel()

	f, err := New(Config{
		Mode:    ModeLenient,
		Role:    []string{"golang"},
		Include: []string{"remote"},
	})
	require.NoError(t, err)

	ok, _ := f.Admit(posting("Golang Developer", "onsite"))
	require.True(t, ok)

	ok, _ = f.Admit(posting("Rust Developer", "remote"))
	require.True(t, ok)

	ok, reason := f.Admit(posting("Rust Developer", "onsite"))
	require.False(t, ok)
	require.Equal(t, ReasonRole, reason)
}

func TestAdmitIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	f, err := New(Config{Role: []string{"JAVA"}, Include: []string{"Remote"}})
	require.NoError(t, err)

	ok, _ := f.Admit(posting("jAvA dEvElOpEr", "REMOTE"))
	require.True(t, ok)
}

func TestUnknownModeRejected(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Mode: "fuzzy"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown filter mode")
}

func TestSplitTalliesReasons(t *testing.T) {
	t.Parallel()

	f, err := New(Config{
		Role:    []string{"java"},
		Include: []string{"remote"},
		Exclude: []string{"intern"},
	})
	require.NoError(t, err)

	admitted, rejected := f.Split([]jobs.Posting{
		posting("Java Developer", "remote"),
		posting("Java Intern", "remote"),
		posting("JavaScript Developer", "remote"),
		posting("Java Developer", "onsite"),
	})
	require.Len(t, admitted, 1)
	require.Equal(t, map[string]int{
		ReasonExclude: 1,
		ReasonRole:    1,
		ReasonInclude: 1,
	}, rejected)
}
