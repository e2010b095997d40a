package source

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseBoard(t *testing.T) {
	t.Parallel()

	cases := []struct {
		entry string
		want  Board
		ok    bool
	}{
		{"acme", Board{Company: "acme", Slug: "acme"}, true},
		{"Acme Corp:acme", Board{Company: "Acme Corp", Slug: "acme"}, true},
		{"  Acme : acme  ", Board{Company: "Acme", Slug: "acme"}, true},
		{":acme", Board{Company: "acme", Slug: "acme"}, true},
		{"Acme:", Board{}, false},
		{":", Board{}, false},
		{"", Board{}, false},
		{"   ", Board{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.entry, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseBoard(tc.entry)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBoardsEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, Boards{}.Empty())
	require.False(t, Boards{Lever: []string{"acme"}}.Empty())
}

func TestBuildAdapters(t *testing.T) {
	t.Parallel()

	boards := Boards{
		Greenhouse: []string{"Acme:acme", ""},
		Lever:      []string{"globex"},
		Recruitee:  []string{"Initech:initech"},
		Workable:   []string{"hooli"},
		Breezy:     []string{"Umbrella:umbrella"},
		Ashby:      []string{"Wayne:wayne", ":"},
	}

	adapters := BuildAdapters(boards, newTestFetcher(t), nil, zap.NewNop())
	require.Len(t, adapters, 6, "malformed entries are skipped, valid ones kept")

	type id struct{ name, company string }
	var got []id
	for _, a := range adapters {
		got = append(got, id{a.Name(), a.Company()})
	}
	require.Equal(t, []id{
		{"greenhouse", "Acme"},
		{"lever", "globex"},
		{"recruitee", "Initech"},
		{"workable", "hooli"},
		{"breezy", "Umbrella"},
		{"ashby", "Wayne"},
	}, got)
}

func TestBuildAdaptersEmptyBoards(t *testing.T) {
	t.Parallel()

	adapters := BuildAdapters(Boards{}, newTestFetcher(t), nil, nil)
	require.Empty(t, adapters)
}
