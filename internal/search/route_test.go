package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var routeFixture = &Family{
	Name:    "fixture",
	Command: []string{"search", "fixture"},
	Filters: []Filter{
		{Key: "language", Flag: "language", Qualifier: "language"},
		{Key: "flag_only", Flag: "flag-only"},
		{Key: "qualifier_only", Qualifier: "q"},
		{Key: "presence", Flag: "presence", Qualifier: "presence", Kind: KindBoolPresence},
		{Key: "labels", Flag: "label", Qualifier: "label", Array: ArrayJoin},
		{Key: "authors", Flag: "author", Qualifier: "author", Array: ArrayRepeat},
	},
}

func TestRoute_SimplePrefersFlags(t *testing.T) {
	nq, err := Normalize("alpha beta", CombinatorAND)
	require.NoError(t, err)

	r, err := Route(routeFixture, nq, Params{
		"language":       "go",
		"flag_only":      "x",
		"qualifier_only": "y",
		"presence":       true,
		"labels":         []any{"a", "b"},
		"authors":        []any{"me", "you"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"--language=go", "--flag-only=x", "--presence", "--label=a,b", "--author=me", "--author=you"}, r.Flags())
	assert.Equal(t, []string{"q:y"}, r.Qualifiers())
	assert.Empty(t, r.Dropped)
}

func TestRoute_ComplexEmbedsOrDrops(t *testing.T) {
	nq, err := Normalize("alpha OR beta", CombinatorAND)
	require.NoError(t, err)

	r, err := Route(routeFixture, nq, Params{
		"language":  "go",
		"flag_only": "x",
		"labels":    []any{"a", "b"},
	})
	require.NoError(t, err)

	assert.Empty(t, r.Flags())
	assert.Equal(t, []string{"language:go", "label:a", "label:b"}, r.Qualifiers())
	assert.Equal(t, []string{"flag_only"}, r.Dropped)

	placement, ok := r.PlacementOf("flag_only")
	require.True(t, ok)
	assert.Equal(t, PlacementDropped, placement)
	assert.Equal(t, "dropped", placement.String())
}

func TestRoute_PresenceFalseEmitsNothing(t *testing.T) {
	r, err := Route(routeFixture, nil, Params{"presence": false})
	require.NoError(t, err)
	assert.Empty(t, r.Flags())
}

func TestRoute_DeclarationOrder(t *testing.T) {
	r, err := Route(routeFixture, nil, Params{
		"authors":  "me",
		"language": "go",
	})
	require.NoError(t, err)
	require.Len(t, r.Decisions, 2)
	assert.Equal(t, "language", r.Decisions[0].Key)
	assert.Equal(t, "authors", r.Decisions[1].Key)
}
