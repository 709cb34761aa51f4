package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		combinator Combinator
		expected   string
		complex    bool
	}{
		{name: "single term", raw: "useState", combinator: CombinatorOR, expected: "useState"},
		{name: "two terms OR", raw: "useState hook", combinator: CombinatorOR, expected: "useState OR hook"},
		{name: "two terms AND", raw: "useState hook", combinator: CombinatorAND, expected: "useState hook"},
		{name: "collapses whitespace", raw: "  a   b  ", combinator: CombinatorOR, expected: "a OR b"},
		{name: "explicit operator kept", raw: "react AND hooks", combinator: CombinatorOR, expected: "react AND hooks", complex: true},
		{name: "NOT kept", raw: "auth NOT test", combinator: CombinatorOR, expected: "auth NOT test", complex: true},
		{name: "phrase with term", raw: `"error handling" golang`, combinator: CombinatorOR, expected: `"error handling" OR golang`},
		{name: "user qualifier not joined", raw: "parser lexer language:go", combinator: CombinatorOR, expected: "parser OR lexer language:go"},
		{name: "single term with qualifier", raw: "parser path:src", combinator: CombinatorOR, expected: "parser path:src"},
		{name: "operator inside phrase is text", raw: `"rock AND roll" guitar`, combinator: CombinatorOR, expected: `"rock AND roll" OR guitar`},
		{name: "exclusion not joined", raw: "foo -bar", combinator: CombinatorOR, expected: "foo -bar"},
		{name: "leading exclusion moves after terms", raw: "-deprecated handler", combinator: CombinatorOR, expected: "handler -deprecated"},
		{name: "excluded phrase", raw: `-"old api" client sdk`, combinator: CombinatorOR, expected: `client OR sdk -"old api"`},
		{name: "exclusions before qualifiers", raw: "a language:go -b c", combinator: CombinatorOR, expected: "a OR c -b language:go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nq, err := Normalize(tt.raw, tt.combinator)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, nq.EffectiveQuery())
			assert.Equal(t, tt.complex, nq.HasComplexLogic)
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	_, err := Normalize("   ", CombinatorOR)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Normalize(`"unterminated phrase`, CombinatorOR)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNormalize_Idempotent(t *testing.T) {
	queries := []string{
		"useState hook",
		"a b c d",
		`"exact words" other thing`,
		"single",
		"x language:go y",
		"-old new",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			first, err := Normalize(q, CombinatorOR)
			require.NoError(t, err)
			second, err := Normalize(first.EffectiveQuery(), CombinatorOR)
			require.NoError(t, err)

			assert.Equal(t, first.EffectiveQuery(), second.EffectiveQuery())
			assert.NotContains(t, second.EffectiveQuery(), "OR OR")
		})
	}
}

func TestNormalize_ClassifiesRawInput(t *testing.T) {
	nq, err := Normalize("useState hook", CombinatorOR)
	require.NoError(t, err)

	assert.False(t, nq.HasComplexLogic)
	assert.Contains(t, nq.EffectiveQuery(), " OR ")

	routing, err := Route(Code, nq, Params{"language": "typescript"})
	require.NoError(t, err)
	placement, ok := routing.PlacementOf("language")
	require.True(t, ok)
	assert.Equal(t, PlacementFlag, placement)
}

func TestNormalize_PhraseRoundTrip(t *testing.T) {
	raw := `"first phrase" alpha "second, with comma" beta "__PHRASE__0__PHRASE__"`
	nq, err := Normalize(raw, CombinatorOR)
	require.NoError(t, err)

	out := nq.EffectiveQuery()
	phrases := []string{`"first phrase"`, `"second, with comma"`, `"__PHRASE__0__PHRASE__"`}
	assert.Equal(t, phrases, nq.ExactPhrases)

	last := -1
	for _, p := range phrases {
		idx := strings.Index(out, p)
		require.GreaterOrEqual(t, idx, 0, "phrase %s missing from %s", p, out)
		assert.Greater(t, idx, last, "phrase order changed")
		last = idx
	}
	assert.Less(t, strings.Index(out, `"first phrase"`), strings.Index(out, "alpha"))
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, `"second, with comma"`))
}

func TestNormalize_RenderAppendsQualifiers(t *testing.T) {
	nq, err := Normalize(`"retry logic" backoff`, CombinatorAND)
	require.NoError(t, err)

	assert.Equal(t, `"retry logic" backoff language:go path:src`, nq.Render([]string{"language:go", "path:src"}))
}

func TestNormalize_RenderLeavesQualifierValuesAlone(t *testing.T) {
	nq, err := Normalize(`"a b" OR c`, CombinatorOR)
	require.NoError(t, err)

	out := nq.Render([]string{"path:__PHRASE__0__PHRASE__"})
	assert.Equal(t, `"a b" OR c path:__PHRASE__0__PHRASE__`, out)
}
