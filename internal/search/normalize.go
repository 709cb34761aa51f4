package search

import (
	"regexp"
	"strconv"
	"strings"
)

// Combinator joins bare terms of a simple query
type Combinator int

const (
	// CombinatorAND leaves terms space separated, which GitHub treats as AND
	CombinatorAND Combinator = iota
	// CombinatorOR joins terms with explicit OR
	CombinatorOR
)

var (
	phrasePattern       = regexp.MustCompile(`"[^"]*"`)
	complexLogicPattern = regexp.MustCompile(`(?i)\b(AND|OR|NOT)\b`)
	qualifierPattern    = regexp.MustCompile(`^-?[A-Za-z][A-Za-z_-]*:\S+$`)
)

// NormalizedQuery is a query whose quoted phrases have been protected from
// rewriting. Render restores the phrases verbatim.
type NormalizedQuery struct {
	Raw             string
	HasComplexLogic bool
	ExactPhrases    []string
	// Terms are the bare words, with phrase placeholders in place of phrases
	Terms []string
	// Exclusions are -term tokens, kept out of the combinator join
	Exclusions []string
	// Qualifiers are key:value tokens typed by the caller
	Qualifiers []string

	body        string
	placeholder *regexp.Regexp
}

// Normalize extracts quoted phrases, classifies boolean logic on the raw text
// and, for simple queries with several terms and an OR combinator, joins the
// bare terms with OR.
func Normalize(raw string, combinator Combinator) (*NormalizedQuery, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}
	if strings.Count(trimmed, `"`)%2 != 0 {
		return nil, newValidationError("query", "unmatched quote in query")
	}

	nq := &NormalizedQuery{
		Raw:             raw,
		HasComplexLogic: hasComplexLogic(trimmed),
	}

	marker := phraseMarker(trimmed)
	nq.placeholder = regexp.MustCompile(regexp.QuoteMeta(marker) + `(\d+)` + regexp.QuoteMeta(marker))

	template := phrasePattern.ReplaceAllStringFunc(trimmed, func(phrase string) string {
		nq.ExactPhrases = append(nq.ExactPhrases, phrase)
		return marker + strconv.Itoa(len(nq.ExactPhrases)-1) + marker
	})

	tokens := strings.Fields(template)
	if nq.HasComplexLogic {
		nq.Terms = tokens
		nq.body = strings.Join(tokens, " ")
		return nq, nil
	}

	for _, tok := range tokens {
		switch {
		case qualifierPattern.MatchString(tok):
			nq.Qualifiers = append(nq.Qualifiers, tok)
		case len(tok) > 1 && tok[0] == '-':
			nq.Exclusions = append(nq.Exclusions, tok)
		default:
			nq.Terms = append(nq.Terms, tok)
		}
	}

	sep := " "
	if combinator == CombinatorOR && len(nq.Terms) > 1 {
		sep = " OR "
	}
	parts := make([]string, 0, 1+len(nq.Exclusions)+len(nq.Qualifiers))
	if len(nq.Terms) > 0 {
		parts = append(parts, strings.Join(nq.Terms, sep))
	}
	parts = append(parts, nq.Exclusions...)
	parts = append(parts, nq.Qualifiers...)
	nq.body = strings.Join(parts, " ")
	return nq, nil
}

// EffectiveQuery returns the rewritten query with phrases restored
func (nq *NormalizedQuery) EffectiveQuery() string {
	return nq.Render(nil)
}

// Render restores phrases in the rewritten query, then appends qualifiers.
// Qualifiers are appended verbatim so their values are never mistaken for
// phrase placeholders.
func (nq *NormalizedQuery) Render(qualifiers []string) string {
	parts := make([]string, 0, 1+len(qualifiers))
	if nq.body != "" {
		parts = append(parts, nq.restorePhrases(nq.body))
	}
	parts = append(parts, qualifiers...)
	return strings.Join(parts, " ")
}

func (nq *NormalizedQuery) restorePhrases(text string) string {
	return nq.placeholder.ReplaceAllStringFunc(text, func(m string) string {
		idx, err := strconv.Atoi(nq.placeholder.FindStringSubmatch(m)[1])
		if err != nil || idx >= len(nq.ExactPhrases) {
			return m
		}
		return nq.ExactPhrases[idx]
	})
}

// hasComplexLogic looks for boolean operators outside quoted phrases
func hasComplexLogic(text string) bool {
	return complexLogicPattern.MatchString(phrasePattern.ReplaceAllString(text, " "))
}

// phraseMarker picks a placeholder delimiter that cannot occur in the input
func phraseMarker(text string) string {
	marker := "__PHRASE__"
	for strings.Contains(text, marker) {
		marker = "_" + marker + "_"
	}
	return marker
}
