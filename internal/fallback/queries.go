package fallback

import (
	"fmt"
	"maps"

	"github.com/sammcj/mcp-code-research/internal/search"
)

// MaxQueries bounds a single batch request
const MaxQueries = 10

// ParseQueries accepts either top level tool arguments, as a single query, or
// a "queries" array whose items may carry an id and fallback_params. The
// boolean reports whether the arguments were a batch.
func ParseQueries(args map[string]any) ([]Query, bool, error) {
	raw, ok := args["queries"]
	if !ok || raw == nil {
		q, err := parseQuery(args)
		if err != nil {
			return nil, false, err
		}
		return []Query{q}, false, nil
	}

	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, true, &search.ValidationError{Field: "queries", Message: "must be a non-empty array of query objects"}
	}
	if len(list) > MaxQueries {
		return nil, true, &search.ValidationError{
			Field:       "queries",
			Message:     fmt.Sprintf("at most %d queries per request, got %d", MaxQueries, len(list)),
			Suggestions: []string{"Split the batch into several requests"},
		}
	}

	queries := make([]Query, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, true, &search.ValidationError{Field: "queries", Message: fmt.Sprintf("item %d is not an object", i+1)}
		}
		q, err := parseQuery(m)
		if err != nil {
			return nil, true, err
		}
		queries = append(queries, q)
	}
	return queries, true, nil
}

func parseQuery(m map[string]any) (Query, error) {
	params := maps.Clone(m)
	if params == nil {
		params = map[string]any{}
	}
	delete(params, "queries")

	var q Query
	if id, ok := params["id"].(string); ok {
		q.ID = id
	}
	delete(params, "id")

	switch fb := params["fallback_params"].(type) {
	case nil:
	case map[string]any:
		q.FallbackParams = fb
	default:
		return q, &search.ValidationError{Field: "fallback_params", Message: "must be an object of parameters to override"}
	}
	delete(params, "fallback_params")

	q.Params = params
	return q, nil
}
