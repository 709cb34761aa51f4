package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"
)

// DefaultLimit is used when a request carries no limit
const DefaultLimit = 30

// BuiltCommand is a ready to run argument list for the gh family
type BuiltCommand struct {
	Family string
	Args   []string
	// Query is the final query text including embedded qualifiers
	Query   string
	Routing *Routing
	Limit   int
}

// String renders the command for logs and responses
func (b *BuiltCommand) String() string {
	return "gh " + strings.Join(b.Args, " ")
}

type restQuery struct {
	Q       string `url:"q"`
	Sort    string `url:"sort,omitempty"`
	Order   string `url:"order,omitempty"`
	PerPage int    `url:"per_page,omitempty"`
	Page    int    `url:"page,omitempty"`
}

// Build validates params and produces the gh arguments for family.
// CLI families render as: subcommand, query, filter flags, option flags,
// then the --json field list. A query starting with "-" goes after the flags
// behind a "--" separator. REST families render as a single gh api path.
func Build(family *Family, params Params) (*BuiltCommand, error) {
	if family.Ownership == nil {
		for _, key := range []string{"owner", "repo"} {
			if v, ok := params[key]; ok && v != nil {
				return nil, newValidationError(key, "%s is not supported for %s search", key, family.Name)
			}
		}
	}

	text, err := queryText(params)
	if err != nil {
		return nil, err
	}

	var nq *NormalizedQuery
	if text == "" {
		if family.QueryRequired {
			return nil, ErrEmptyQuery
		}
	} else {
		if err := ValidateQueryText(text); err != nil {
			return nil, err
		}
		if nq, err = Normalize(text, family.Combinator); err != nil {
			return nil, err
		}
	}

	if err := validateFilters(family, params); err != nil {
		return nil, err
	}
	if err := validateOptions(family, params); err != nil {
		return nil, err
	}

	routing, err := Route(family, nq, params)
	if err != nil {
		return nil, err
	}
	if nq == nil && len(routing.Decisions) == 0 {
		return nil, &ValidationError{
			Field:       "query",
			Message:     "provide a query or at least one filter",
			Suggestions: []string{"Add query text, or a filter such as owner or language"},
		}
	}

	qualifiers := routing.Qualifiers()
	if family.REST != nil {
		qualifiers = append(qualifiers, family.REST.Trailing...)
	}
	queryString := strings.Join(qualifiers, " ")
	if nq != nil {
		queryString = nq.Render(qualifiers)
	}
	if len(queryString) > MaxQueryLength {
		return nil, &ValidationError{
			Field:       "query",
			Message:     fmt.Sprintf("query with embedded filters is %d characters, the maximum is %d", len(queryString), MaxQueryLength),
			Suggestions: []string{"Remove boolean operators so filters can be sent as flags, or drop some filters"},
		}
	}

	limit, ok, _ := intParam(params, "limit")
	if !ok {
		limit = DefaultLimit
	}
	sort, _ := stringParam(params, "sort")
	order, _ := stringParam(params, "order")

	built := &BuiltCommand{
		Family:  family.Name,
		Query:   queryString,
		Routing: routing,
		Limit:   limit,
	}

	if family.REST != nil {
		page, _, _ := intParam(params, "page")
		values, err := query.Values(restQuery{
			Q:       queryString,
			Sort:    sort,
			Order:   order,
			PerPage: limit,
			Page:    page,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s query: %w", family.Name, err)
		}
		built.Args = append(append([]string{}, family.Command...), family.REST.Endpoint+"?"+values.Encode())
		return built, nil
	}

	flags := routing.Flags()
	if sort != "" {
		flags = append(flags, "--sort="+sort)
	}
	if order != "" {
		flags = append(flags, "--order="+order)
	}
	flags = append(flags, "--limit="+strconv.Itoa(limit))
	flags = append(flags, "--json="+strings.Join(family.JSONFields, ","))

	args := append([]string{}, family.Command...)
	switch {
	case queryString == "":
		args = append(args, flags...)
	case strings.HasPrefix(queryString, "-"):
		// gh would parse a leading exclusion as a flag; end flag parsing first
		args = append(args, flags...)
		args = append(args, "--", queryString)
	default:
		args = append(args, queryString)
		args = append(args, flags...)
	}
	built.Args = args
	return built, nil
}
