package search

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MaxQueryLength is the longest query text GitHub search accepts
const MaxQueryLength = 256

// ErrValidation matches every *ValidationError via errors.Is
var ErrValidation = errors.New("validation error")

// ErrEmptyQuery is returned when a query is required but blank
var ErrEmptyQuery = &ValidationError{Field: "query", Message: "query must not be empty"}

// ValidationError reports a request that was rejected before any command ran
type ValidationError struct {
	Field       string
	Message     string
	Suggestions []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for all validation errors
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	rangePattern    = regexp.MustCompile(`^(?:(?:>=|<=|>|<)?\d+|(?:\d+|\*)\.\.(?:\d+|\*))$`)
	dateTerm        = `\d{4}-\d{2}-\d{2}(?:T\d{2}:\d{2}(?::\d{2})?(?:Z|[+-]\d{2}:\d{2})?)?`
	datePattern     = regexp.MustCompile(`^(?:(?:>=|<=|>|<)?` + dateTerm + `|(?:` + dateTerm + `|\*)\.\.(?:` + dateTerm + `|\*))$`)
	dateOnly        = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	lowerOperator   = regexp.MustCompile(`(^|\s)(and|or|not)(\s|$)`)
	ownerPattern    = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)
	repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// ValidateQueryText checks free text before normalisation
func ValidateQueryText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyQuery
	}
	if len(trimmed) > MaxQueryLength {
		return &ValidationError{
			Field:       "query",
			Message:     fmt.Sprintf("query is %d characters, the maximum is %d", len(trimmed), MaxQueryLength),
			Suggestions: []string{"Move constraints into filter parameters instead of the query text"},
		}
	}
	if strings.Count(trimmed, `"`)%2 != 0 {
		return &ValidationError{
			Field:       "query",
			Message:     "unmatched quote in query",
			Suggestions: []string{`Close the phrase with a matching " or remove the stray quote`},
		}
	}

	outside := phrasePattern.ReplaceAllString(trimmed, " ")
	if m := lowerOperator.FindStringSubmatch(outside); m != nil {
		return &ValidationError{
			Field:   "query",
			Message: fmt.Sprintf("boolean operator %q must be uppercase", m[2]),
			Suggestions: []string{
				fmt.Sprintf("Use %s for boolean logic", strings.ToUpper(m[2])),
				fmt.Sprintf(`Quote the phrase if %q is part of the text you are searching for`, m[2]),
			},
		}
	}
	return nil
}

// ValidateRange checks numeric comparison and range syntax such as >100 or 10..50
func ValidateRange(field, value string) error {
	if !rangePattern.MatchString(value) || value == "*..*" {
		return &ValidationError{
			Field:       field,
			Message:     fmt.Sprintf("%q is not a valid numeric range", value),
			Suggestions: []string{"Use forms like 100, >100, >=10, <50 or 10..50"},
		}
	}
	return nil
}

// ValidateDate checks date comparison and range syntax such as >2024-01-01
func ValidateDate(field, value string) error {
	bad := &ValidationError{
		Field:       field,
		Message:     fmt.Sprintf("%q is not a valid date or date range", value),
		Suggestions: []string{"Use YYYY-MM-DD with an optional >, >=, <, <= prefix, or start..end"},
	}
	if !datePattern.MatchString(value) || value == "*..*" {
		return bad
	}
	for _, d := range dateOnly.FindAllString(value, -1) {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return bad
		}
	}
	return nil
}

func validateOwner(value string) error {
	if !ownerPattern.MatchString(value) {
		return newValidationError("owner", "%q is not a valid user or organisation name", value)
	}
	return nil
}

func validateRepo(value string) error {
	owner, name, qualified := strings.Cut(value, "/")
	if qualified {
		if err := validateOwner(owner); err != nil {
			return newValidationError("repo", "%q has an invalid owner segment", value)
		}
	} else {
		name = owner
	}
	if !repoNamePattern.MatchString(name) {
		return newValidationError("repo", "%q is not a valid repository name", value)
	}
	return nil
}

// queryText resolves the mutually exclusive query, query_terms and exact_query parameters
func queryText(params Params) (string, error) {
	query, err := stringParam(params, "query")
	if err != nil {
		return "", err
	}
	terms, err := stringsParam(params, "query_terms")
	if err != nil {
		return "", err
	}
	exact, err := stringParam(params, "exact_query")
	if err != nil {
		return "", err
	}

	if query != "" && len(terms) > 0 {
		return "", newValidationError("query", "query and query_terms are mutually exclusive")
	}
	if exact != "" && (query != "" || len(terms) > 0) {
		return "", newValidationError("exact_query", "exact_query cannot be combined with query or query_terms")
	}

	switch {
	case exact != "":
		if strings.Contains(exact, `"`) {
			return "", newValidationError("exact_query", "exact_query must not contain quotes")
		}
		return `"` + strings.TrimSpace(exact) + `"`, nil
	case len(terms) > 0:
		quoted := make([]string, 0, len(terms))
		for _, term := range terms {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			if strings.ContainsAny(term, " \t") && !strings.HasPrefix(term, `"`) {
				term = `"` + term + `"`
			}
			quoted = append(quoted, term)
		}
		return strings.Join(quoted, " "), nil
	default:
		return strings.TrimSpace(query), nil
	}
}

// validateFilters checks every declared filter present in params
func validateFilters(family *Family, params Params) error {
	for _, f := range family.Filters {
		raw, ok := params[f.Key]
		if !ok || raw == nil {
			continue
		}
		values, isArray, err := toStrings(raw)
		if err != nil {
			return newValidationError(f.Key, "%v", err)
		}
		if isArray && f.Array == ArrayReject {
			return newValidationError(f.Key, "accepts a single value, got %d", len(values))
		}

		for _, v := range values {
			switch f.Kind {
			case KindRange:
				if err := ValidateRange(f.Key, v); err != nil {
					return err
				}
			case KindDate:
				if err := ValidateDate(f.Key, v); err != nil {
					return err
				}
			case KindEnum:
				if !slices.Contains(f.Enum, v) {
					return &ValidationError{
						Field:       f.Key,
						Message:     fmt.Sprintf("%q is not one of %s", v, strings.Join(f.Enum, ", ")),
						Suggestions: []string{"Valid values: " + strings.Join(f.Enum, ", ")},
					}
				}
			case KindBoolPresence, KindBoolExplicit:
				if _, err := strconv.ParseBool(v); err != nil {
					return newValidationError(f.Key, "%q is not a boolean", v)
				}
			}
		}
	}
	return nil
}

// validateOptions checks sort, order and limit
func validateOptions(family *Family, params Params) error {
	sort, err := stringParam(params, "sort")
	if err != nil {
		return err
	}
	if sort != "" && !slices.Contains(family.Sorts, sort) {
		if len(family.Sorts) == 0 {
			return newValidationError("sort", "%s search does not support sorting", family.Name)
		}
		return &ValidationError{
			Field:       "sort",
			Message:     fmt.Sprintf("%q is not a supported sort", sort),
			Suggestions: []string{"Valid values: " + strings.Join(family.Sorts, ", ")},
		}
	}

	order, err := stringParam(params, "order")
	if err != nil {
		return err
	}
	if order != "" && order != "asc" && order != "desc" {
		return newValidationError("order", "%q must be asc or desc", order)
	}

	if n, ok, err := intParam(params, "limit"); err != nil {
		return err
	} else if ok && (n < 1 || n > 100) {
		return newValidationError("limit", "must be between 1 and 100, got %d", n)
	}
	if n, ok, err := intParam(params, "page"); err != nil {
		return err
	} else if ok && (n < 1 || n > 10) {
		return newValidationError("page", "must be between 1 and 10, got %d", n)
	}
	return nil
}
