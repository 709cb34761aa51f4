package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Category is a coarse classification of an external command failure
type Category string

const (
	CategoryAuth         Category = "auth"
	CategoryRateLimit    Category = "rate_limit"
	CategoryInvalidQuery Category = "invalid_query"
	CategoryNotFound     Category = "not_found"
	CategoryAccessDenied Category = "access_denied"
	CategoryTimeout      Category = "timeout"
	CategoryGeneric      Category = "generic"
)

// ErrBinaryNotFound is returned when the CLI for a command family is not installed
var ErrBinaryNotFound = errors.New("command binary not found in PATH")

// CommandError describes a failed external command
type CommandError struct {
	Family   string
	Command  string
	Category Category
	Message  string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s command failed (%s): %s", e.Family, e.Category, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError classifies message and wraps err
func NewCommandError(family, command, message string, err error) *CommandError {
	return &CommandError{
		Family:   family,
		Command:  command,
		Category: Classify(message),
		Message:  message,
		Err:      err,
	}
}

type classifier struct {
	category Category
	needles  []string
}

// Ordered: rate limit messages often also mention 403, auth messages mention 401
var classifiers = []classifier{
	{CategoryRateLimit, []string{"rate limit", "secondary rate", "abuse detection", "too many requests", "http 429"}},
	{CategoryAuth, []string{"gh auth login", "authentication", "bad credentials", "not logged in", "http 401", "requires authentication", "e401", "need auth"}},
	{CategoryTimeout, []string{"timed out", "timeout", "deadline exceeded"}},
	{CategoryInvalidQuery, []string{"validation failed", "http 422", "invalid search query", "invalid query", "cannot be searched", "unknown flag", "invalid argument", "einvalidtagname", "invalid package name"}},
	{CategoryNotFound, []string{"http 404", "not found", "could not resolve to a", "no commit found", "e404", "404"}},
	{CategoryAccessDenied, []string{"http 403", "forbidden", "resource not accessible", "permission denied", "must have push access", "e403"}},
}

// Classify maps a failure message onto a Category
func Classify(message string) Category {
	lower := strings.ToLower(message)
	for _, c := range classifiers {
		for _, needle := range c.needles {
			if strings.Contains(lower, needle) {
				return c.category
			}
		}
	}
	return CategoryGeneric
}

// CategoryOf returns the category carried by err, if any
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	return Classify(err.Error())
}

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// Suggestions returns remediation hints for a category
func Suggestions(c Category) []string {
	switch c {
	case CategoryAuth:
		return []string{
			"Run 'gh auth login' or set GITHUB_TOKEN",
			"Check the token has not expired and has the repo scope for private repositories",
		}
	case CategoryRateLimit:
		return []string{
			"Wait a minute before retrying; search requests are limited per minute",
			"Narrow the query with owner or repo filters to reduce the number of requests",
		}
	case CategoryInvalidQuery:
		return []string{
			"Check qualifier syntax such as language:go or stars:>100",
			"Use uppercase AND, OR, NOT for boolean logic and close every quote",
		}
	case CategoryNotFound:
		return []string{
			"Verify the owner, repository, branch or package name spelling",
			"Private repositories require an authenticated token with access",
		}
	case CategoryAccessDenied:
		return []string{
			"The token lacks permission for this resource",
			"Organisation repositories may require SSO authorisation of the token",
		}
	case CategoryTimeout:
		return []string{
			"Retry with a narrower query or a smaller limit",
			"Increase COMMAND_TIMEOUT if large responses are expected",
		}
	default:
		return []string{"Retry the request; if it keeps failing run the command manually to inspect the error"}
	}
}
