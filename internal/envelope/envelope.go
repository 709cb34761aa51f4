package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sammcj/mcp-code-research/internal/fallback"
	"github.com/sammcj/mcp-code-research/internal/search"
)

// Categories that do not come from the command executor
const (
	CategoryValidation      = "validation"
	CategoryBranchExhausted = "branch_exhausted"
)

// Response is the success payload returned to the caller
type Response struct {
	Data any            `json:"data"`
	Meta map[string]any `json:"meta,omitempty"`
}

// ErrorResponse is the failure payload returned to the caller
type ErrorResponse struct {
	Error       string   `json:"error"`
	Category    string   `json:"category"`
	Suggestions []string `json:"suggestions,omitempty"`
	Attempted   []string `json:"attempted_branches,omitempty"`
}

// Suggester is implemented by errors that carry their own hints
type Suggester interface {
	Suggestions() []string
}

// Success wraps data and optional metadata as a JSON tool result
func Success(data any, meta map[string]any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(Response{Data: data, Meta: meta}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// Failure wraps a classified error as a tool error result
func Failure(err error) *mcp.CallToolResult {
	resp := Describe(err)
	jsonBytes, marshalErr := json.MarshalIndent(resp, "", "  ")
	if marshalErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(jsonBytes))
}

// Describe classifies err without re-classifying an existing category
func Describe(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}

	var vErr *search.ValidationError
	var exhausted *fallback.BranchExhaustedError
	switch {
	case errors.As(err, &vErr):
		resp.Category = CategoryValidation
		resp.Suggestions = vErr.Suggestions
	case errors.As(err, &exhausted) && exhausted.RepoConfirmed:
		resp.Category = CategoryBranchExhausted
		resp.Attempted = exhausted.Attempted
		resp.Suggestions = []string{
			"Check the path exists; it may have been moved or renamed",
			"Pass the branch explicitly if the content lives on a non-standard branch",
		}
	case errors.As(err, &exhausted):
		resp.Category = string(executor.CategoryNotFound)
		resp.Attempted = exhausted.Attempted
		resp.Suggestions = executor.Suggestions(executor.CategoryNotFound)
	default:
		category := executor.CategoryOf(err)
		resp.Category = string(category)
		resp.Suggestions = executor.Suggestions(category)
	}

	var s Suggester
	if errors.As(err, &s) {
		resp.Suggestions = append(s.Suggestions(), resp.Suggestions...)
	}
	return resp
}

// FromBatch answers a tool call that ran through the bulk orchestrator. A
// batch request returns the whole batch with each failed item classified; a
// single request returns its result directly, or its failure.
func FromBatch(tool string, batch *fallback.Batch, isBatch bool) (*mcp.CallToolResult, error) {
	if isBatch || len(batch.Results) != 1 {
		for i := range batch.Results {
			if err := batch.Results[i].Err; err != nil {
				resp := Describe(err)
				batch.Results[i].Category = resp.Category
				batch.Results[i].Suggestions = resp.Suggestions
				batch.Results[i].Attempted = resp.Attempted
			}
		}
		return Success(batch, map[string]any{"tool": tool})
	}

	result := batch.Results[0]
	if result.Err != nil {
		return Failure(result.Err), nil
	}

	meta := map[string]any{
		"tool":               tool,
		"count":              result.Count,
		"fallback_triggered": result.FallbackTriggered,
	}
	if result.FallbackTriggered {
		meta["fallback_request"] = result.FallbackRequest
	}
	if result.FallbackError != "" {
		meta["fallback_error"] = result.FallbackError
	}
	return Success(result.Result, meta)
}
