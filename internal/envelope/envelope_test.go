package envelope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sammcj/mcp-code-research/internal/fallback"
	"github.com/sammcj/mcp-code-research/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hinted struct{ error }

func (hinted) Suggestions() []string { return []string{"did you mean react?"} }

func (h hinted) Unwrap() error { return h.error }

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestSuccess(t *testing.T) {
	result, err := Success([]string{"a"}, map[string]any{"command": "gh search code a"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Equal(t, []any{"a"}, resp.Data)
	assert.Equal(t, "gh search code a", resp.Meta["command"])
}

func TestDescribe(t *testing.T) {
	notFound := &executor.CommandError{Category: executor.CategoryNotFound, Message: "HTTP 404"}

	tests := []struct {
		name     string
		err      error
		category string
	}{
		{"validation", search.ErrEmptyQuery, CategoryValidation},
		{"wrapped command error", fmt.Errorf("searching: %w", &executor.CommandError{Category: executor.CategoryRateLimit}), "rate_limit"},
		{"exhausted confirmed", &fallback.BranchExhaustedError{RepoConfirmed: true, Attempted: []string{"main"}, Last: notFound}, CategoryBranchExhausted},
		{"exhausted unconfirmed", &fallback.BranchExhaustedError{Attempted: []string{"main"}, Last: notFound}, "not_found"},
		{"plain", errors.New("weird"), "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Describe(tt.err)
			assert.Equal(t, tt.category, resp.Category)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestFailure_IncludesSuggestions(t *testing.T) {
	result := Failure(hinted{&executor.CommandError{Category: executor.CategoryNotFound, Message: "E404"}})
	assert.True(t, result.IsError)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Equal(t, "not_found", resp.Category)
	assert.Equal(t, "did you mean react?", resp.Suggestions[0])
	assert.Greater(t, len(resp.Suggestions), 1)
}

func TestFromBatch_ClassifiesFailedItems(t *testing.T) {
	rateLimited := executor.NewCommandError(executor.FamilyGH, "gh search code x", "API rate limit exceeded for user", nil)
	batch := fallback.NewOrchestrator(nil).Run(context.Background(), []fallback.Query{
		{ID: "ok", Params: map[string]any{"query": "a"}},
		{ID: "limited", Params: map[string]any{"query": "b"}},
	}, func(_ context.Context, params map[string]any) (fallback.Outcome, error) {
		if params["query"] == "b" {
			return fallback.Outcome{}, rateLimited
		}
		return fallback.Outcome{Data: []string{"hit"}, Count: 1}, nil
	})

	result, err := FromBatch("github_search_code", batch, true)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var resp struct {
		Data fallback.Batch `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	require.Len(t, resp.Data.Results, 2)

	ok, limited := resp.Data.Results[0], resp.Data.Results[1]
	assert.Empty(t, ok.Category)
	assert.Empty(t, ok.Suggestions)
	assert.Equal(t, "rate_limit", limited.Category)
	assert.Equal(t, executor.Suggestions(executor.CategoryRateLimit), limited.Suggestions)
	assert.Equal(t, 1, resp.Data.Summary.Successful)
}

func TestFromBatch_BranchExhaustionInBatch(t *testing.T) {
	exhausted := &fallback.BranchExhaustedError{
		RepoConfirmed: true,
		Attempted:     []string{"main", "master"},
		Last:          &executor.CommandError{Category: executor.CategoryNotFound, Message: "HTTP 404"},
	}
	batch := &fallback.Batch{Results: []fallback.QueryResult{{ID: "q", Error: exhausted.Error(), Err: exhausted}}}

	result, err := FromBatch("github_view_repo_structure", batch, true)
	require.NoError(t, err)

	var resp struct {
		Data fallback.Batch `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Equal(t, CategoryBranchExhausted, resp.Data.Results[0].Category)
	assert.Equal(t, []string{"main", "master"}, resp.Data.Results[0].Attempted)
}
