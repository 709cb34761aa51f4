package githubsearch

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/registry"
	"github.com/sammcj/mcp-code-research/internal/search"
	"github.com/sammcj/mcp-code-research/internal/tools"
	"github.com/sirupsen/logrus"
)

// PullRequestSearchTool searches pull requests through the REST search API
type PullRequestSearchTool struct{}

var pullRequestSearcher = &searcher{tool: "github_search_pull_requests", family: search.PullRequests, shape: shapePullRequests}

func init() {
	registry.Register(&PullRequestSearchTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *PullRequestSearchTool) Definition() mcp.Tool {
	return newTool(pullRequestSearcher.tool,
		`Search GitHub pull requests. Multiple terms must ALL match (AND). Bodies are truncated. Use owner for an organisation, or owner and repo for specific repositories.`,
		queryOptions(false),
		ownerOptions(true),
		[]mcp.ToolOption{
			mcp.WithString("author", mcp.Description("Pull request author login")),
			mcp.WithString("assignee", mcp.Description("Assignee login")),
			mcp.WithString("mentions", mcp.Description("Login mentioned in the pull request")),
			mcp.WithString("commenter", mcp.Description("Login that commented")),
			mcp.WithString("involves", mcp.Description("Login involved in any way")),
			mcp.WithString("reviewed_by", mcp.Description("Reviewer login")),
			mcp.WithString("review_requested", mcp.Description("Login with a pending review request")),
			mcp.WithString("state", mcp.Description("Pull request state"), mcp.Enum("open", "closed")),
			mcp.WithBoolean("merged", mcp.Description("true for merged only, false for unmerged only")),
			mcp.WithBoolean("draft", mcp.Description("true for draft pull requests only")),
			mcp.WithArray("label", mcp.Description("Labels that must all be present"), mcp.WithStringItems()),
			mcp.WithString("base", mcp.Description("Base branch name")),
			mcp.WithString("head", mcp.Description("Head branch name")),
			mcp.WithString("language", mcp.Description("Repository language")),
			mcp.WithString("created", mcp.Description("Creation date, comparison or range")),
			mcp.WithString("updated", mcp.Description("Last update date, comparison or range")),
			mcp.WithString("closed", mcp.Description("Close date, comparison or range")),
			mcp.WithString("merged_at", mcp.Description("Merge date, comparison or range")),
			mcp.WithString("comments", mcp.Description("Number of comments: >10")),
			mcp.WithString("reactions", mcp.Description("Number of reactions: >10")),
			mcp.WithString("review", mcp.Description("Review status"), mcp.Enum("none", "required", "approved", "changes_requested")),
		},
		resultOptions(search.PullRequests.Sorts, true),
		batchOptions(),
		readOnlyAnnotations(),
	)
}

// Execute executes the tool's logic
func (t *PullRequestSearchTool) Execute(ctx context.Context, logger *logrus.Logger, cache *cache.Cache, args map[string]any) (*mcp.CallToolResult, error) {
	return pullRequestSearcher.execute(ctx, logger, cache, args)
}

// ProvideExtendedInfo provides detailed usage information for the pull request search tool
func (t *PullRequestSearchTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Merged bug fixes in a repository",
				Arguments: map[string]any{
					"query":  "bug fix",
					"owner":  "facebook",
					"repo":   "react",
					"merged": true,
				},
				ExpectedResult: "Searches q=bug fix is:merged repo:facebook/react type:pr",
			},
			{
				Description: "Open pull requests awaiting a review from a user",
				Arguments: map[string]any{
					"review_requested": "octocat",
					"state":            "open",
				},
			},
		},
		CommonPatterns: []string{
			"Combine author with merged_at ranges to review someone's recent work",
			"Use label with several values to require all of them",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "repo must be owner/name when no owner is given",
				Solution: "Pass repo as owner/name, or pass owner alongside repo",
			},
			{
				Problem:  "Results are capped at 1000",
				Solution: "The search API only returns the first 1000 matches; narrow with dates or use page",
			},
		},
		ParameterDetails: map[string]string{
			"owner":     "Sent as org: when no repo is given",
			"merged":    "Sent as is:merged or is:unmerged",
			"merged_at": "Sent as merged:<date>",
		},
		WhenToUse:    "Finding how and when a change was made, or who reviewed it",
		WhenNotToUse: "Reading a single known pull request in full",
	}
}
