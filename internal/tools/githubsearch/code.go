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

// CodeSearchTool searches file contents across GitHub
type CodeSearchTool struct{}

var codeSearcher = &searcher{tool: "github_search_code", family: search.Code, shape: shapeCode}

func init() {
	registry.Register(&CodeSearchTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *CodeSearchTool) Definition() mcp.Tool {
	return newTool(codeSearcher.tool,
		`Search code across GitHub with gh search code. Multiple terms without operators match ANY term (OR). Returns repository, path, url and matching fragments.`,
		queryOptions(true),
		ownerOptions(true),
		[]mcp.ToolOption{
			mcp.WithString("language", mcp.Description("Programming language, e.g. go, typescript")),
			mcp.WithString("extension", mcp.Description("File extension without the dot")),
			mcp.WithString("filename", mcp.Description("File name")),
			mcp.WithString("path", mcp.Description("Path prefix within the repository (always sent as a path: qualifier)")),
			mcp.WithString("size", mcp.Description("File size in KB: 100, >100, <=50, 10..20")),
			mcp.WithArray("match",
				mcp.Description("Restrict matching to file contents and/or path"),
				mcp.WithStringItems(mcp.Enum("file", "path")),
			),
			mcp.WithString("visibility", mcp.Description("Repository visibility"), mcp.Enum("public", "private", "internal")),
		},
		resultOptions(nil, false),
		batchOptions(),
		readOnlyAnnotations(),
	)
}

// Execute executes the tool's logic
func (t *CodeSearchTool) Execute(ctx context.Context, logger *logrus.Logger, cache *cache.Cache, args map[string]any) (*mcp.CallToolResult, error) {
	return codeSearcher.execute(ctx, logger, cache, args)
}

// ProvideExtendedInfo provides detailed usage information for the code search tool
func (t *CodeSearchTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Find React hooks in one organisation's TypeScript code",
				Arguments: map[string]any{
					"query_terms": []string{"useState", "hook"},
					"owner":       "facebook",
					"language":    "typescript",
				},
				ExpectedResult: "Runs gh search code \"useState OR hook\" --owner=facebook --language=typescript",
			},
			{
				Description: "Search two repositories of two owners at once",
				Arguments: map[string]any{
					"query": "retry policy",
					"owner": []string{"octo", "acme"},
					"repo":  []string{"api", "web"},
				},
				ExpectedResult: "Searches octo/api, octo/web, acme/api and acme/web",
			},
			{
				Description: "Retry without the language filter if nothing matches",
				Arguments: map[string]any{
					"query":           "parseConfig",
					"language":        "rust",
					"fallback_params": map[string]any{"language": nil, "extension": "rs"},
				},
			},
		},
		CommonPatterns: []string{
			"Use exact_query for identifiers containing spaces or punctuation",
			"Boolean queries (AND, OR, NOT) move filters into the query text as qualifiers",
			"Batch related lookups with queries to share one tool call",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "invalid query: lowercase operator",
				Solution: "Boolean operators must be uppercase: AND, OR, NOT",
			},
			{
				Problem:  "Zero results with many filters",
				Solution: "Add fallback_params that drop the narrowest filter, or use fewer terms since OR matching is already broad",
			},
			{
				Problem:  "Authentication required",
				Solution: "Code search needs an authenticated gh session: run gh auth login or set GITHUB_TOKEN",
			},
		},
		ParameterDetails: map[string]string{
			"repo":  "Each repo without a slash is combined with every owner. owner: [a, b] and repo: [x] searches a/x and b/x",
			"match": "file searches contents, path searches file paths",
			"size":  "Kilobytes, with optional comparison or range",
		},
		WhenToUse:    "Finding implementations, usages or examples of a symbol across repositories",
		WhenNotToUse: "Listing files in a known repository; use github_view_repo_structure",
	}
}
