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

// RepoSearchTool searches repositories
type RepoSearchTool struct{}

var repoSearcher = &searcher{tool: "github_search_repos", family: search.Repos, shape: shapeRepos}

func init() {
	registry.Register(&RepoSearchTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *RepoSearchTool) Definition() mcp.Tool {
	return newTool(repoSearcher.tool,
		`Search GitHub repositories with gh search repos. Multiple terms must ALL match (AND). Query text is optional when a filter such as owner, topic or language is given.`,
		queryOptions(false),
		ownerOptions(false),
		[]mcp.ToolOption{
			mcp.WithString("language", mcp.Description("Primary language")),
			mcp.WithArray("topic", mcp.Description("Topics the repository must have"), mcp.WithStringItems()),
			mcp.WithString("stars", mcp.Description("Stars: 100, >1000, 10..50")),
			mcp.WithString("forks", mcp.Description("Forks: number, comparison or range")),
			mcp.WithString("size", mcp.Description("Repository size in KB")),
			mcp.WithString("created", mcp.Description("Creation date: 2024-01-01, >=2024-01-01, 2023-01-01..2023-12-31")),
			mcp.WithString("updated", mcp.Description("Last push date, same formats as created")),
			mcp.WithArray("license", mcp.Description("License keys, e.g. mit, apache-2.0"), mcp.WithStringItems()),
			mcp.WithString("visibility", mcp.Description("Repository visibility"), mcp.Enum("public", "private", "internal")),
			mcp.WithBoolean("archived", mcp.Description("true for only archived, false to exclude archived")),
			mcp.WithString("include_forks", mcp.Description("Whether forks are included"), mcp.Enum("false", "true", "only")),
			mcp.WithString("good_first_issues", mcp.Description("Number of good first issues: >5")),
			mcp.WithArray("match",
				mcp.Description("Fields the query text is matched against"),
				mcp.WithStringItems(mcp.Enum("name", "description", "readme")),
			),
		},
		resultOptions(search.Repos.Sorts, false),
		batchOptions(),
		readOnlyAnnotations(),
	)
}

// Execute executes the tool's logic
func (t *RepoSearchTool) Execute(ctx context.Context, logger *logrus.Logger, cache *cache.Cache, args map[string]any) (*mcp.CallToolResult, error) {
	return repoSearcher.execute(ctx, logger, cache, args)
}

// ProvideExtendedInfo provides detailed usage information for the repository search tool
func (t *RepoSearchTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Popular Go CLI libraries",
				Arguments: map[string]any{
					"query":    "cli framework",
					"language": "go",
					"stars":    ">1000",
					"sort":     "stars",
				},
				ExpectedResult: "Runs gh search repos \"cli framework\" --language=go --stars=>1000 --sort=stars",
			},
			{
				Description: "All active repositories of an organisation with a topic",
				Arguments: map[string]any{
					"owner":    "hashicorp",
					"topic":    []string{"terraform", "provider"},
					"archived": false,
				},
			},
		},
		CommonPatterns: []string{
			"Filters alone are enough, e.g. owner plus topic",
			"Use updated with a date range to find maintained projects",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "invalid created: expected a date",
				Solution: "Dates are YYYY-MM-DD, optionally with >, >=, <, <= or a .. range",
			},
			{
				Problem:  "provide a query or at least one filter",
				Solution: "Repository search needs query text or a filter to scope it",
			},
		},
		ParameterDetails: map[string]string{
			"updated":       "Matches the pushed: qualifier, the date of the last push",
			"include_forks": "only returns forks exclusively",
		},
		WhenToUse:    "Discovering projects by topic, language, popularity or owner",
		WhenNotToUse: "Searching inside files; use github_search_code",
	}
}
