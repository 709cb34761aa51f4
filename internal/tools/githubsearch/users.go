package githubsearch

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/registry"
	"github.com/sammcj/mcp-code-research/internal/search"
	"github.com/sirupsen/logrus"
)

// UserSearchTool searches users and organisations. It must be enabled with ENABLE_ADDITIONAL_TOOLS.
type UserSearchTool struct{}

var userSearcher = &searcher{tool: "github_search_users", family: search.Users, shape: shapeUsers}

func init() {
	registry.Register(&UserSearchTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *UserSearchTool) Definition() mcp.Tool {
	return newTool(userSearcher.tool,
		`Search GitHub users and organisations by name, location, language or popularity. Returns login, type and profile url.`,
		queryOptions(false),
		[]mcp.ToolOption{
			mcp.WithString("type", mcp.Description("Account type"), mcp.Enum("user", "org")),
			mcp.WithString("location", mcp.Description("Location in the profile")),
			mcp.WithString("language", mcp.Description("Language of the account's repositories")),
			mcp.WithString("followers", mcp.Description("Followers: >100, 10..50")),
			mcp.WithString("repos", mcp.Description("Public repositories: >10")),
			mcp.WithString("created", mcp.Description("Account creation date, comparison or range")),
		},
		resultOptions(search.Users.Sorts, true),
		batchOptions(),
		readOnlyAnnotations(),
	)
}

// Execute executes the tool's logic
func (t *UserSearchTool) Execute(ctx context.Context, logger *logrus.Logger, cache *cache.Cache, args map[string]any) (*mcp.CallToolResult, error) {
	return userSearcher.execute(ctx, logger, cache, args)
}
