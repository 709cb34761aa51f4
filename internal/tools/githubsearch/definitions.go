package githubsearch

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// queryOptions are the query text parameters shared by every search tool
func queryOptions(required bool) []mcp.ToolOption {
	hint := "Optional when at least one filter is given."
	if required {
		hint = "One of query, query_terms or exact_query is required."
	}
	return []mcp.ToolOption{
		mcp.WithString("query",
			mcp.Description("Search text. Quoted phrases are kept intact. Uppercase AND/OR/NOT enable boolean mode, in which filters are embedded as qualifiers. "+hint),
		),
		mcp.WithArray("query_terms",
			mcp.Description("Search terms combined with the tool's default operator. Terms containing spaces are searched as phrases."),
			mcp.WithStringItems(),
		),
		mcp.WithString("exact_query",
			mcp.Description("Text searched as a single exact phrase"),
		),
	}
}

// batchOptions add the bulk and fallback parameters
func batchOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithObject("fallback_params",
			mcp.Description("Parameters merged over this request and retried once if it fails or returns no results, e.g. {\"language\": null, \"query\": \"broader terms\"}. Null values keep the original."),
		),
		mcp.WithArray("queries",
			mcp.Description("Run up to 10 searches in one call. Each item takes the same parameters as a single search plus optional id and fallback_params. Top level search parameters are ignored when queries is set."),
			mcp.Items(map[string]any{"type": "object"}),
		),
	}
}

// ownerOptions are the ownership scope parameters
func ownerOptions(withRepo bool) []mcp.ToolOption {
	opts := []mcp.ToolOption{
		mcp.WithArray("owner",
			mcp.Description("Limit results to these users or organisations. A single string is also accepted."),
			mcp.WithStringItems(),
		),
	}
	if withRepo {
		opts = append(opts, mcp.WithArray("repo",
			mcp.Description("Limit results to these repositories, either owner/name or a name combined with each owner"),
			mcp.WithStringItems(),
		))
	}
	return opts
}

// resultOptions are sort, order, limit and, for REST backed searches, page
func resultOptions(sorts []string, paged bool) []mcp.ToolOption {
	var opts []mcp.ToolOption
	if len(sorts) > 0 {
		opts = append(opts,
			mcp.WithString("sort",
				mcp.Description("Sort field, best match when omitted"),
				mcp.Enum(sorts...),
			),
			mcp.WithString("order",
				mcp.Description("Sort order"),
				mcp.Enum("asc", "desc"),
			),
		)
	}
	opts = append(opts, mcp.WithNumber("limit",
		mcp.Description("Maximum results (1-100)"),
		mcp.Min(1),
		mcp.Max(100),
	))
	if paged {
		opts = append(opts, mcp.WithNumber("page",
			mcp.Description("Result page (1-10)"),
			mcp.Min(1),
			mcp.Max(10),
		))
	}
	return opts
}

// readOnlyAnnotations mark a tool that only queries external services
func readOnlyAnnotations() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	}
}

func newTool(name, description string, groups ...[]mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(description)}
	for _, g := range groups {
		opts = append(opts, g...)
	}
	return mcp.NewTool(name, opts...)
}
