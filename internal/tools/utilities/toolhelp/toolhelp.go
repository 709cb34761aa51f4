package toolhelp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/envelope"
	"github.com/sammcj/mcp-code-research/internal/registry"
	"github.com/sammcj/mcp-code-research/internal/search"
	"github.com/sammcj/mcp-code-research/internal/tools"
	"github.com/sirupsen/logrus"
)

const toolName = "get_tool_help"

// ToolHelpTool returns usage examples and troubleshooting for the research tools
type ToolHelpTool struct{}

func init() {
	registry.Register(&ToolHelpTool{})
}

// Response is the help payload for a single tool
type Response struct {
	ToolName    string              `json:"tool_name"`
	Description string              `json:"description"`
	InputSchema mcp.ToolInputSchema `json:"input_schema"`
	Extended    *tools.ExtendedHelp `json:"extended_info,omitempty"`
}

// Definition returns the tool's definition for MCP registration
func (t *ToolHelpTool) Definition() mcp.Tool {
	names := registry.GetToolNamesWithExtendedHelp()

	description := "Get detailed usage examples and troubleshooting for the code research tools when a search returns an unexpected error or no results."
	if len(names) == 0 {
		description = "No tools currently provide extended help information."
	}

	return mcp.NewTool(
		toolName,
		mcp.WithDescription(description),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool to get help for"),
			mcp.Enum(names...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute executes the get_tool_help tool
func (t *ToolHelpTool) Execute(ctx context.Context, logger *logrus.Logger, cache *cache.Cache, args map[string]any) (*mcp.CallToolResult, error) {
	name, ok := args["tool_name"].(string)
	if !ok || name == "" {
		return envelope.Failure(&search.ValidationError{Field: "tool_name", Message: "missing or invalid required parameter"}), nil
	}

	tool, exists := registry.GetTool(name)
	provider, hasHelp := tool.(tools.ExtendedHelpProvider)
	if !exists || !hasHelp {
		logger.WithField("tool_name", name).Debug("Help requested for unknown tool")
		return envelope.Failure(unknownTool(name)), nil
	}

	definition := tool.Definition()
	return envelope.Success(Response{
		ToolName:    definition.Name,
		Description: definition.Description,
		InputSchema: definition.InputSchema,
		Extended:    provider.ProvideExtendedInfo(),
	}, nil)
}

// unknownTool suggests the closest tool names that do provide help
func unknownTool(name string) error {
	available := registry.GetToolNamesWithExtendedHelp()

	var suggestions []string
	for _, match := range fuzzy.Find(name, available) {
		suggestions = append(suggestions, fmt.Sprintf("Did you mean %q?", match.Str))
	}
	if len(suggestions) == 0 && len(available) > 0 {
		suggestions = append(suggestions, fmt.Sprintf("Tools with extended help: %v", available))
	}

	return &search.ValidationError{
		Field:       "tool_name",
		Message:     fmt.Sprintf("tool '%s' not found, disabled, or does not provide extended help", name),
		Suggestions: suggestions,
	}
}
