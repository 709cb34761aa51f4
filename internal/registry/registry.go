package registry

import (
	"os"
	"sort"
	"strings"

	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/tools"
	"github.com/sirupsen/logrus"
)

const (
	// DisabledToolsEnvVar lists tools to skip, comma separated
	DisabledToolsEnvVar = "DISABLED_TOOLS"
	// EnableAdditionalToolsEnvVar lists opt-in tools to register, or "all"
	EnableAdditionalToolsEnvVar = "ENABLE_ADDITIONAL_TOOLS"
)

var (
	// toolRegistry is a map of tool names to tool implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is a set of tool names to disable
	disabledTools = make(map[string]bool)

	// logger is the shared logger instance
	logger *logrus.Logger

	// responseCache is shared by every tool; nil when caching is disabled
	responseCache *cache.Cache
)

// additionalTools are registered only when named in ENABLE_ADDITIONAL_TOOLS.
// User search is opt-in as it surfaces personal profile data.
var additionalTools = []string{
	"github_search_users",
}

// Init initialises the registry and shared resources
func Init(l *logrus.Logger, c *cache.Cache) {
	logger = l
	responseCache = c

	parseDisabledTools()
}

// parseDisabledTools parses the DISABLED_TOOLS environment variable
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	disabledEnv := os.Getenv(DisabledToolsEnvVar)
	if disabledEnv == "" {
		return
	}

	for tool := range strings.SplitSeq(disabledEnv, ",") {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			continue
		}
		disabledTools[tool] = true
		if logger != nil {
			logger.WithField("tool", tool).Debug("Tool disabled")
		}
	}

	if logger != nil {
		logger.WithField("count", len(disabledTools)).Debug("Parsed disabled tools from environment")
	}
}

func normaliseName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
}

// requiresEnablement checks if a tool requires enablement via ENABLE_ADDITIONAL_TOOLS
func requiresEnablement(toolName string) bool {
	normalised := normaliseName(toolName)
	for _, tool := range additionalTools {
		if normaliseName(tool) == normalised {
			return true
		}
	}
	return false
}

// ShouldRegisterTool checks if a tool should be registered based on:
// 1. DISABLED_TOOLS - explicit disable, highest priority
// 2. Tool's enablement requirement
// 3. ENABLE_ADDITIONAL_TOOLS (explicit enable)
func ShouldRegisterTool(toolName string) bool {
	if disabledTools[toolName] {
		if logger != nil {
			logger.WithField("tool", toolName).Debug("Tool disabled via environment variable")
		}
		return false
	}

	if requiresEnablement(toolName) {
		enabled := isToolEnabled(toolName)
		if logger != nil {
			logger.WithFields(logrus.Fields{"tool": toolName, "enabled": enabled}).Debug("Tool requires enablement")
		}
		return enabled
	}

	return true
}

// Register adds a tool implementation to the registry if it should be registered
func Register(tool tools.Tool) {
	if toolRegistry == nil {
		toolRegistry = make(map[string]tools.Tool)
	}

	toolName := tool.Definition().Name
	if !ShouldRegisterTool(toolName) {
		if logger != nil {
			logger.WithField("tool", toolName).Debug("Tool not registered (disabled or requires enablement)")
		}
		return
	}

	toolRegistry[toolName] = tool
	if logger != nil {
		logger.WithField("tool", toolName).Debug("Tool successfully registered")
	}
}

// GetTool retrieves a tool by name, returns false if disabled
func GetTool(name string) (tools.Tool, bool) {
	if disabledTools[name] {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns all tools that are enabled for MCP server registration.
// Registration happens in package init, before Init has parsed the environment,
// so the filters are applied again here.
func GetEnabledTools() map[string]tools.Tool {
	filteredTools := make(map[string]tools.Tool)
	for name, tool := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		if requiresEnablement(name) && !isToolEnabled(name) {
			continue
		}
		filteredTools[name] = tool
	}
	return filteredTools
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	return logger
}

// GetCache returns the shared response cache, nil when caching is disabled
func GetCache() *cache.Cache {
	return responseCache
}

// GetEnabledToolNames returns a sorted list of enabled tool names
func GetEnabledToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range GetEnabledTools() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns a sorted list of enabled tool names that provide extended help
func GetToolNamesWithExtendedHelp() []string {
	var names []string
	for name, tool := range GetEnabledTools() {
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// isToolEnabled checks if a tool is enabled via the ENABLE_ADDITIONAL_TOOLS environment variable
func isToolEnabled(toolName string) bool {
	enabledTools := os.Getenv(EnableAdditionalToolsEnvVar)
	if enabledTools == "" {
		return false
	}

	if strings.TrimSpace(strings.ToLower(enabledTools)) == "all" {
		return true
	}

	normalised := normaliseName(toolName)
	for tool := range strings.SplitSeq(enabledTools, ",") {
		if normaliseName(tool) == normalised {
			return true
		}
	}
	return false
}
