package registry

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTool struct {
	name string
	help bool
}

func (m *mockTool) Definition() mcp.Tool {
	return mcp.NewTool(m.name, mcp.WithDescription("mock"))
}

func (m *mockTool) Execute(_ context.Context, _ *logrus.Logger, _ *cache.Cache, _ map[string]any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("ok"), nil
}

type helpfulTool struct{ mockTool }

func (h *helpfulTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{WhenToUse: "always"}
}

func reset(t *testing.T) {
	t.Helper()
	toolRegistry = make(map[string]tools.Tool)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	Init(logger, cache.NewCache(time.Minute))
}

func TestInit_SharesCache(t *testing.T) {
	reset(t)
	assert.NotNil(t, GetLogger())
	assert.NotNil(t, GetCache())

	Init(GetLogger(), nil)
	assert.Nil(t, GetCache())
}

func TestRegisterAndGetTool(t *testing.T) {
	reset(t)
	Register(&mockTool{name: "github_search_code"})

	tool, ok := GetTool("github_search_code")
	require.True(t, ok)
	assert.Equal(t, "github_search_code", tool.Definition().Name)

	_, ok = GetTool("missing")
	assert.False(t, ok)
}

func TestDisabledTools(t *testing.T) {
	t.Setenv(DisabledToolsEnvVar, "github_search_repos, npm_package_search")
	reset(t)

	Register(&mockTool{name: "github_search_repos"})
	Register(&mockTool{name: "github_search_code"})

	_, ok := GetTool("github_search_repos")
	assert.False(t, ok)
	assert.Equal(t, []string{"github_search_code"}, GetEnabledToolNames())
}

func TestAdditionalToolsRequireEnablement(t *testing.T) {
	t.Setenv(EnableAdditionalToolsEnvVar, "")
	reset(t)
	Register(&mockTool{name: "github_search_users"})
	_, ok := GetTool("github_search_users")
	assert.False(t, ok)

	t.Setenv(EnableAdditionalToolsEnvVar, "github-search-users")
	reset(t)
	Register(&mockTool{name: "github_search_users"})
	_, ok = GetTool("github_search_users")
	assert.True(t, ok)

	t.Setenv(EnableAdditionalToolsEnvVar, "ALL")
	assert.True(t, ShouldRegisterTool("github_search_users"))
}

func TestDisableWinsOverEnable(t *testing.T) {
	t.Setenv(EnableAdditionalToolsEnvVar, "all")
	t.Setenv(DisabledToolsEnvVar, "github_search_users")
	reset(t)

	assert.False(t, ShouldRegisterTool("github_search_users"))
}

func TestGetToolNamesWithExtendedHelp(t *testing.T) {
	reset(t)
	Register(&mockTool{name: "plain"})
	Register(&helpfulTool{mockTool{name: "helpful"}})

	assert.Equal(t, []string{"helpful"}, GetToolNamesWithExtendedHelp())
}

func BenchmarkShouldRegisterTool(b *testing.B) {
	Init(nil, nil)
	names := []string{"github_search_code", "github_search_users", "npm_package_search"}

	b.ReportAllocs()
	for b.Loop() {
		for _, name := range names {
			_ = ShouldRegisterTool(name)
		}
	}
}
