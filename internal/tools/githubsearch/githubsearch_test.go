package githubsearch

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/config"
	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(call int, args []string) ([]byte, error)
}

func (f *fakeExecutor) Execute(_ context.Context, family string, args []string, _ executor.Options) (*executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	n := len(f.calls)
	f.mu.Unlock()

	out, err := f.respond(n, args)
	if err != nil {
		return nil, err
	}
	return &executor.Result{Family: family, Command: strings.Join(args, " "), Output: out}, nil
}

func setup(t *testing.T, respond func(call int, args []string) ([]byte, error)) *fakeExecutor {
	t.Helper()
	fake := &fakeExecutor{respond: respond}
	config.Set(config.Default())
	executor.SetDefault(fake)
	t.Cleanup(func() { executor.SetDefault(nil) })
	return fake
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func decode(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

const codeHit = `[{
	"path": "src/hooks.ts",
	"url": "https://github.com/facebook/react/blob/abc/src/hooks.ts",
	"sha": "abc",
	"repository": {"nameWithOwner": "facebook/react", "isFork": false},
	"textMatches": [{"fragment": "export function useState() {}", "property": "content"}]
}]`

func TestCodeSearch_SingleQuery(t *testing.T) {
	fake := setup(t, func(int, []string) ([]byte, error) { return []byte(codeHit), nil })

	result, err := (&CodeSearchTool{}).Execute(context.Background(), testLogger(), nil, map[string]any{
		"query_terms": []any{"useState", "hook"},
		"owner":       "facebook",
		"language":    "typescript",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{
		"search", "code", "useState OR hook",
		"--owner=facebook", "--language=typescript",
		"--limit=30", "--json=path,repository,sha,textMatches,url",
	}, fake.calls[0])

	out := decode(t, result)
	data := out["data"].(map[string]any)
	items := data["items"].([]any)
	require.Len(t, items, 1)
	hit := items[0].(map[string]any)
	assert.Equal(t, "facebook/react", hit["repository"])
	assert.Equal(t, []any{"export function useState() {}"}, hit["fragments"])

	meta := out["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["count"])
	assert.Equal(t, false, meta["fallback_triggered"])
}

func TestCodeSearch_FallbackOnEmpty(t *testing.T) {
	fake := setup(t, func(call int, _ []string) ([]byte, error) {
		if call == 1 {
			return []byte(`[]`), nil
		}
		return []byte(codeHit), nil
	})

	result, err := (&CodeSearchTool{}).Execute(context.Background(), testLogger(), nil, map[string]any{
		"query":           "useState",
		"language":        "rust",
		"fallback_params": map[string]any{"language": "typescript", "owner": nil},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, fake.calls, 2)
	assert.Contains(t, fake.calls[0], "--language=rust")
	assert.Contains(t, fake.calls[1], "--language=typescript")

	meta := decode(t, result)["meta"].(map[string]any)
	assert.Equal(t, true, meta["fallback_triggered"])
	assert.Equal(t, float64(1), meta["count"])
	request := meta["fallback_request"].(map[string]any)
	assert.NotContains(t, request, "owner")
}

func TestCodeSearch_ValidationFailure(t *testing.T) {
	fake := setup(t, func(int, []string) ([]byte, error) { return []byte(`[]`), nil })

	result, err := (&CodeSearchTool{}).Execute(context.Background(), testLogger(), nil, map[string]any{
		"language": "go",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, fake.calls)

	out := decode(t, result)
	assert.Equal(t, "validation", out["category"])
}

func TestCodeSearch_CommandFailureIsClassified(t *testing.T) {
	setup(t, func(_ int, args []string) ([]byte, error) {
		return nil, executor.NewCommandError(executor.FamilyGH, strings.Join(args, " "),
			"To get started with GitHub CLI, please run: gh auth login", nil)
	})

	result, err := (&CodeSearchTool{}).Execute(context.Background(), testLogger(), nil, map[string]any{
		"query": "useState",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	out := decode(t, result)
	assert.Equal(t, "auth", out["category"])
	assert.NotEmpty(t, out["suggestions"])
}

func TestRepoSearch_Batch(t *testing.T) {
	fake := setup(t, func(int, []string) ([]byte, error) {
		return []byte(`[{
			"fullName": "spf13/cobra",
			"description": "A Commander for modern Go CLI interactions",
			"language": "Go",
			"stargazersCount": 40000,
			"license": {"key": "apache-2.0", "name": "Apache License 2.0"},
			"visibility": "PUBLIC",
			"createdAt": "2013-09-03T20:40:26Z",
			"pushedAt": "2024-05-01T10:00:00Z",
			"url": "https://github.com/spf13/cobra"
		}]`), nil
	})

	result, err := (&RepoSearchTool{}).Execute(context.Background(), testLogger(), nil, map[string]any{
		"queries": []any{
			map[string]any{"id": "cli", "query": "cli framework", "language": "go", "sort": "stars"},
			map[string]any{"id": "bad", "query": "cli and tui"},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"search", "repos", "cli framework", "--language=go", "--sort=stars", "--limit=30"}, fake.calls[0][:6])

	data := decode(t, result)["data"].(map[string]any)
	assert.NotEmpty(t, data["batch_id"])

	summary := data["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["total"])
	assert.Equal(t, float64(1), summary["successful"])
	assert.Equal(t, float64(1), summary["total_results"])

	results := data["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, "cli", first["id"])
	repo := first["result"].(map[string]any)["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "spf13/cobra", repo["name"])
	assert.Equal(t, "apache-2.0", repo["license"])
	assert.Equal(t, "public", repo["visibility"])
	assert.Equal(t, "2013-09-03", repo["created"])
	assert.Equal(t, "2024-05-01", repo["pushed"])

	second := results[1].(map[string]any)
	assert.Equal(t, "bad", second["id"])
	assert.Contains(t, second["error"], "operator")
}

func TestPullRequestSearch_REST(t *testing.T) {
	body := strings.Repeat("x", 700)
	fake := setup(t, func(int, []string) ([]byte, error) {
		return []byte(`{
			"total_count": 120,
			"items": [{
				"number": 42,
				"title": "Fix bug in reconciler",
				"body": "` + body + `",
				"state": "closed",
				"html_url": "https://github.com/facebook/react/pull/42",
				"repository_url": "https://api.github.com/repos/facebook/react",
				"user": {"login": "octocat"},
				"labels": [{"name": "bug"}],
				"created_at": "2024-01-02T03:04:05Z",
				"closed_at": "2024-01-05T00:00:00Z",
				"pull_request": {"merged_at": "2024-01-05T00:00:00Z"}
			}]
		}`), nil
	})

	result, err := (&PullRequestSearchTool{}).Execute(context.Background(), testLogger(), nil, map[string]any{
		"query":  "bug fix",
		"owner":  "facebook",
		"repo":   "react",
		"merged": true,
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"api", "search/issues?per_page=30&q=bug+fix+is%3Amerged+repo%3Afacebook%2Freact+type%3Apr"}, fake.calls[0])

	data := decode(t, result)["data"].(map[string]any)
	assert.Equal(t, float64(120), data["total_count"])
	pr := data["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "facebook/react", pr["repository"])
	assert.Equal(t, true, pr["merged"])
	assert.Equal(t, "2024-01-05", pr["merged_at"])
	assert.Equal(t, "octocat", pr["author"])
	assert.Equal(t, []any{"bug"}, pr["labels"])
	assert.Len(t, pr["body"], maxBodyLength+3)
}

func TestSearch_CachesShapedResults(t *testing.T) {
	fake := setup(t, func(int, []string) ([]byte, error) { return []byte(codeHit), nil })
	c := cache.NewCache(time.Minute)

	args := map[string]any{"query": "useState", "owner": "facebook"}
	for range 2 {
		result, err := (&CodeSearchTool{}).Execute(context.Background(), testLogger(), c, args)
		require.NoError(t, err)
		assert.False(t, result.IsError)
	}
	assert.Len(t, fake.calls, 1)
}

func TestSearch_ConfiguredDefaultLimit(t *testing.T) {
	fake := setup(t, func(int, []string) ([]byte, error) { return []byte(`[]`), nil })
	cfg := config.Default()
	cfg.Search.DefaultLimit = 5
	config.Set(cfg)

	_, err := (&CodeSearchTool{}).Execute(context.Background(), testLogger(), nil, map[string]any{"query": "x"})
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Contains(t, fake.calls[0], "--limit=5")

	_, err = (&CodeSearchTool{}).Execute(context.Background(), testLogger(), nil, map[string]any{"query": "x", "limit": float64(50)})
	require.NoError(t, err)
	assert.Contains(t, fake.calls[1], "--limit=50")
}

func TestDefinitions(t *testing.T) {
	for _, tool := range []interface{ Definition() mcp.Tool }{
		&CodeSearchTool{}, &RepoSearchTool{}, &PullRequestSearchTool{}, &UserSearchTool{},
	} {
		def := tool.Definition()
		assert.True(t, strings.HasPrefix(def.Name, "github_search_"))
		assert.Contains(t, def.InputSchema.Properties, "queries")
		assert.Contains(t, def.InputSchema.Properties, "fallback_params")
		require.NotNil(t, def.Annotations.ReadOnlyHint)
		assert.True(t, *def.Annotations.ReadOnlyHint)
	}
}
