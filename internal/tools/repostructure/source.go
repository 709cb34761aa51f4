package repostructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sammcj/mcp-code-research/internal/config"
	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sammcj/mcp-code-research/internal/fallback"
	"github.com/sammcj/mcp-code-research/internal/githubapi"
	"github.com/sirupsen/logrus"
)

// cliSource lists contents through gh api
type cliSource struct {
	exec executor.Executor
}

type contentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

func (s *cliSource) ListContents(ctx context.Context, owner, repo, path, ref string) ([]fallback.ContentItem, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	if ref != "" {
		endpoint += "?" + url.Values{"ref": {ref}}.Encode()
	}

	res, err := s.exec.Execute(ctx, executor.FamilyGH, []string{"api", endpoint}, executor.Options{})
	if err != nil {
		return nil, err
	}

	// a file path returns a single object rather than a listing
	trimmed := bytes.TrimSpace(res.Output)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var entry contentEntry
		if err := res.JSON(&entry); err != nil {
			return nil, err
		}
		return []fallback.ContentItem{toItem(entry)}, nil
	}

	var entries []contentEntry
	if err := res.JSON(&entries); err != nil {
		return nil, err
	}
	items := make([]fallback.ContentItem, len(entries))
	for i, entry := range entries {
		items[i] = toItem(entry)
	}
	return items, nil
}

func (s *cliSource) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	endpoint := fmt.Sprintf("repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
	res, err := s.exec.Execute(ctx, executor.FamilyGH, []string{"api", endpoint}, executor.Options{Cache: true})
	if err != nil {
		return "", err
	}

	var meta struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := res.JSON(&meta); err != nil {
		return "", err
	}
	if meta.DefaultBranch == "" {
		return "", fmt.Errorf("repository %s/%s reported no default branch", owner, repo)
	}
	return meta.DefaultBranch, nil
}

func toItem(e contentEntry) fallback.ContentItem {
	return fallback.ContentItem{Name: e.Name, Path: e.Path, Type: e.Type, Size: e.Size}
}

func escapePath(path string) string {
	path = githubapi.CleanPath(path)
	if path == "" {
		return ""
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

var (
	apiClient   *githubapi.Client
	apiClientMu sync.Mutex
)

// contentSource picks the backend named by GITHUB_STRUCTURE_BACKEND. The REST
// client is shared so its rate limiter spans calls.
func contentSource(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (fallback.ContentSource, error) {
	if cfg.GitHub.StructureBackend != config.BackendAPI {
		return &cliSource{exec: executor.Default()}, nil
	}

	apiClientMu.Lock()
	defer apiClientMu.Unlock()
	if apiClient == nil {
		client, err := githubapi.NewClient(context.WithoutCancel(ctx), cfg, logger)
		if err != nil {
			return nil, err
		}
		apiClient = client
	}
	return apiClient, nil
}
