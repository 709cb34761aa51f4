package githubapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/google/go-github/v73/github"
	"github.com/sammcj/mcp-code-research/internal/config"
	"github.com/sammcj/mcp-code-research/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const defaultHost = "github.com"

// AuthConfig holds the resolved GitHub credentials
type AuthConfig struct {
	Method string // "token" or "none"
	Token  string
	Source string
}

// GetAuthConfig resolves a token from the config first, then from the gh CLI's
// own credential store, falling back to unauthenticated access.
func GetAuthConfig(cfg *config.Config) *AuthConfig {
	if cfg != nil && cfg.GitHub.Token != "" {
		return &AuthConfig{Method: "token", Token: cfg.GitHub.Token, Source: "config"}
	}

	if token, source := auth.TokenForHost(defaultHost); token != "" {
		return &AuthConfig{Method: "token", Token: token, Source: source}
	}

	return &AuthConfig{Method: "none"}
}

// NewGitHubClient creates a GitHub REST client for the given credentials
func NewGitHubClient(ctx context.Context, authConfig *AuthConfig, logger *logrus.Logger) (*github.Client, error) {
	switch authConfig.Method {
	case "token":
		if authConfig.Token == "" {
			return nil, fmt.Errorf("GitHub token is required for token authentication")
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpclient.NewHTTPClient(30*time.Second, logger))
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: authConfig.Token},
		)
		return github.NewClient(oauth2.NewClient(ctx, ts)), nil

	case "none":
		// public repositories only
		return github.NewClient(httpclient.NewHTTPClient(30*time.Second, logger)), nil

	default:
		return nil, fmt.Errorf("unsupported authentication method: %s", authConfig.Method)
	}
}

// ValidateRepository parses a repository identifier.
// Supports owner/repo and https://github.com/owner/repo URLs, with or
// without a .git suffix or trailing path segments.
func ValidateRepository(repository string) (owner, repo string, err error) {
	repository = strings.TrimSpace(repository)
	if repository == "" {
		return "", "", fmt.Errorf("repository cannot be empty")
	}

	path := repository
	isURL := false
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "github.com/"} {
		if rest, ok := strings.CutPrefix(repository, prefix); ok {
			path = rest
			isURL = true
			break
		}
	}

	parts := splitPath(path)
	if len(parts) < 2 || (!isURL && len(parts) != 2) {
		if isURL {
			return "", "", fmt.Errorf("invalid GitHub URL format: %s", repository)
		}
		return "", "", fmt.Errorf("invalid repository format: %s (expected owner/repo or GitHub URL)", repository)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

func splitPath(path string) []string {
	var parts []string
	for part := range strings.SplitSeq(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// CleanPath strips leading and trailing slashes from a repository path
func CleanPath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}
