package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/go-github/v73/github"
	"github.com/sammcj/mcp-code-research/internal/config"
	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sammcj/mcp-code-research/internal/fallback"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const familyAPI = "github-api"

// Client lists repository contents through the GitHub REST API
type Client struct {
	client         *github.Client
	logger         *logrus.Logger
	coreAPILimiter *rate.Limiter
	mu             sync.Mutex
}

// NewClient creates a REST client using the configured credentials
func NewClient(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	authConfig := GetAuthConfig(cfg)
	client, err := NewGitHubClient(ctx, authConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	logger.WithField("auth_method", authConfig.Method).Debug("GitHub REST client created")
	return &Client{
		client:         client,
		logger:         logger,
		coreAPILimiter: newRateLimiter(cfg.GitHub.CoreAPIRateLimit),
	}, nil
}

// NewClientWithHTTP creates a client over an existing HTTP client
func NewClientWithHTTP(httpClient *http.Client, logger *logrus.Logger, perMinute int) *Client {
	return &Client{
		client:         github.NewClient(httpClient),
		logger:         logger,
		coreAPILimiter: newRateLimiter(perMinute),
	}
}

func newRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		perMinute = 80
	}
	return rate.NewLimiter(rate.Limit(perMinute)/60, 1) // Convert per-minute to per-second
}

// ListContents lists a directory at ref. A file path yields a single item.
func (c *Client) ListContents(ctx context.Context, owner, repo, path, ref string) ([]fallback.ContentItem, error) {
	if err := c.waitForCoreAPIRateLimit(ctx); err != nil {
		return nil, fmt.Errorf("core API rate limit wait failed: %w", err)
	}

	cleanPath := CleanPath(path)
	opts := &github.RepositoryContentGetOptions{Ref: ref}

	fileContent, directoryContents, _, err := c.client.Repositories.GetContents(ctx, owner, repo, cleanPath, opts)
	if err != nil {
		return nil, classifyError(fmt.Sprintf("GET repos/%s/%s/contents/%s?ref=%s", owner, repo, cleanPath, ref), err)
	}

	if fileContent != nil {
		return []fallback.ContentItem{toContentItem(fileContent)}, nil
	}

	items := make([]fallback.ContentItem, len(directoryContents))
	for i, item := range directoryContents {
		items[i] = toContentItem(item)
	}
	return items, nil
}

// DefaultBranch returns the repository's default branch
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	if err := c.waitForCoreAPIRateLimit(ctx); err != nil {
		return "", fmt.Errorf("core API rate limit wait failed: %w", err)
	}

	repository, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", classifyError(fmt.Sprintf("GET repos/%s/%s", owner, repo), err)
	}
	return repository.GetDefaultBranch(), nil
}

func toContentItem(item *github.RepositoryContent) fallback.ContentItem {
	return fallback.ContentItem{
		Name: item.GetName(),
		Path: item.GetPath(),
		Type: item.GetType(),
		Size: int64(item.GetSize()),
	}
}

// classifyError maps go-github errors onto the executor's categories
func classifyError(command string, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return &executor.CommandError{
			Family:   familyAPI,
			Command:  command,
			Category: executor.CategoryRateLimit,
			Message:  err.Error(),
			Err:      err,
		}
	case errors.As(err, &respErr) && respErr.Response != nil:
		message := fmt.Sprintf("HTTP %d: %s", respErr.Response.StatusCode, respErr.Message)
		return executor.NewCommandError(familyAPI, command, message, err)
	default:
		return executor.NewCommandError(familyAPI, command, err.Error(), err)
	}
}

// waitForCoreAPIRateLimit waits for core API rate limit before making a request
func (c *Client) waitForCoreAPIRateLimit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coreAPILimiter.Wait(ctx)
}
