package npmsearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sammcj/mcp-code-research/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	familyRegistry = "npm-registry"
	// maxResponseSize caps registry documents, which can be large for packages with many versions
	maxResponseSize = 10 * 1024 * 1024
)

// HTTPClient is an interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimitedHTTPClient implements HTTPClient with rate limiting
type RateLimitedHTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewRateLimitedHTTPClient wraps client with a limiter allowing perSecond requests
func NewRateLimitedHTTPClient(client *http.Client, perSecond float64) *RateLimitedHTTPClient {
	if perSecond <= 0 {
		perSecond = 10
	}
	return &RateLimitedHTTPClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Do implements the HTTPClient interface with rate limiting
func (c *RateLimitedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

// registryClient reads package metadata from the npm registry HTTP API. It is
// used when the npm binary is not installed.
type registryClient struct {
	http    HTTPClient
	baseURL string
	logger  *logrus.Logger
}

func newRegistryClient(client HTTPClient, baseURL string, logger *logrus.Logger) *registryClient {
	return &registryClient{
		http:    client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// defaultHTTPClient builds the proxy aware, rate limited registry client
func defaultHTTPClient(perSecond float64, logger *logrus.Logger) HTTPClient {
	return NewRateLimitedHTTPClient(httpclient.NewHTTPClient(30*time.Second, logger), perSecond)
}

func (r *registryClient) view(ctx context.Context, name string) (*PackageInfo, error) {
	body, err := r.get(ctx, "/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}
	return parsePackage(body)
}

func (r *registryClient) search(ctx context.Context, text string, limit int) ([]SearchHit, error) {
	query := url.Values{
		"text": {text},
		"size": {strconv.Itoa(limit)},
	}
	body, err := r.get(ctx, "/-/v1/search?"+query.Encode())
	if err != nil {
		return nil, err
	}
	return parseRegistrySearch(body)
}

func (r *registryClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	reqURL := r.baseURL + endpoint
	command := "GET " + reqURL
	logger := r.logger.WithField("url", reqURL)
	logger.Debug("Making npm registry request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, executor.NewCommandError(familyRegistry, command, err.Error(), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.WithError(err).Debug("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.WithField("status_code", resp.StatusCode).Debug("Unexpected npm registry status")
		return nil, executor.NewCommandError(familyRegistry, command,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
