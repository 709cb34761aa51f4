package npmsearch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/config"
	"github.com/sammcj/mcp-code-research/internal/envelope"
	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sammcj/mcp-code-research/internal/fallback"
	"github.com/sammcj/mcp-code-research/internal/registry"
	"github.com/sammcj/mcp-code-research/internal/search"
	"github.com/sammcj/mcp-code-research/internal/tools"
	"github.com/sirupsen/logrus"
)

const (
	toolName = "npm_package_search"

	defaultSearchLimit = 20
	maxSearchLimit     = 250
	maxSuggestions     = 3
)

var packageNamePattern = regexp.MustCompile(`^(?:@[a-z0-9-~][a-z0-9-._~]*/)?[a-z0-9-~][a-z0-9-._~]*$`)

// PackageSearchTool looks up npm packages by exact name or searches by keyword
type PackageSearchTool struct {
	client     HTTPClient
	clientOnce sync.Once
}

func init() {
	registry.Register(&PackageSearchTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *PackageSearchTool) Definition() mcp.Tool {
	return mcp.NewTool(
		toolName,
		mcp.WithDescription(`Look up an npm package by exact name (latest version, license, repository, dist-tags) or search packages by keyword. Unknown names return close matches.`),
		mcp.WithString("name",
			mcp.Description("Exact package name, e.g. react or @types/node"),
		),
		mcp.WithString("query",
			mcp.Description("Keywords to search for when the exact name is unknown"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum search results (1-250, default 20)"),
			mcp.Min(1),
			mcp.Max(maxSearchLimit),
		),
		mcp.WithObject("fallback_params",
			mcp.Description("Parameters merged over this request and retried once if it fails or finds nothing, e.g. {\"name\": null, \"query\": \"date picker\"}"),
		),
		mcp.WithArray("queries",
			mcp.Description("Run up to 10 lookups in one call. Each item takes name or query plus optional id and fallback_params."),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// Execute executes the tool's logic
func (t *PackageSearchTool) Execute(ctx context.Context, logger *logrus.Logger, cache *cache.Cache, args map[string]any) (*mcp.CallToolResult, error) {
	queries, isBatch, err := fallback.ParseQueries(args)
	if err != nil {
		return envelope.Failure(err), nil
	}

	cfg := config.Get()
	t.clientOnce.Do(func() {
		if t.client == nil {
			t.client = defaultHTTPClient(cfg.Packages.RateLimit, logger)
		}
	})

	l := &lookup{
		exec:     executor.Default(),
		registry: newRegistryClient(t.client, cfg.Packages.RegistryURL, logger),
		logger:   logger,
		cache:    cache,
	}
	batch := fallback.NewOrchestrator(logger).Run(ctx, queries, l.run)
	return envelope.FromBatch(toolName, batch, isBatch)
}

// NotFoundError reports an unknown package name with close matches
type NotFoundError struct {
	Name       string
	Candidates []string
	Err        error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("npm package %q not found", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Suggestions returns did-you-mean hints, best match first
func (e *NotFoundError) Suggestions() []string {
	out := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		out = append(out, fmt.Sprintf("Did you mean %q?", c))
	}
	return out
}

type lookup struct {
	exec     executor.Executor
	registry *registryClient
	logger   *logrus.Logger
	cache    *cache.Cache
}

func (l *lookup) run(ctx context.Context, params map[string]any) (fallback.Outcome, error) {
	name, query, limit, err := parseParams(params)
	if err != nil {
		return fallback.Outcome{}, err
	}

	if name != "" {
		info, err := cache.WithCache(l.cache, cache.GenerateKey(toolName, map[string]string{"name": name}), func() (*PackageInfo, error) {
			return l.view(ctx, name)
		})
		if err != nil {
			return fallback.Outcome{}, err
		}
		return fallback.Outcome{Data: info, Count: 1}, nil
	}

	hits, err := cache.WithCache(l.cache, cache.GenerateKey(toolName, map[string]any{"query": query, "limit": limit}), func() ([]SearchHit, error) {
		return l.search(ctx, query, limit)
	})
	if err != nil {
		return fallback.Outcome{}, err
	}
	return fallback.Outcome{Data: map[string]any{"packages": hits}, Count: len(hits)}, nil
}

// view runs npm view, falling back to the registry when npm is not installed.
// An unknown name is reported with fuzzy ranked candidates from a search.
func (l *lookup) view(ctx context.Context, name string) (*PackageInfo, error) {
	res, err := l.exec.Execute(ctx, executor.FamilyNPM, []string{"view", name, "--json"}, executor.Options{})
	var info *PackageInfo
	switch {
	case err == nil:
		info, err = parsePackage(res.Output)
	case errors.Is(err, executor.ErrBinaryNotFound):
		l.logger.Debug("npm not installed, using registry API")
		info, err = l.registry.view(ctx, name)
	}

	if err != nil && executor.IsNotFound(err) {
		return nil, l.notFound(ctx, name, err)
	}
	return info, err
}

func (l *lookup) search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	res, err := l.exec.Execute(ctx, executor.FamilyNPM, []string{"search", query, "--json", "--searchlimit=" + strconv.Itoa(limit)}, executor.Options{})
	if err == nil {
		return parseCLISearch(res.Output)
	}
	if errors.Is(err, executor.ErrBinaryNotFound) {
		l.logger.Debug("npm not installed, using registry API")
		return l.registry.search(ctx, query, limit)
	}
	return nil, err
}

func (l *lookup) notFound(ctx context.Context, name string, cause error) error {
	notFound := &NotFoundError{Name: name, Err: cause}

	term := strings.TrimPrefix(name, "@")
	if _, pkg, ok := strings.Cut(term, "/"); ok {
		term = pkg
	}
	hits, err := l.search(ctx, term, defaultSearchLimit)
	if err != nil {
		l.logger.WithError(err).Debug("Could not search for similar package names")
		return notFound
	}

	names := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Name != name {
			names = append(names, h.Name)
		}
	}
	for _, m := range fuzzy.Find(name, names) {
		notFound.Candidates = append(notFound.Candidates, m.Str)
		if len(notFound.Candidates) == maxSuggestions {
			break
		}
	}
	// fuzzy needs every character of name in order; fall back to search rank
	if len(notFound.Candidates) == 0 {
		notFound.Candidates = names[:min(len(names), maxSuggestions)]
	}
	return notFound
}

func parseParams(params map[string]any) (name, query string, limit int, err error) {
	if v, ok := params["name"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return "", "", 0, &search.ValidationError{Field: "name", Message: "must be a string"}
		}
		name = strings.TrimSpace(s)
	}
	if v, ok := params["query"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return "", "", 0, &search.ValidationError{Field: "query", Message: "must be a string"}
		}
		query = strings.TrimSpace(s)
	}

	switch {
	case name == "" && query == "":
		return "", "", 0, &search.ValidationError{
			Field:       "name",
			Message:     "provide a package name or a search query",
			Suggestions: []string{"Use name for an exact package, query for keywords"},
		}
	case name != "" && query != "":
		return "", "", 0, &search.ValidationError{Field: "name", Message: "name and query are mutually exclusive"}
	case name != "" && (len(name) > 214 || !packageNamePattern.MatchString(name)):
		ve := &search.ValidationError{Field: "name", Message: fmt.Sprintf("%q is not a valid npm package name", name)}
		if lower := strings.ToLower(name); lower != name && packageNamePattern.MatchString(lower) {
			ve.Suggestions = []string{fmt.Sprintf("Package names are lowercase, try %q", lower)}
		}
		return "", "", 0, ve
	}

	limit = defaultSearchLimit
	switch v := params["limit"].(type) {
	case nil:
	case float64:
		limit = int(v)
	case int:
		limit = v
	default:
		return "", "", 0, &search.ValidationError{Field: "limit", Message: "must be a number"}
	}
	if limit < 1 || limit > maxSearchLimit {
		return "", "", 0, &search.ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d, got %d", maxSearchLimit, limit)}
	}
	return name, query, limit, nil
}

// ProvideExtendedInfo provides detailed usage information for the npm tool
func (t *PackageSearchTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description:    "Latest release of a scoped package",
				Arguments:      map[string]any{"name": "@types/node"},
				ExpectedResult: "Version, license, repository, dist-tags and publish date",
			},
			{
				Description: "Find packages by keyword, falling back to a broader search",
				Arguments: map[string]any{
					"query":           "react date picker accessible",
					"limit":           10,
					"fallback_params": map[string]any{"query": "date picker"},
				},
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "not_found with Did you mean suggestions",
				Solution: "The exact name does not exist; retry with one of the suggested names",
			},
			{
				Problem:  "is not a valid npm package name",
				Solution: "Names are lowercase and may be scoped as @scope/name",
			},
		},
		WhenToUse:    "Checking a package's latest version and source repository, or discovering packages",
		WhenNotToUse: "Searching a package's source code; find its repository then use github_search_code",
	}
}
