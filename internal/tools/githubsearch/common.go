package githubsearch

import (
	"context"
	"maps"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/config"
	"github.com/sammcj/mcp-code-research/internal/envelope"
	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sammcj/mcp-code-research/internal/fallback"
	"github.com/sammcj/mcp-code-research/internal/search"
	"github.com/sirupsen/logrus"
)

// SearchResult is the data returned for one executed search
type SearchResult struct {
	Command string `json:"command"`
	Query   string `json:"query,omitempty"`
	Total   int    `json:"total_count,omitempty"`
	Items   any    `json:"items"`
}

// searcher runs one search family on behalf of a tool
type searcher struct {
	tool   string
	family *search.Family
	shape  shaper
}

func (s *searcher) execute(ctx context.Context, logger *logrus.Logger, c *cache.Cache, args map[string]any) (*mcp.CallToolResult, error) {
	queries, isBatch, err := fallback.ParseQueries(args)
	if err != nil {
		return envelope.Failure(err), nil
	}

	cfg := config.Get()
	exec := executor.Default()
	run := func(ctx context.Context, params map[string]any) (fallback.Outcome, error) {
		return s.runOne(ctx, logger, c, exec, cfg, params)
	}

	batch := fallback.NewOrchestrator(logger).Run(ctx, queries, run)

	logger.WithFields(logrus.Fields{
		"tool":               s.tool,
		"batch_id":           batch.ID,
		"queries":            batch.Summary.Total,
		"successful":         batch.Summary.Successful,
		"fallback_triggered": batch.Summary.FallbackTriggered,
	}).Debug("Search completed")

	return envelope.FromBatch(s.tool, batch, isBatch)
}

// runOne builds, executes and shapes a single attempt. Shaped results are
// cached under the built argument list so equivalent requests share an entry.
func (s *searcher) runOne(ctx context.Context, logger *logrus.Logger, c *cache.Cache, exec executor.Executor, cfg *config.Config, params map[string]any) (fallback.Outcome, error) {
	params = withDefaultLimit(params, cfg.Search.DefaultLimit)

	built, err := search.Build(s.family, params)
	if err != nil {
		return fallback.Outcome{}, err
	}

	logger.WithFields(logrus.Fields{
		"tool":    s.tool,
		"command": built.String(),
	}).Debug("Running search")

	key := cache.GenerateKey(s.tool, built.Args)
	return cache.WithCache(c, key, func() (fallback.Outcome, error) {
		res, err := exec.Execute(ctx, executor.FamilyGH, built.Args, executor.Options{})
		if err != nil {
			return fallback.Outcome{}, err
		}

		out, err := s.shape(res.Output)
		if err != nil {
			return fallback.Outcome{}, err
		}

		return fallback.Outcome{
			Data: SearchResult{
				Command: built.String(),
				Query:   built.Query,
				Total:   out.Total,
				Items:   out.Items,
			},
			Count: out.Count,
		}, nil
	})
}

func withDefaultLimit(params map[string]any, limit int) map[string]any {
	if v, ok := params["limit"]; (ok && v != nil) || limit <= 0 {
		return params
	}
	out := maps.Clone(params)
	out["limit"] = limit
	return out
}
