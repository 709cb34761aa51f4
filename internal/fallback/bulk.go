package fallback

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Query is one entry of a batch
type Query struct {
	ID             string
	Params         map[string]any
	FallbackParams map[string]any
}

// Outcome is the result of one attempt
type Outcome struct {
	Data  any
	Count int
}

// RunFunc executes a single attempt for params
type RunFunc func(ctx context.Context, params map[string]any) (Outcome, error)

// QueryResult records what happened to one query in a batch
type QueryResult struct {
	ID                string         `json:"id"`
	Request           map[string]any `json:"request"`
	Result            any            `json:"result,omitempty"`
	Count             int            `json:"count"`
	FallbackTriggered bool           `json:"fallback_triggered"`
	FallbackRequest   map[string]any `json:"fallback_request,omitempty"`
	Error             string         `json:"error,omitempty"`
	// FallbackError is set when the primary returned nothing and the retry failed
	FallbackError string `json:"fallback_error,omitempty"`
	// Category, Suggestions and Attempted classify Err for the caller
	Category    string   `json:"category,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Attempted   []string `json:"attempted_branches,omitempty"`

	// Err keeps the original error chain for classification
	Err error `json:"-"`
}

// BatchSummary is derived from the results of a batch
type BatchSummary struct {
	Total             int `json:"total"`
	Successful        int `json:"successful"`
	FallbackTriggered int `json:"fallback_triggered"`
	TotalResults      int `json:"total_results"`
}

// Batch is the ordered result of running a batch
type Batch struct {
	ID      string        `json:"batch_id"`
	Results []QueryResult `json:"results"`
	Summary BatchSummary  `json:"summary"`
}

// Orchestrator runs batches of queries with at most one fallback retry each
type Orchestrator struct {
	logger *logrus.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{logger: logger}
}

// MergeParams shallow-merges fallback over base. Nil fallback values leave the
// base value untouched.
func MergeParams(base, fallback map[string]any) map[string]any {
	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]any, len(fallback))
	}
	for k, v := range fallback {
		if v == nil {
			continue
		}
		merged[k] = v
	}
	return merged
}

func hasFallback(fallback map[string]any) bool {
	for _, v := range fallback {
		if v != nil {
			return true
		}
	}
	return false
}

// Run executes queries one after another so external rate limits are
// respected. A query whose primary attempt fails or returns no results is
// retried once with its fallback params, when it has any.
func (o *Orchestrator) Run(ctx context.Context, queries []Query, run RunFunc) *Batch {
	batch := &Batch{
		ID:      uuid.NewString(),
		Results: make([]QueryResult, 0, len(queries)),
	}

	for i, q := range queries {
		id := q.ID
		if id == "" {
			id = fmt.Sprintf("query_%d", i+1)
		}
		res := QueryResult{ID: id, Request: q.Params}

		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
			res.Err = err
			batch.Results = append(batch.Results, res)
			continue
		}

		logger := o.logger.WithFields(logrus.Fields{
			"batch_id": batch.ID,
			"query_id": id,
		})

		out, err := run(ctx, q.Params)
		if err == nil {
			res.Result = out.Data
			res.Count = out.Count
		}

		if (err == nil && out.Count > 0) || !hasFallback(q.FallbackParams) {
			if err != nil {
				res.Error = err.Error()
				res.Err = err
			}
			batch.Results = append(batch.Results, res)
			continue
		}

		merged := MergeParams(q.Params, q.FallbackParams)
		res.FallbackTriggered = true
		res.FallbackRequest = merged
		logger.WithField("primary_failed", err != nil).Debug("Running fallback query")

		fbOut, fbErr := run(ctx, merged)
		switch {
		case fbErr == nil:
			res.Result = fbOut.Data
			res.Count = fbOut.Count
		case err != nil:
			res.Error = fmt.Sprintf("primary: %v; fallback: %v", err, fbErr)
			res.Err = errors.Join(err, fbErr)
		default:
			// primary succeeded with zero results, keep it
			res.FallbackError = fbErr.Error()
		}
		batch.Results = append(batch.Results, res)
	}

	batch.Summary = Summarise(batch.Results)
	return batch
}

// Summarise derives the batch summary from results
func Summarise(results []QueryResult) BatchSummary {
	summary := BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Error == "" {
			summary.Successful++
		}
		if r.FallbackTriggered {
			summary.FallbackTriggered++
		}
		summary.TotalResults += r.Count
	}
	return summary
}
