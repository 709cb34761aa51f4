package fallback

import (
	"context"
	"fmt"
	"strings"

	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sirupsen/logrus"
)

// CommonBranches are probed, in order, after the requested and default branches
var CommonBranches = []string{"main", "master", "develop", "dev"}

// ContentItem is one entry of a repository directory listing
type ContentItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
}

// ContentSource lists repository contents and resolves default branches
type ContentSource interface {
	ListContents(ctx context.Context, owner, repo, path, ref string) ([]ContentItem, error)
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
}

// BranchResolution is the outcome of a successful probe
type BranchResolution struct {
	Branch    string
	Items     []ContentItem
	Attempted []string
	// FellBack is true when the returned branch is not the requested one
	FellBack bool
}

// BranchExhaustedError reports that no candidate branch contained the path
type BranchExhaustedError struct {
	Owner     string
	Repo      string
	Path      string
	Attempted []string
	// RepoConfirmed is true when repository metadata was fetched successfully
	RepoConfirmed bool
	Last          error
}

func (e *BranchExhaustedError) Error() string {
	location := e.Path
	if location == "" {
		location = "repository root"
	}
	return fmt.Sprintf("could not find %s in %s/%s on any branch (tried: %s)",
		location, e.Owner, e.Repo, strings.Join(e.Attempted, ", "))
}

func (e *BranchExhaustedError) Unwrap() error {
	return e.Last
}

// BranchResolver probes candidate branches until one lists the path
type BranchResolver struct {
	source   ContentSource
	logger   *logrus.Logger
	branches []string
}

// NewBranchResolver creates a resolver over source
func NewBranchResolver(source ContentSource, logger *logrus.Logger) *BranchResolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BranchResolver{
		source:   source,
		logger:   logger,
		branches: CommonBranches,
	}
}

type probeState struct {
	owner, repo, path string
	attempted         []string
	tried             map[string]bool
	repoConfirmed     bool
	last              error
}

// Resolve lists path on the requested branch, falling back to the default
// branch and then the common branch names. Only not-found failures advance to
// the next candidate; any other failure is returned as is. The default branch
// is fetched at most once, and only when needed.
func (r *BranchResolver) Resolve(ctx context.Context, owner, repo, requested, path string) (*BranchResolution, error) {
	state := &probeState{
		owner: owner,
		repo:  repo,
		path:  path,
		tried: make(map[string]bool),
	}

	if requested != "" {
		if res, done, err := r.probe(ctx, state, requested); done {
			return finish(res, requested), err
		}
	}

	if branch, err := r.source.DefaultBranch(ctx, owner, repo); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.WithFields(logrus.Fields{
			"owner": owner,
			"repo":  repo,
			"error": err.Error(),
		}).Debug("Could not fetch default branch, trying common branches")
	} else {
		state.repoConfirmed = true
		if res, done, err := r.probe(ctx, state, branch); done {
			return finish(res, requested), err
		}
	}

	for _, branch := range r.branches {
		if res, done, err := r.probe(ctx, state, branch); done {
			return finish(res, requested), err
		}
	}

	return nil, &BranchExhaustedError{
		Owner:         owner,
		Repo:          repo,
		Path:          path,
		Attempted:     state.attempted,
		RepoConfirmed: state.repoConfirmed,
		Last:          state.last,
	}
}

// probe returns done=true on success or on a failure that must stop the search
func (r *BranchResolver) probe(ctx context.Context, state *probeState, branch string) (*BranchResolution, bool, error) {
	if branch == "" || state.tried[branch] {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, true, err
	}

	state.tried[branch] = true
	state.attempted = append(state.attempted, branch)

	items, err := r.source.ListContents(ctx, state.owner, state.repo, state.path, branch)
	if err == nil {
		return &BranchResolution{
			Branch:    branch,
			Items:     items,
			Attempted: append([]string(nil), state.attempted...),
		}, true, nil
	}

	state.last = err
	if !executor.IsNotFound(err) {
		return nil, true, err
	}

	r.logger.WithFields(logrus.Fields{
		"owner":  state.owner,
		"repo":   state.repo,
		"branch": branch,
		"path":   state.path,
	}).Debug("Path not found on branch, trying next candidate")
	return nil, false, nil
}

func finish(res *BranchResolution, requested string) *BranchResolution {
	if res != nil {
		res.FellBack = requested != "" && res.Branch != requested
	}
	return res
}
