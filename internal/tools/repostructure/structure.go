package repostructure

import (
	"context"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/config"
	"github.com/sammcj/mcp-code-research/internal/envelope"
	"github.com/sammcj/mcp-code-research/internal/fallback"
	"github.com/sammcj/mcp-code-research/internal/githubapi"
	"github.com/sammcj/mcp-code-research/internal/registry"
	"github.com/sammcj/mcp-code-research/internal/search"
	"github.com/sammcj/mcp-code-research/internal/tools"
	"github.com/sirupsen/logrus"
)

const toolName = "github_view_repo_structure"

// RepoStructureTool lists a repository directory, falling back across branches
type RepoStructureTool struct{}

func init() {
	registry.Register(&RepoStructureTool{})
}

// File is a non-directory entry of a listing
type File struct {
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
}

// Structure is the listing returned for one repository path
type Structure struct {
	Repository      string   `json:"repository"`
	Branch          string   `json:"branch"`
	RequestedBranch string   `json:"requested_branch,omitempty"`
	FellBack        bool     `json:"fell_back,omitempty"`
	Attempted       []string `json:"attempted_branches"`
	Path            string   `json:"path,omitempty"`
	Folders         []string `json:"folders"`
	Files           []File   `json:"files"`
}

type request struct {
	owner, repo, branch, path string
}

// Definition returns the tool's definition for MCP registration
func (t *RepoStructureTool) Definition() mcp.Tool {
	return mcp.NewTool(
		toolName,
		mcp.WithDescription(`List the folders and files at a path in a GitHub repository. If the branch does not exist or lacks the path, the default branch and then main, master, develop and dev are tried; the response names the branch used and every branch attempted.`),
		mcp.WithString("repository",
			mcp.Description("owner/repo or a GitHub URL. Alternative to owner and repo."),
		),
		mcp.WithString("owner",
			mcp.Description("Repository owner"),
		),
		mcp.WithString("repo",
			mcp.Description("Repository name"),
		),
		mcp.WithString("branch",
			mcp.Description("Branch, tag or commit. Defaults to the repository's default branch."),
		),
		mcp.WithString("path",
			mcp.Description("Directory path within the repository, root when omitted"),
		),
		mcp.WithObject("fallback_params",
			mcp.Description("Parameters merged over this request and retried once if it fails, e.g. {\"path\": \"src\"}"),
		),
		mcp.WithArray("queries",
			mcp.Description("List up to 10 locations in one call. Each item takes the same parameters plus optional id and fallback_params."),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// Execute executes the tool's logic
func (t *RepoStructureTool) Execute(ctx context.Context, logger *logrus.Logger, cache *cache.Cache, args map[string]any) (*mcp.CallToolResult, error) {
	queries, isBatch, err := fallback.ParseQueries(args)
	if err != nil {
		return envelope.Failure(err), nil
	}

	source, err := contentSource(ctx, config.Get(), logger)
	if err != nil {
		return envelope.Failure(err), nil
	}
	resolver := fallback.NewBranchResolver(source, logger)

	run := func(ctx context.Context, params map[string]any) (fallback.Outcome, error) {
		return t.list(ctx, cache, resolver, params)
	}
	batch := fallback.NewOrchestrator(logger).Run(ctx, queries, run)
	return envelope.FromBatch(toolName, batch, isBatch)
}

func (t *RepoStructureTool) list(ctx context.Context, c *cache.Cache, resolver *fallback.BranchResolver, params map[string]any) (fallback.Outcome, error) {
	req, err := parseRequest(params)
	if err != nil {
		return fallback.Outcome{}, err
	}

	key := cache.GenerateKey(toolName, []string{req.owner, req.repo, req.branch, req.path})
	structure, err := cache.WithCache(c, key, func() (*Structure, error) {
		res, err := resolver.Resolve(ctx, req.owner, req.repo, req.branch, req.path)
		if err != nil {
			return nil, err
		}
		return buildStructure(req, res), nil
	})
	if err != nil {
		return fallback.Outcome{}, err
	}
	return fallback.Outcome{Data: structure, Count: len(structure.Folders) + len(structure.Files)}, nil
}

func parseRequest(params map[string]any) (request, error) {
	var req request
	str := func(key string) (string, error) {
		switch v := params[key].(type) {
		case nil:
			return "", nil
		case string:
			return strings.TrimSpace(v), nil
		default:
			return "", &search.ValidationError{Field: key, Message: "must be a string"}
		}
	}

	repository, err := str("repository")
	if err != nil {
		return req, err
	}
	if req.owner, err = str("owner"); err != nil {
		return req, err
	}
	if req.repo, err = str("repo"); err != nil {
		return req, err
	}
	if req.branch, err = str("branch"); err != nil {
		return req, err
	}
	path, err := str("path")
	if err != nil {
		return req, err
	}
	req.path = githubapi.CleanPath(path)

	if repository == "" && req.owner != "" && strings.Contains(req.repo, "/") {
		repository = req.repo
		req.owner = ""
	}
	if repository == "" && req.owner == "" && req.repo == "" {
		return req, &search.ValidationError{
			Field:       "repository",
			Message:     "a repository is required",
			Suggestions: []string{"Pass repository as owner/repo, or owner and repo separately"},
		}
	}

	if repository != "" {
		owner, repo, err := githubapi.ValidateRepository(repository)
		if err != nil {
			return req, &search.ValidationError{Field: "repository", Message: err.Error()}
		}
		req.owner, req.repo = owner, repo
		return req, nil
	}

	if req.owner == "" || req.repo == "" {
		owner, repo, err := githubapi.ValidateRepository(req.owner + "/" + req.repo)
		if err != nil {
			return req, &search.ValidationError{
				Field:       "repo",
				Message:     "owner and repo are both required",
				Suggestions: []string{"Pass repo as owner/name or set owner"},
			}
		}
		req.owner, req.repo = owner, repo
	}
	return req, nil
}

// buildStructure sorts the listing into folders and files. A resolved file
// path lists that file alone.
func buildStructure(req request, res *fallback.BranchResolution) *Structure {
	s := &Structure{
		Repository: req.owner + "/" + req.repo,
		Branch:     res.Branch,
		FellBack:   res.FellBack,
		Attempted:  res.Attempted,
		Path:       req.path,
		Folders:    []string{},
		Files:      []File{},
	}
	if res.FellBack {
		s.RequestedBranch = req.branch
	}

	for _, item := range res.Items {
		if item.Type == "dir" {
			s.Folders = append(s.Folders, item.Path)
			continue
		}
		s.Files = append(s.Files, File{Path: item.Path, Size: item.Size})
	}

	slices.Sort(s.Folders)
	slices.SortFunc(s.Files, func(a, b File) int { return strings.Compare(a.Path, b.Path) })
	return s
}

// ProvideExtendedInfo provides detailed usage information for the structure tool
func (t *RepoStructureTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "List the root of a repository on its default branch",
				Arguments:   map[string]any{"repository": "cli/cli"},
			},
			{
				Description: "List a directory on a branch that may have been renamed",
				Arguments: map[string]any{
					"owner":  "octo",
					"repo":   "demo",
					"branch": "master",
					"path":   "docs",
				},
				ExpectedResult: "If master is missing, the default branch is tried and fell_back is true",
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "branch_exhausted",
				Solution: "The repository exists but no tried branch has the path; check the path or pass the exact branch",
			},
			{
				Problem:  "not_found with attempted_branches",
				Solution: "The repository itself could not be confirmed; check the owner and name, or authenticate for private repositories",
			},
		},
		ParameterDetails: map[string]string{
			"repository": "Accepts https://github.com/owner/repo URLs, including .git suffixes",
			"path":       "Leading and trailing slashes are ignored",
		},
		WhenToUse:    "Exploring the layout of a repository before searching or reading files",
		WhenNotToUse: "Finding a file by name across many repositories; use github_search_code with filename",
	}
}
