package githubsearch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Truncation limits for free text in results
const (
	maxFragmentLength    = 300
	maxBodyLength        = 600
	maxDescriptionLength = 200
)

// shaped is the compact form of one command's output
type shaped struct {
	Items any
	Count int
	// Total is the server side match count when the endpoint reports one
	Total int
}

// shaper turns raw command output into compact results
type shaper func(raw []byte) (shaped, error)

// CodeResult is a single code search hit
type CodeResult struct {
	Repository string   `json:"repository"`
	Path       string   `json:"path"`
	URL        string   `json:"url,omitempty"`
	Fragments  []string `json:"fragments,omitempty"`
}

// RepoResult is a single repository search hit
type RepoResult struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Language      string `json:"language,omitempty"`
	Stars         int    `json:"stars"`
	Forks         int    `json:"forks,omitempty"`
	OpenIssues    int    `json:"open_issues,omitempty"`
	License       string `json:"license,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
	Visibility    string `json:"visibility,omitempty"`
	Archived      bool   `json:"archived,omitempty"`
	Created       string `json:"created,omitempty"`
	Updated       string `json:"updated,omitempty"`
	Pushed        string `json:"pushed,omitempty"`
	URL           string `json:"url"`
}

// PullRequestResult is a single pull request search hit
type PullRequestResult struct {
	Repository string   `json:"repository"`
	Number     int      `json:"number"`
	Title      string   `json:"title"`
	State      string   `json:"state"`
	Draft      bool     `json:"draft,omitempty"`
	Merged     bool     `json:"merged,omitempty"`
	Author     string   `json:"author,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Comments   int      `json:"comments,omitempty"`
	Created    string   `json:"created,omitempty"`
	Updated    string   `json:"updated,omitempty"`
	Closed     string   `json:"closed,omitempty"`
	MergedAt   string   `json:"merged_at,omitempty"`
	Body       string   `json:"body,omitempty"`
	URL        string   `json:"url"`
}

// UserResult is a single user or organisation search hit
type UserResult struct {
	Login string `json:"login"`
	Type  string `json:"type"`
	URL   string `json:"url"`
}

type ghCodeHit struct {
	Path       string `json:"path"`
	URL        string `json:"url"`
	Repository struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
	TextMatches []struct {
		Fragment string `json:"fragment"`
	} `json:"textMatches"`
}

type ghRepoHit struct {
	FullName        string `json:"fullName"`
	Description     string `json:"description"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazersCount"`
	ForksCount      int    `json:"forksCount"`
	OpenIssuesCount int    `json:"openIssuesCount"`
	DefaultBranch   string `json:"defaultBranch"`
	Visibility      string `json:"visibility"`
	IsArchived      bool   `json:"isArchived"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
	PushedAt        string `json:"pushedAt"`
	URL             string `json:"url"`
	License         struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"license"`
}

type restSearchResponse[T any] struct {
	TotalCount int `json:"total_count"`
	Items      []T `json:"items"`
}

type restIssue struct {
	Number        int    `json:"number"`
	Title         string `json:"title"`
	Body          string `json:"body"`
	State         string `json:"state"`
	Draft         bool   `json:"draft"`
	HTMLURL       string `json:"html_url"`
	RepositoryURL string `json:"repository_url"`
	Comments      int    `json:"comments"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	ClosedAt      string `json:"closed_at"`
	User          struct {
		Login string `json:"login"`
	} `json:"user"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest struct {
		MergedAt string `json:"merged_at"`
	} `json:"pull_request"`
}

type restUser struct {
	Login   string `json:"login"`
	Type    string `json:"type"`
	HTMLURL string `json:"html_url"`
}

func shapeCode(raw []byte) (shaped, error) {
	var hits []ghCodeHit
	if err := json.Unmarshal(raw, &hits); err != nil {
		return shaped{}, fmt.Errorf("failed to parse code search output: %w", err)
	}

	results := make([]CodeResult, 0, len(hits))
	for _, hit := range hits {
		result := CodeResult{
			Repository: hit.Repository.NameWithOwner,
			Path:       hit.Path,
			URL:        hit.URL,
		}
		for _, m := range hit.TextMatches {
			if fragment := strings.TrimSpace(m.Fragment); fragment != "" {
				result.Fragments = append(result.Fragments, truncate(fragment, maxFragmentLength))
			}
		}
		results = append(results, result)
	}
	return shaped{Items: results, Count: len(results)}, nil
}

func shapeRepos(raw []byte) (shaped, error) {
	var hits []ghRepoHit
	if err := json.Unmarshal(raw, &hits); err != nil {
		return shaped{}, fmt.Errorf("failed to parse repository search output: %w", err)
	}

	results := make([]RepoResult, 0, len(hits))
	for _, hit := range hits {
		license := hit.License.Key
		if license == "" {
			license = hit.License.Name
		}
		results = append(results, RepoResult{
			Name:          hit.FullName,
			Description:   truncate(hit.Description, maxDescriptionLength),
			Language:      hit.Language,
			Stars:         hit.StargazersCount,
			Forks:         hit.ForksCount,
			OpenIssues:    hit.OpenIssuesCount,
			License:       license,
			DefaultBranch: hit.DefaultBranch,
			Visibility:    strings.ToLower(hit.Visibility),
			Archived:      hit.IsArchived,
			Created:       formatDate(hit.CreatedAt),
			Updated:       formatDate(hit.UpdatedAt),
			Pushed:        formatDate(hit.PushedAt),
			URL:           hit.URL,
		})
	}
	return shaped{Items: results, Count: len(results)}, nil
}

func shapePullRequests(raw []byte) (shaped, error) {
	var resp restSearchResponse[restIssue]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return shaped{}, fmt.Errorf("failed to parse pull request search output: %w", err)
	}

	results := make([]PullRequestResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		pr := PullRequestResult{
			Repository: repositoryFromAPIURL(item.RepositoryURL),
			Number:     item.Number,
			Title:      item.Title,
			State:      item.State,
			Draft:      item.Draft,
			Merged:     item.PullRequest.MergedAt != "",
			Author:     item.User.Login,
			Comments:   item.Comments,
			Created:    formatDate(item.CreatedAt),
			Updated:    formatDate(item.UpdatedAt),
			Closed:     formatDate(item.ClosedAt),
			MergedAt:   formatDate(item.PullRequest.MergedAt),
			Body:       truncate(strings.TrimSpace(item.Body), maxBodyLength),
			URL:        item.HTMLURL,
		}
		for _, label := range item.Labels {
			pr.Labels = append(pr.Labels, label.Name)
		}
		results = append(results, pr)
	}
	return shaped{Items: results, Count: len(results), Total: resp.TotalCount}, nil
}

func shapeUsers(raw []byte) (shaped, error) {
	var resp restSearchResponse[restUser]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return shaped{}, fmt.Errorf("failed to parse user search output: %w", err)
	}

	results := make([]UserResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, UserResult{
			Login: item.Login,
			Type:  strings.ToLower(item.Type),
			URL:   item.HTMLURL,
		})
	}
	return shaped{Items: results, Count: len(results), Total: resp.TotalCount}, nil
}

// formatDate reduces an RFC 3339 timestamp to its date. Unparseable input is
// returned unchanged.
func formatDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format("2006-01-02")
}

// truncate shortens s to at most maxLen runes, marking the cut with "..."
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// repositoryFromAPIURL turns https://api.github.com/repos/o/r into o/r
func repositoryFromAPIURL(u string) string {
	_, rest, ok := strings.Cut(u, "/repos/")
	if !ok {
		return u
	}
	return rest
}
