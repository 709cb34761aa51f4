package search

// Params are the caller supplied arguments of one search request
type Params map[string]any

// FilterKind describes how a filter value is validated and rendered
type FilterKind int

const (
	KindString FilterKind = iota
	KindRange
	KindDate
	KindEnum
	// KindBoolPresence renders a bare flag when true and nothing when false
	KindBoolPresence
	// KindBoolExplicit always renders --flag=true or --flag=false
	KindBoolExplicit
)

// ArrayMode controls how array values become CLI flags
type ArrayMode int

const (
	// ArrayReject allows a single value only
	ArrayReject ArrayMode = iota
	// ArrayRepeat emits one flag per value
	ArrayRepeat
	// ArrayJoin emits one flag with comma separated values
	ArrayJoin
)

// Filter maps a request parameter onto a CLI flag and/or a query qualifier
type Filter struct {
	Key       string
	Flag      string
	Qualifier string
	Kind      FilterKind
	Array     ArrayMode
	Enum      []string
	// JoinQualifier renders arrays as a single key:a,b qualifier
	JoinQualifier bool
	// Qualify overrides the default key:value rendering
	Qualify func(values []string) []string
}

// HasFlag reports whether the filter has a CLI flag form
func (f Filter) HasFlag() bool { return f.Flag != "" }

// HasQualifier reports whether the filter can be embedded in the query text
func (f Filter) HasQualifier() bool { return f.Qualifier != "" || f.Qualify != nil }

// Ownership describes how owner and repo parameters are scoped
type Ownership struct {
	OwnerFlag      string
	RepoFlag       string
	OwnerQualifier string
	RepoQualifier  string
	// AllowRepo accepts the repo parameter
	AllowRepo bool
	// ScopeLast places scope qualifiers after filter qualifiers
	ScopeLast bool
}

// REST describes a family served by gh api instead of a search subcommand
type REST struct {
	Endpoint string
	// Trailing qualifiers are appended after everything else
	Trailing []string
}

// Family is the static description of one search command
type Family struct {
	Name          string
	Command       []string
	Combinator    Combinator
	QueryRequired bool
	Ownership     *Ownership
	Filters       []Filter
	Sorts         []string
	JSONFields    []string
	REST          *REST
}

// Filter returns the filter declared under key
func (f *Family) Filter(key string) (Filter, bool) {
	for _, filter := range f.Filters {
		if filter.Key == key {
			return filter, true
		}
	}
	return Filter{}, false
}

func mergedQualifier(values []string) []string {
	out := make([]string, 0, 1)
	for _, v := range values {
		switch v {
		case "true":
			out = append(out, "is:merged")
		case "false":
			out = append(out, "is:unmerged")
		}
	}
	return out
}

// Code searches file contents with gh search code
var Code = &Family{
	Name:          "code",
	Command:       []string{"search", "code"},
	Combinator:    CombinatorOR,
	QueryRequired: true,
	Ownership: &Ownership{
		OwnerFlag:      "owner",
		RepoFlag:       "repo",
		OwnerQualifier: "user",
		RepoQualifier:  "repo",
		AllowRepo:      true,
	},
	Filters: []Filter{
		{Key: "language", Flag: "language", Qualifier: "language"},
		{Key: "extension", Flag: "extension", Qualifier: "extension"},
		{Key: "filename", Flag: "filename", Qualifier: "filename"},
		{Key: "path", Qualifier: "path"},
		{Key: "size", Flag: "size", Qualifier: "size", Kind: KindRange},
		{Key: "match", Flag: "match", Qualifier: "in", Kind: KindEnum, Enum: []string{"file", "path"}, Array: ArrayJoin, JoinQualifier: true},
		{Key: "visibility", Qualifier: "is", Kind: KindEnum, Enum: []string{"public", "private", "internal"}},
	},
	JSONFields: []string{"path", "repository", "sha", "textMatches", "url"},
}

// Repos searches repositories with gh search repos
var Repos = &Family{
	Name:       "repos",
	Command:    []string{"search", "repos"},
	Combinator: CombinatorAND,
	Ownership: &Ownership{
		OwnerFlag:      "owner",
		OwnerQualifier: "user",
	},
	Filters: []Filter{
		{Key: "language", Flag: "language", Qualifier: "language"},
		{Key: "topic", Flag: "topic", Qualifier: "topic", Array: ArrayJoin},
		{Key: "stars", Flag: "stars", Qualifier: "stars", Kind: KindRange},
		{Key: "forks", Flag: "forks", Qualifier: "forks", Kind: KindRange},
		{Key: "size", Flag: "size", Qualifier: "size", Kind: KindRange},
		{Key: "created", Flag: "created", Qualifier: "created", Kind: KindDate},
		{Key: "updated", Flag: "updated", Qualifier: "pushed", Kind: KindDate},
		{Key: "license", Flag: "license", Qualifier: "license", Array: ArrayJoin},
		{Key: "visibility", Flag: "visibility", Qualifier: "is", Kind: KindEnum, Enum: []string{"public", "private", "internal"}},
		{Key: "archived", Flag: "archived", Qualifier: "archived", Kind: KindBoolExplicit},
		{Key: "include_forks", Flag: "include-forks", Qualifier: "fork", Kind: KindEnum, Enum: []string{"false", "true", "only"}},
		{Key: "good_first_issues", Flag: "good-first-issues", Qualifier: "good-first-issues", Kind: KindRange},
		{Key: "match", Flag: "match", Qualifier: "in", Kind: KindEnum, Enum: []string{"name", "description", "readme"}, Array: ArrayJoin, JoinQualifier: true},
	},
	Sorts: []string{"forks", "help-wanted-issues", "stars", "updated"},
	JSONFields: []string{
		"createdAt", "defaultBranch", "description", "forksCount", "fullName", "isArchived",
		"language", "license", "openIssuesCount", "pushedAt", "stargazersCount", "updatedAt", "url", "visibility",
	},
}

// PullRequests searches pull requests through the REST search endpoint, which
// exposes qualifiers gh search prs has no flags for.
var PullRequests = &Family{
	Name:       "prs",
	Command:    []string{"api"},
	Combinator: CombinatorAND,
	Ownership: &Ownership{
		OwnerQualifier: "org",
		RepoQualifier:  "repo",
		AllowRepo:      true,
		ScopeLast:      true,
	},
	Filters: []Filter{
		{Key: "author", Qualifier: "author"},
		{Key: "assignee", Qualifier: "assignee"},
		{Key: "mentions", Qualifier: "mentions"},
		{Key: "commenter", Qualifier: "commenter"},
		{Key: "involves", Qualifier: "involves"},
		{Key: "reviewed_by", Qualifier: "reviewed-by"},
		{Key: "review_requested", Qualifier: "review-requested"},
		{Key: "state", Qualifier: "state", Kind: KindEnum, Enum: []string{"open", "closed"}},
		{Key: "merged", Kind: KindBoolPresence, Qualify: mergedQualifier},
		{Key: "draft", Qualifier: "draft", Kind: KindBoolPresence},
		{Key: "label", Qualifier: "label", Array: ArrayRepeat},
		{Key: "base", Qualifier: "base"},
		{Key: "head", Qualifier: "head"},
		{Key: "language", Qualifier: "language"},
		{Key: "created", Qualifier: "created", Kind: KindDate},
		{Key: "updated", Qualifier: "updated", Kind: KindDate},
		{Key: "closed", Qualifier: "closed", Kind: KindDate},
		{Key: "merged_at", Qualifier: "merged", Kind: KindDate},
		{Key: "comments", Qualifier: "comments", Kind: KindRange},
		{Key: "reactions", Qualifier: "reactions", Kind: KindRange},
		{Key: "review", Qualifier: "review", Kind: KindEnum, Enum: []string{"none", "required", "approved", "changes_requested"}},
	},
	Sorts: []string{"comments", "reactions", "interactions", "created", "updated"},
	REST: &REST{
		Endpoint: "search/issues",
		Trailing: []string{"type:pr"},
	},
}

// Users searches users and organisations through the REST search endpoint
var Users = &Family{
	Name:       "users",
	Command:    []string{"api"},
	Combinator: CombinatorAND,
	Filters: []Filter{
		{Key: "type", Qualifier: "type", Kind: KindEnum, Enum: []string{"user", "org"}},
		{Key: "location", Qualifier: "location"},
		{Key: "language", Qualifier: "language"},
		{Key: "followers", Qualifier: "followers", Kind: KindRange},
		{Key: "repos", Qualifier: "repos", Kind: KindRange},
		{Key: "created", Qualifier: "created", Kind: KindDate},
	},
	Sorts: []string{"followers", "repositories", "joined"},
	REST: &REST{
		Endpoint: "search/users",
	},
}
