package search

import (
	"strconv"
	"strings"
)

// Placement is where a filter ends up in the built command
type Placement int

const (
	PlacementFlag Placement = iota
	PlacementQualifier
	PlacementDropped
)

func (p Placement) String() string {
	switch p {
	case PlacementFlag:
		return "flag"
	case PlacementQualifier:
		return "qualifier"
	default:
		return "dropped"
	}
}

// Decision records the rendering of one request parameter
type Decision struct {
	Key        string
	Placement  Placement
	Flags      []string
	Qualifiers []string
}

// Routing is the ordered set of filter decisions for one request
type Routing struct {
	Decisions []Decision
	// Dropped lists parameters that had no usable form
	Dropped []string
}

// Flags returns the CLI flags in decision order
func (r *Routing) Flags() []string {
	var out []string
	for _, d := range r.Decisions {
		if d.Placement == PlacementFlag {
			out = append(out, d.Flags...)
		}
	}
	return out
}

// Qualifiers returns the embedded qualifiers in decision order
func (r *Routing) Qualifiers() []string {
	var out []string
	for _, d := range r.Decisions {
		if d.Placement == PlacementQualifier {
			out = append(out, d.Qualifiers...)
		}
	}
	return out
}

// PlacementOf returns the placement chosen for key
func (r *Routing) PlacementOf(key string) (Placement, bool) {
	for _, d := range r.Decisions {
		if d.Key == key {
			return d.Placement, true
		}
	}
	return PlacementDropped, false
}

// Route decides, per filter, between a CLI flag and an embedded qualifier.
// A query with boolean logic embeds every filter in the query text, since
// gh applies flags with AND semantics outside the expression. nq may be nil
// when the request has no query text.
func Route(family *Family, nq *NormalizedQuery, params Params) (*Routing, error) {
	complexLogic := nq != nil && nq.HasComplexLogic
	r := &Routing{}

	var scope []Decision
	if family.Ownership != nil {
		var err error
		scope, err = routeOwnership(family.Ownership, complexLogic, params)
		if err != nil {
			return nil, err
		}
		if !family.Ownership.ScopeLast {
			r.Decisions = append(r.Decisions, scope...)
		}
	}

	for _, f := range family.Filters {
		raw, ok := params[f.Key]
		if !ok || raw == nil {
			continue
		}
		values, _, err := toStrings(raw)
		if err != nil {
			return nil, newValidationError(f.Key, "%v", err)
		}
		if len(values) == 0 {
			continue
		}
		if f.Kind == KindBoolPresence || f.Kind == KindBoolExplicit {
			for i, v := range values {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return nil, newValidationError(f.Key, "%q is not a boolean", v)
				}
				values[i] = strconv.FormatBool(b)
			}
		}

		d := Decision{Key: f.Key}
		switch {
		case complexLogic && f.HasQualifier(), !complexLogic && !f.HasFlag() && f.HasQualifier():
			d.Placement = PlacementQualifier
			d.Qualifiers = renderQualifiers(f, values)
		case !complexLogic && f.HasFlag():
			d.Placement = PlacementFlag
			d.Flags = renderFlags(f, values)
		default:
			d.Placement = PlacementDropped
			r.Dropped = append(r.Dropped, f.Key)
		}
		r.Decisions = append(r.Decisions, d)
	}

	if family.Ownership != nil && family.Ownership.ScopeLast {
		r.Decisions = append(r.Decisions, scope...)
	}
	return r, nil
}

func renderFlags(f Filter, values []string) []string {
	switch {
	case f.Kind == KindBoolPresence:
		if values[0] == "true" {
			return []string{"--" + f.Flag}
		}
		return nil
	case f.Array == ArrayJoin:
		return []string{"--" + f.Flag + "=" + strings.Join(values, ",")}
	default:
		out := make([]string, 0, len(values))
		for _, v := range values {
			out = append(out, "--"+f.Flag+"="+v)
		}
		return out
	}
}

func renderQualifiers(f Filter, values []string) []string {
	if f.Qualify != nil {
		return f.Qualify(values)
	}
	if f.JoinQualifier {
		return []string{f.Qualifier + ":" + strings.Join(values, ",")}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, f.Qualifier+":"+qualifierValue(v))
	}
	return out
}

// routeOwnership expands owner and repo into scope flags or qualifiers.
// Owner by repo pairs expand row-major; fully qualified repos pass through.
func routeOwnership(o *Ownership, complexLogic bool, params Params) ([]Decision, error) {
	owners, err := stringsParam(params, "owner")
	if err != nil {
		return nil, err
	}
	repos, err := stringsParam(params, "repo")
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 && len(repos) == 0 {
		return nil, nil
	}

	for _, owner := range owners {
		if err := validateOwner(owner); err != nil {
			return nil, err
		}
	}
	for _, repo := range repos {
		if err := validateRepo(repo); err != nil {
			return nil, err
		}
		if len(owners) == 0 && !strings.Contains(repo, "/") {
			return nil, &ValidationError{
				Field:       "repo",
				Message:     "repo requires owner unless given as owner/repo",
				Suggestions: []string{"Set owner, or pass repo as owner/name"},
			}
		}
	}
	if len(repos) > 0 && !o.AllowRepo {
		return nil, newValidationError("repo", "repo is not supported for this search, use owner")
	}

	useFlags := !complexLogic
	if len(repos) > 0 {
		useFlags = useFlags && o.RepoFlag != ""
	} else {
		useFlags = useFlags && o.OwnerFlag != ""
	}
	placement := PlacementQualifier
	if useFlags {
		placement = PlacementFlag
	}

	if len(repos) == 0 {
		d := Decision{Key: "owner", Placement: placement}
		for _, owner := range owners {
			if useFlags {
				d.Flags = append(d.Flags, "--"+o.OwnerFlag+"="+owner)
			} else {
				d.Qualifiers = append(d.Qualifiers, o.OwnerQualifier+":"+owner)
			}
		}
		return []Decision{d}, nil
	}

	d := Decision{Key: "repo", Placement: placement}
	for _, target := range ExpandRepos(owners, repos) {
		if useFlags {
			d.Flags = append(d.Flags, "--"+o.RepoFlag+"="+target)
		} else {
			d.Qualifiers = append(d.Qualifiers, o.RepoQualifier+":"+target)
		}
	}
	decisions := []Decision{d}
	if len(owners) > 0 {
		// owner is folded into the repo targets
		decisions = append(decisions, Decision{Key: "owner", Placement: placement})
	}
	return decisions, nil
}

// ExpandRepos pairs every owner with every repo, outer loop over owners.
// Repos already in owner/name form are used as given. Only textually
// identical targets are collapsed.
func ExpandRepos(owners, repos []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(target string) {
		if !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}

	if len(owners) == 0 {
		for _, repo := range repos {
			add(repo)
		}
		return out
	}
	for _, owner := range owners {
		for _, repo := range repos {
			if strings.Contains(repo, "/") {
				add(repo)
				continue
			}
			add(owner + "/" + repo)
		}
	}
	return out
}
