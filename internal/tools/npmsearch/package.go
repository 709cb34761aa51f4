package npmsearch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const maxDescriptionLength = 200

// PackageInfo is the compact form of a package document
type PackageInfo struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description,omitempty"`
	License      string            `json:"license,omitempty"`
	Homepage     string            `json:"homepage,omitempty"`
	Repository   string            `json:"repository,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	DistTags     map[string]string `json:"dist_tags,omitempty"`
	Versions     int               `json:"version_count,omitempty"`
	Dependencies int               `json:"dependency_count,omitempty"`
	Published    string            `json:"published,omitempty"`
	Modified     string            `json:"modified,omitempty"`
	Deprecated   string            `json:"deprecated,omitempty"`
}

// SearchHit is a single package search result
type SearchHit struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Repository  string `json:"repository,omitempty"`
}

// packageDocument covers both npm view --json output and registry documents.
// npm view flattens the latest manifest into the top level and lists
// versions as an array; the registry nests manifests under versions.
type packageDocument struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description"`
	License      json.RawMessage   `json:"license"`
	Homepage     string            `json:"homepage"`
	Repository   json.RawMessage   `json:"repository"`
	Keywords     json.RawMessage   `json:"keywords"`
	DistTags     map[string]string `json:"dist-tags"`
	Versions     json.RawMessage   `json:"versions"`
	Time         map[string]any    `json:"time"`
	Dependencies map[string]string `json:"dependencies"`
	Deprecated   json.RawMessage   `json:"deprecated"`
}

type manifest struct {
	Dependencies map[string]string `json:"dependencies"`
	Deprecated   json.RawMessage   `json:"deprecated"`
}

func parsePackage(raw []byte) (*PackageInfo, error) {
	var doc packageDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse package document: %w", err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("package document has no name")
	}

	info := &PackageInfo{
		Name:         doc.Name,
		Version:      doc.Version,
		Description:  truncate(strings.TrimSpace(doc.Description), maxDescriptionLength),
		License:      stringOrField(doc.License, "type"),
		Homepage:     doc.Homepage,
		Repository:   cleanRepositoryURL(stringOrField(doc.Repository, "url")),
		Keywords:     stringList(doc.Keywords),
		DistTags:     doc.DistTags,
		Dependencies: len(doc.Dependencies),
		Deprecated:   deprecation(doc.Deprecated),
	}
	if info.Version == "" {
		info.Version = doc.DistTags["latest"]
	}

	// versions: a single string, an array, or a map of manifests
	var versionMap map[string]manifest
	var versionList []string
	var single string
	switch {
	case json.Unmarshal(doc.Versions, &versionMap) == nil:
		info.Versions = len(versionMap)
		if latest, ok := versionMap[info.Version]; ok {
			info.Dependencies = len(latest.Dependencies)
			if info.Deprecated == "" {
				info.Deprecated = deprecation(latest.Deprecated)
			}
		}
	case json.Unmarshal(doc.Versions, &versionList) == nil:
		info.Versions = len(versionList)
	case json.Unmarshal(doc.Versions, &single) == nil && single != "":
		info.Versions = 1
	}

	if ts, ok := doc.Time[info.Version].(string); ok {
		info.Published = formatDate(ts)
	}
	if ts, ok := doc.Time["modified"].(string); ok {
		info.Modified = formatDate(ts)
	}
	return info, nil
}

type cliSearchHit struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Publisher   struct {
		Username string `json:"username"`
	} `json:"publisher"`
	Links struct {
		Repository string `json:"repository"`
	} `json:"links"`
}

func (h cliSearchHit) toHit() SearchHit {
	return SearchHit{
		Name:        h.Name,
		Version:     h.Version,
		Description: truncate(strings.TrimSpace(h.Description), maxDescriptionLength),
		Date:        formatDate(h.Date),
		Publisher:   h.Publisher.Username,
		Repository:  cleanRepositoryURL(h.Links.Repository),
	}
}

// parseCLISearch reads npm search --json output
func parseCLISearch(raw []byte) ([]SearchHit, error) {
	var hits []cliSearchHit
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, fmt.Errorf("failed to parse npm search output: %w", err)
	}
	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.toHit())
	}
	return out, nil
}

// parseRegistrySearch reads the registry's /-/v1/search response
func parseRegistrySearch(raw []byte) ([]SearchHit, error) {
	var resp struct {
		Objects []struct {
			Package cliSearchHit `json:"package"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse registry search response: %w", err)
	}
	out := make([]SearchHit, 0, len(resp.Objects))
	for _, o := range resp.Objects {
		out = append(out, o.Package.toHit())
	}
	return out, nil
}

// stringOrField reads a value that is either a string or an object holding
// the string under field
func stringOrField(raw json.RawMessage, field string) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) == nil {
		if v, ok := m[field].(string); ok {
			return v
		}
	}
	return ""
}

func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var s string
	if json.Unmarshal(raw, &s) == nil && s != "" {
		return []string{s}
	}
	return nil
}

// deprecation reads a deprecated field, which may be a message or false
func deprecation(raw json.RawMessage) string {
	var s string
	if len(raw) > 0 && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

// cleanRepositoryURL turns git+https://github.com/o/r.git into https://github.com/o/r
func cleanRepositoryURL(u string) string {
	u = strings.TrimPrefix(u, "git+")
	u = strings.TrimSuffix(u, ".git")
	if rest, ok := strings.CutPrefix(u, "git://"); ok {
		u = "https://" + rest
	}
	if rest, ok := strings.CutPrefix(u, "ssh://git@"); ok {
		u = "https://" + rest
	}
	return u
}

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

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
