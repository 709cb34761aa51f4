package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = &executor.CommandError{Category: executor.CategoryNotFound, Message: "HTTP 404: Not Found"}

type fakeSource struct {
	branches      map[string][]ContentItem
	failures      map[string]error
	defaultBranch string
	defaultErr    error

	listed       []string
	defaultCalls int
}

func (f *fakeSource) ListContents(_ context.Context, _, _, _, ref string) ([]ContentItem, error) {
	f.listed = append(f.listed, ref)
	if err, ok := f.failures[ref]; ok {
		return nil, err
	}
	if items, ok := f.branches[ref]; ok {
		return items, nil
	}
	return nil, errNotFound
}

func (f *fakeSource) DefaultBranch(context.Context, string, string) (string, error) {
	f.defaultCalls++
	return f.defaultBranch, f.defaultErr
}

var readme = []ContentItem{{Name: "README.md", Path: "README.md", Type: "file", Size: 10}}

func TestResolve_RequestedBranch(t *testing.T) {
	src := &fakeSource{branches: map[string][]ContentItem{"feature": readme}}

	res, err := NewBranchResolver(src, nil).Resolve(context.Background(), "o", "r", "feature", "")
	require.NoError(t, err)
	assert.Equal(t, "feature", res.Branch)
	assert.False(t, res.FellBack)
	assert.Equal(t, 0, src.defaultCalls, "default branch is fetched lazily")
}

func TestResolve_DefaultBranchStopsSearch(t *testing.T) {
	src := &fakeSource{
		branches:      map[string][]ContentItem{"trunk": readme, "main": readme},
		defaultBranch: "trunk",
	}

	res, err := NewBranchResolver(src, nil).Resolve(context.Background(), "o", "r", "missing", "src")
	require.NoError(t, err)
	assert.Equal(t, "trunk", res.Branch)
	assert.True(t, res.FellBack)
	assert.Equal(t, []string{"missing", "trunk"}, src.listed, "no common branch probed after success")
	assert.Equal(t, 1, src.defaultCalls)
}

func TestResolve_NoRequestedUsesDefault(t *testing.T) {
	src := &fakeSource{branches: map[string][]ContentItem{"main": readme}, defaultBranch: "main"}

	res, err := NewBranchResolver(src, nil).Resolve(context.Background(), "o", "r", "", "")
	require.NoError(t, err)
	assert.Equal(t, "main", res.Branch)
	assert.False(t, res.FellBack)
	assert.Equal(t, []string{"main"}, src.listed, "default equal to a common branch is not probed twice")
}

func TestResolve_MetadataFailureSkipsDefault(t *testing.T) {
	src := &fakeSource{
		branches:   map[string][]ContentItem{"develop": readme},
		defaultErr: errors.New("HTTP 502"),
	}

	res, err := NewBranchResolver(src, nil).Resolve(context.Background(), "o", "r", "x", "")
	require.NoError(t, err)
	assert.Equal(t, "develop", res.Branch)
	assert.Equal(t, []string{"x", "main", "master", "develop"}, res.Attempted)
}

func TestResolve_NonNotFoundStops(t *testing.T) {
	denied := &executor.CommandError{Category: executor.CategoryAccessDenied, Message: "HTTP 403"}
	src := &fakeSource{
		failures:      map[string]error{"main": denied},
		defaultBranch: "main",
	}

	_, err := NewBranchResolver(src, nil).Resolve(context.Background(), "o", "r", "x", "")
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, []string{"x", "main"}, src.listed)
}

func TestResolve_Exhausted(t *testing.T) {
	src := &fakeSource{defaultBranch: "trunk"}

	_, err := NewBranchResolver(src, nil).Resolve(context.Background(), "o", "r", "feature", "docs")
	var exhausted *BranchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []string{"feature", "trunk", "main", "master", "develop", "dev"}, exhausted.Attempted)
	assert.True(t, exhausted.RepoConfirmed)
	assert.True(t, executor.IsNotFound(err), "unwraps to the last probe failure")
	assert.Contains(t, err.Error(), "docs")
}

func TestResolve_ExhaustedUnconfirmedRepo(t *testing.T) {
	src := &fakeSource{defaultErr: errNotFound}

	_, err := NewBranchResolver(src, nil).Resolve(context.Background(), "o", "nope", "", "")
	var exhausted *BranchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.False(t, exhausted.RepoConfirmed)
	assert.Equal(t, CommonBranches, exhausted.Attempted)
}
