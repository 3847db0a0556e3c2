package healing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatcherApply_CommitsEveryPatch(t *testing.T) {
	scm := &stubSCM{}
	p := NewPatcher(scm)

	patches := []PatchedFile{
		{Path: "src/order.py", Content: "fixed a"},
		{Path: "src/cart.py", Content: "fixed b"},
	}
	branch, err := p.Apply(context.Background(), testProject(), patches)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(branch, "remedy/fix-"), "branch %q", branch)
	require.Equal(t, []string{branch}, scm.createdBranches)
	assert.Equal(t, []string{"src/order.py", "src/cart.py"}, scm.commits)
}

func TestPatcherApply_ForwardsEncoding(t *testing.T) {
	scm := &stubSCM{}
	p := NewPatcher(scm)

	patches := []PatchedFile{
		{Path: "img/logo.png", Content: "cGFja2FnZSBtYWluCg==", Encoding: "base64"},
		{Path: "src/cart.py", Content: "fixed", Encoding: "text"},
		{Path: "src/order.py", Content: "fixed"},
	}
	_, err := p.Apply(context.Background(), testProject(), patches)
	require.NoError(t, err)

	// A base64-tagged patch keeps its tag; an untagged one defaults to text.
	assert.Equal(t, []string{"base64", "text", "text"}, scm.commitEncodings)
}

func TestPatcherApply_EmptyPatchSet(t *testing.T) {
	scm := &stubSCM{}
	p := NewPatcher(scm)

	_, err := p.Apply(context.Background(), testProject(), nil)
	require.Error(t, err)
	assert.Empty(t, scm.createdBranches)
}

func TestPatcherApply_BranchCreationFailure(t *testing.T) {
	scm := &stubSCM{branchErr: errors.New("branch exists")}
	p := NewPatcher(scm)

	_, err := p.Apply(context.Background(), testProject(), []PatchedFile{{Path: "a", Content: "x"}})
	require.Error(t, err)
	assert.Empty(t, scm.commits)
}

func TestPatcherBranchName_UniqueWithinSameSecond(t *testing.T) {
	p := NewPatcher(&stubSCM{})
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	a := p.branchName()
	b := p.branchName()

	assert.True(t, strings.HasPrefix(a, "remedy/fix-20260314-092653-"))
	assert.NotEqual(t, a, b, "same-second branches must not collide")
}

func TestPatcherOpenMergeRequest(t *testing.T) {
	scm := &stubSCM{mrURL: "https://gitlab.example.com/shop/-/merge_requests/5"}
	p := NewPatcher(scm)

	url, err := p.OpenMergeRequest(context.Background(), testProject(), "remedy/fix-x", "automated fix")
	require.NoError(t, err)
	assert.Equal(t, scm.mrURL, url)
	assert.Equal(t, 1, scm.mrCalls)
}
