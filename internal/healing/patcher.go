package healing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Patcher commits delegate-generated patches to a fresh branch.
type Patcher struct {
	scm SourceControl
	now func() time.Time
}

// NewPatcher creates a Patcher.
func NewPatcher(scm SourceControl) *Patcher {
	return &Patcher{scm: scm, now: time.Now}
}

// branchName builds a fix-branch name from the current time plus a short
// attempt-unique suffix, so rapid repeated attempts cannot collide.
func (p *Patcher) branchName() string {
	return fmt.Sprintf("remedy/fix-%s-%s",
		p.now().UTC().Format("20060102-150405"),
		uuid.NewString()[:8])
}

// Apply creates a new branch off the project's default branch and commits
// every patched file to it individually. Returns the branch name.
func (p *Patcher) Apply(ctx context.Context, project *Project, patches []PatchedFile) (string, error) {
	if len(patches) == 0 {
		return "", fmt.Errorf("no patched files to apply")
	}

	branch := p.branchName()
	if err := p.scm.CreateBranch(ctx, project.GitLabID, branch, project.DefaultBranch); err != nil {
		return "", fmt.Errorf("create branch %s: %w", branch, err)
	}

	for _, patch := range patches {
		encoding := patch.Encoding
		if encoding == "" {
			encoding = "text"
		}
		message := fmt.Sprintf("fix(%s): automated repair of %s", project.Name, patch.Path)
		if err := p.scm.CommitFile(ctx, project.GitLabID, branch, patch.Path, patch.Content, encoding, message); err != nil {
			return "", fmt.Errorf("commit %s to %s: %w", patch.Path, branch, err)
		}
	}
	return branch, nil
}

// OpenMergeRequest opens a merge request from the fix branch back to the
// project's default branch and returns its URL.
func (p *Patcher) OpenMergeRequest(ctx context.Context, project *Project, branch, title string) (string, error) {
	url, err := p.scm.CreateMergeRequest(ctx, project.GitLabID, branch, project.DefaultBranch, title)
	if err != nil {
		return "", fmt.Errorf("create merge request from %s: %w", branch, err)
	}
	return url, nil
}
