package healing

import (
	"context"
	"fmt"
)

// Collector gathers the diagnostic raw material for one healing attempt.
type Collector struct {
	builds BuildSystem
	scm    SourceControl
}

// NewCollector creates a Collector.
func NewCollector(builds BuildSystem, scm SourceControl) *Collector {
	return &Collector{builds: builds, scm: scm}
}

// FailingBuildLog fetches the console text of the project's most recent
// failing build.
func (c *Collector) FailingBuildLog(ctx context.Context, project *Project) (string, error) {
	log, err := c.builds.LastFailedBuildLog(ctx, project.JenkinsJob)
	if err != nil {
		return "", fmt.Errorf("fetch failing build log: %w", err)
	}
	return log, nil
}

// Collect combines the failing build log with the project's deployed
// application names and the most recent source diff.
func (c *Collector) Collect(ctx context.Context, project *Project, buildLog string) (*Diagnostics, error) {
	diff, err := c.scm.CompareLatestChange(ctx, project.GitLabID)
	if err != nil {
		return nil, fmt.Errorf("compare latest change: %w", err)
	}
	return &Diagnostics{
		BuildLog:     buildLog,
		Applications: project.Applications,
		Diff:         diff,
	}, nil
}

// Trees fetches the source subtree of each suspect application. The listings
// are localization context for the delegate, never executed.
func (c *Collector) Trees(ctx context.Context, project *Project, suspects []string) (map[string][]TreeEntry, error) {
	trees := make(map[string][]TreeEntry, len(suspects))
	for _, app := range suspects {
		entries, err := c.scm.GetTree(ctx, project.GitLabID, app, true)
		if err != nil {
			return nil, fmt.Errorf("fetch tree for %s: %w", app, err)
		}
		trees[app] = entries
	}
	return trees, nil
}

// Originals retrieves current file content at the branch under repair for
// every suspect path, keyed by path.
func (c *Collector) Originals(ctx context.Context, project *Project, paths []string) (map[string]string, error) {
	originals := make(map[string]string, len(paths))
	for _, path := range paths {
		content, err := c.scm.GetFile(ctx, project.GitLabID, path, project.DefaultBranch)
		if err != nil {
			return nil, fmt.Errorf("fetch original %s: %w", path, err)
		}
		originals[path] = content
	}
	return originals, nil
}
