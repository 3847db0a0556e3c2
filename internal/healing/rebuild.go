package healing

import (
	"context"
	"fmt"
	"time"
)

// Rebuilder triggers a CI build on the patched branch and waits for its
// terminal result.
type Rebuilder struct {
	builds       BuildSystem
	pollInterval time.Duration
	waitLimit    time.Duration
}

// NewRebuilder creates a Rebuilder with the given polling cadence and
// overall wait limit.
func NewRebuilder(builds BuildSystem, pollInterval, waitLimit time.Duration) *Rebuilder {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if waitLimit <= 0 {
		waitLimit = 15 * time.Minute
	}
	return &Rebuilder{builds: builds, pollInterval: pollInterval, waitLimit: waitLimit}
}

// Rebuild triggers a new build of the project's job on branch and polls
// until the build reaches a terminal result or the wait limit passes.
func (r *Rebuilder) Rebuild(ctx context.Context, project *Project, branch string) (BuildResult, error) {
	number, err := r.builds.TriggerBuild(ctx, project.JenkinsJob, branch)
	if err != nil {
		return BuildFailure, fmt.Errorf("trigger rebuild on %s: %w", branch, err)
	}

	deadline := time.Now().Add(r.waitLimit)
	for {
		result, err := r.builds.BuildResult(ctx, project.JenkinsJob, number)
		if err != nil {
			return BuildFailure, fmt.Errorf("poll build %s #%d: %w", project.JenkinsJob, number, err)
		}
		if result.Terminal() {
			return result, nil
		}
		if time.Now().After(deadline) {
			return BuildFailure, fmt.Errorf("build %s #%d still pending after %s", project.JenkinsJob, number, r.waitLimit)
		}
		select {
		case <-ctx.Done():
			return BuildFailure, ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
}
