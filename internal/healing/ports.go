package healing

import "context"

// SourceControl is the narrow view of the GitLab API the pipeline needs.
type SourceControl interface {
	CompareLatestChange(ctx context.Context, gitlabID string) (string, error)
	GetTree(ctx context.Context, gitlabID, path string, recursive bool) ([]TreeEntry, error)
	GetFile(ctx context.Context, gitlabID, path, ref string) (string, error)
	CreateBranch(ctx context.Context, gitlabID, branch, ref string) error
	CommitFile(ctx context.Context, gitlabID, branch, path, content, encoding, message string) error
	CreateMergeRequest(ctx context.Context, gitlabID, sourceBranch, targetBranch, title string) (string, error)
}

// BuildSystem is the narrow view of the Jenkins API the pipeline needs.
type BuildSystem interface {
	LastFailedBuildLog(ctx context.Context, job string) (string, error)
	TriggerBuild(ctx context.Context, job, branch string) (int, error)
	BuildResult(ctx context.Context, job string, number int) (BuildResult, error)
}

// BuildResult is the terminal (or pending) outcome of one Jenkins build.
type BuildResult string

const (
	BuildPending BuildResult = "PENDING"
	BuildSuccess BuildResult = "SUCCESS"
	BuildFailure BuildResult = "FAILURE"
)

// Terminal reports whether the build has finished.
func (r BuildResult) Terminal() bool {
	return r == BuildSuccess || r == BuildFailure
}

// Delegate wraps the four inference calls of the external AI service. Its
// reasoning is a black box; only the request/response contracts matter here.
type Delegate interface {
	InferSuspectApps(ctx context.Context, diff, buildLog string, applications []string) ([]string, error)
	InferSuspectFiles(ctx context.Context, diff string, trees map[string][]TreeEntry, buildLog string) (*SuspectFilesResult, error)
	RequestFix(ctx context.Context, path, originalCode string) (FileFix, error)
	RequestPatch(ctx context.Context, fix FileFix, originalCode string) (PatchedFile, error)
	GenerateReport(ctx context.Context, fixes []FileFix, resolutionSummary string) (*Report, error)
}

// ProgressTracker durably records the stage a project's current attempt is
// in. Advance is an unconditional overwrite; Current returns StageNone when
// nothing has ever been recorded for the project.
type ProgressTracker interface {
	Advance(ctx context.Context, projectID string, stage Stage) error
	Current(ctx context.Context, projectID string) (ProjectHealingState, error)
}

// ReportStore persists completed deployment reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report *Report) error
}

// ProjectDirectory resolves a project identifier to its deployment metadata.
type ProjectDirectory interface {
	Project(ctx context.Context, projectID string) (*Project, error)
}

// AccessChecker resolves a caller credential for a project. Authorization
// policy lives outside this package.
type AccessChecker interface {
	Authorize(ctx context.Context, projectID, credential string) error
}
