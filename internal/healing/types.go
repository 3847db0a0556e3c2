package healing

import "time"

// Project is the deployment-side view of a project under repair: where its
// source lives, which Jenkins job builds it, and which applications it deploys.
type Project struct {
	ID            string
	Name          string
	GitLabID      string
	JenkinsJob    string
	DefaultBranch string
	Applications  []string
}

// TreeEntry is one entry of a source-tree listing.
type TreeEntry struct {
	Path string
	Type string // "blob" or "tree"
}

// Diagnostics is the raw material for one healing attempt: the failing
// build's console text, the deployed application names and the most recent
// source diff.
type Diagnostics struct {
	BuildLog     string
	Applications []string
	Diff         string
}

// SuspectFilesResult is the delegate's localization answer. All fields are
// required; the orchestrator rejects a response with any of them missing.
type SuspectFilesResult struct {
	ErrorSummary   string
	Cause          string
	ResolutionHint string
	Files          []string
}

// FileFix pairs a suspect file with the delegate's fix instruction for it.
type FileFix struct {
	Path        string
	Instruction string
	Explanation string
}

// PatchedFile is AI-generated replacement content for one source file.
type PatchedFile struct {
	Path     string
	Content  string
	Encoding string // "text" or "base64"
}

// ReportStatus marks a deployment report as documenting a successful or a
// failed healing attempt.
type ReportStatus string

const (
	ReportSuccess ReportStatus = "SUCCESS"
	ReportFail    ReportStatus = "FAIL"
)

// Report is the persisted result of a completed healing attempt. It is
// written exactly once per attempt and immutable afterwards; a failed rebuild
// still produces one documenting the attempt.
type Report struct {
	AttemptID       string
	ProjectID       string
	Title           string
	Summary         string
	AppliedFiles    []string
	Notes           string
	Branch          string
	MergeRequestURL string
	Status          ReportStatus
	CreatedAt       time.Time
}

// ProjectHealingState is a ProgressTracker read: the last recorded stage for
// a project and when it was recorded.
type ProjectHealingState struct {
	ProjectID string
	Stage     Stage
	UpdatedAt time.Time
}
