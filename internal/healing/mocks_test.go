package healing

import (
	"context"
	"sync"
)

// --- Collaborator stubs ---

type stubSCM struct {
	mu sync.Mutex

	diff    string
	diffErr error

	trees   map[string][]TreeEntry
	treeErr error

	files   map[string]string
	fileErr error

	branchErr       error
	createdBranches []string

	commitErr       error
	commits         []string
	commitEncodings []string

	mrURL   string
	mrErr   error
	mrCalls int
}

func (s *stubSCM) CompareLatestChange(ctx context.Context, gitlabID string) (string, error) {
	return s.diff, s.diffErr
}

func (s *stubSCM) GetTree(ctx context.Context, gitlabID, path string, recursive bool) ([]TreeEntry, error) {
	if s.treeErr != nil {
		return nil, s.treeErr
	}
	return s.trees[path], nil
}

func (s *stubSCM) GetFile(ctx context.Context, gitlabID, path, ref string) (string, error) {
	if s.fileErr != nil {
		return "", s.fileErr
	}
	return s.files[path], nil
}

func (s *stubSCM) CreateBranch(ctx context.Context, gitlabID, branch, ref string) error {
	if s.branchErr != nil {
		return s.branchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createdBranches = append(s.createdBranches, branch)
	return nil
}

func (s *stubSCM) CommitFile(ctx context.Context, gitlabID, branch, path, content, encoding, message string) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, path)
	s.commitEncodings = append(s.commitEncodings, encoding)
	return nil
}

func (s *stubSCM) CreateMergeRequest(ctx context.Context, gitlabID, sourceBranch, targetBranch, title string) (string, error) {
	s.mu.Lock()
	s.mrCalls++
	s.mu.Unlock()
	if s.mrErr != nil {
		return "", s.mrErr
	}
	return s.mrURL, nil
}

type stubBuilds struct {
	mu sync.Mutex

	log    string
	logErr error

	triggerErr error
	triggered  []string

	results   []BuildResult
	resultIdx int
	resultErr error
}

func (b *stubBuilds) LastFailedBuildLog(ctx context.Context, job string) (string, error) {
	return b.log, b.logErr
}

func (b *stubBuilds) TriggerBuild(ctx context.Context, job, branch string) (int, error) {
	if b.triggerErr != nil {
		return 0, b.triggerErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.triggered = append(b.triggered, branch)
	return 7, nil
}

func (b *stubBuilds) BuildResult(ctx context.Context, job string, number int) (BuildResult, error) {
	if b.resultErr != nil {
		return BuildFailure, b.resultErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resultIdx >= len(b.results) {
		return BuildFailure, nil
	}
	r := b.results[b.resultIdx]
	b.resultIdx++
	return r, nil
}

type stubDelegate struct {
	apps    []string
	appsErr error

	located    *SuspectFilesResult
	locatedErr error

	fixErr   error
	patchErr error

	report    *Report
	reportErr error

	// barrier, when set, blocks InferSuspectApps until released. Used to
	// hold an attempt in flight.
	barrier chan struct{}
}

func (d *stubDelegate) InferSuspectApps(ctx context.Context, diff, buildLog string, applications []string) ([]string, error) {
	if d.barrier != nil {
		<-d.barrier
	}
	return d.apps, d.appsErr
}

func (d *stubDelegate) InferSuspectFiles(ctx context.Context, diff string, trees map[string][]TreeEntry, buildLog string) (*SuspectFilesResult, error) {
	return d.located, d.locatedErr
}

func (d *stubDelegate) RequestFix(ctx context.Context, path, originalCode string) (FileFix, error) {
	if d.fixErr != nil {
		return FileFix{}, d.fixErr
	}
	return FileFix{Path: path, Instruction: "change it", Explanation: "because"}, nil
}

func (d *stubDelegate) RequestPatch(ctx context.Context, fix FileFix, originalCode string) (PatchedFile, error) {
	if d.patchErr != nil {
		return PatchedFile{}, d.patchErr
	}
	return PatchedFile{Path: fix.Path, Content: "patched " + originalCode, Encoding: "text"}, nil
}

func (d *stubDelegate) GenerateReport(ctx context.Context, fixes []FileFix, resolutionSummary string) (*Report, error) {
	if d.reportErr != nil {
		return nil, d.reportErr
	}
	r := *d.report
	return &r, nil
}

// memTracker records every stage transition in order.
type memTracker struct {
	mu     sync.Mutex
	stages map[string][]Stage
	err    error
}

func newMemTracker() *memTracker {
	return &memTracker{stages: make(map[string][]Stage)}
}

func (t *memTracker) Advance(ctx context.Context, projectID string, stage Stage) error {
	if t.err != nil {
		return t.err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stages[projectID] = append(t.stages[projectID], stage)
	return nil
}

func (t *memTracker) Current(ctx context.Context, projectID string) (ProjectHealingState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.stages[projectID]
	if len(seq) == 0 {
		return ProjectHealingState{ProjectID: projectID, Stage: StageNone}, nil
	}
	return ProjectHealingState{ProjectID: projectID, Stage: seq[len(seq)-1]}, nil
}

func (t *memTracker) last(projectID string) Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.stages[projectID]
	if len(seq) == 0 {
		return StageNone
	}
	return seq[len(seq)-1]
}

func (t *memTracker) recorded(projectID string) []Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Stage(nil), t.stages[projectID]...)
}

type memReports struct {
	mu    sync.Mutex
	saved []*Report
	err   error
}

func (r *memReports) SaveReport(ctx context.Context, report *Report) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *report
	r.saved = append(r.saved, &copied)
	return nil
}

type stubDirectory struct {
	project *Project
	err     error
}

func (d *stubDirectory) Project(ctx context.Context, projectID string) (*Project, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.project, nil
}

type allowAll struct{}

func (allowAll) Authorize(ctx context.Context, projectID, credential string) error { return nil }

type denyAll struct{}

func (denyAll) Authorize(ctx context.Context, projectID, credential string) error {
	return ErrUnauthorized
}
