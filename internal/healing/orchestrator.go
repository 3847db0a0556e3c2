package healing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator executes one healing attempt for a project end to end. Every
// stage boundary is recorded through the ProgressTracker before the stage
// runs, and any stage failure is converted into a recorded terminal failure
// rather than a stale in-flight marker.
type Orchestrator struct {
	directory ProjectDirectory
	access    AccessChecker
	collector *Collector
	delegate  Delegate
	patcher   *Patcher
	rebuilder *Rebuilder
	tracker   ProgressTracker
	reports   ReportStore
	log       *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	directory ProjectDirectory,
	access AccessChecker,
	collector *Collector,
	delegate Delegate,
	patcher *Patcher,
	rebuilder *Rebuilder,
	tracker ProgressTracker,
	reports ReportStore,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		directory: directory,
		access:    access,
		collector: collector,
		delegate:  delegate,
		patcher:   patcher,
		rebuilder: rebuilder,
		tracker:   tracker,
		reports:   reports,
		log:       log,
		inFlight:  make(map[string]bool),
	}
}

// Run executes a full healing attempt for projectID on behalf of the caller
// identified by credential, under a freshly generated attempt id.
func (o *Orchestrator) Run(ctx context.Context, projectID, credential string) (*Report, error) {
	return o.RunAttempt(ctx, projectID, credential, uuid.NewString())
}

// RunAttempt executes a full healing attempt under a caller-chosen attempt
// id, so the id can be handed out before the attempt finishes. It returns
// the persisted report on success and a *StageError tagged with the failing
// stage otherwise. Attempts for the same project are mutually exclusive; a
// second concurrent call gets ErrAttemptInFlight.
func (o *Orchestrator) RunAttempt(ctx context.Context, projectID, credential, attemptID string) (*Report, error) {
	if err := o.access.Authorize(ctx, projectID, credential); err != nil {
		return nil, fmt.Errorf("authorize caller for %s: %w", projectID, err)
	}

	project, err := o.directory.Project(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("resolve project %s: %w", projectID, err)
	}

	if !o.acquire(projectID) {
		return nil, ErrAttemptInFlight
	}
	defer o.release(projectID)

	log := o.log.With(zap.String("project", projectID), zap.String("attempt", attemptID))
	log.Info("healing attempt started", zap.String("job", project.JenkinsJob))

	report, err := o.attempt(ctx, project, attemptID, log)
	if err != nil {
		log.Warn("healing attempt failed", zap.Error(err))
		return nil, err
	}
	log.Info("healing attempt finished", zap.String("status", string(report.Status)))
	return report, nil
}

// attempt drives the stage sequence. Stage outputs feed the next stage, so
// the order is strictly sequential with no internal fan-out.
func (o *Orchestrator) attempt(ctx context.Context, project *Project, attemptID string, log *zap.Logger) (*Report, error) {
	if err := o.advance(ctx, project.ID, StageCollectingBuildLog); err != nil {
		return nil, err
	}
	buildLog, err := o.collector.FailingBuildLog(ctx, project)
	if err != nil {
		return nil, o.fail(ctx, project.ID, StageCollectingBuildLog, err)
	}

	if err := o.advance(ctx, project.ID, StageCollectingAppInfo); err != nil {
		return nil, err
	}
	diag, err := o.collector.Collect(ctx, project, buildLog)
	if err != nil {
		return nil, o.fail(ctx, project.ID, StageCollectingAppInfo, err)
	}

	if err := o.advance(ctx, project.ID, StageInferringSuspectApps); err != nil {
		return nil, err
	}
	suspects, err := o.delegate.InferSuspectApps(ctx, diag.Diff, diag.BuildLog, diag.Applications)
	if err == nil && len(suspects) == 0 {
		err = malformedf("empty suspect application list")
	}
	if err != nil {
		return nil, o.fail(ctx, project.ID, StageInferringSuspectApps, err)
	}
	log.Info("suspect applications identified", zap.Strings("apps", suspects))

	if err := o.advance(ctx, project.ID, StageCollectingTrees); err != nil {
		return nil, err
	}
	trees, err := o.collector.Trees(ctx, project, suspects)
	if err != nil {
		return nil, o.fail(ctx, project.ID, StageCollectingTrees, err)
	}

	if err := o.advance(ctx, project.ID, StageInferringSuspectFiles); err != nil {
		return nil, err
	}
	located, err := o.delegate.InferSuspectFiles(ctx, diag.Diff, trees, diag.BuildLog)
	if err == nil {
		err = validateSuspectFiles(located)
	}
	if err != nil {
		return nil, o.fail(ctx, project.ID, StageInferringSuspectFiles, err)
	}
	log.Info("suspect files identified", zap.Strings("files", located.Files))

	if err := o.advance(ctx, project.ID, StageFetchingOriginalCode); err != nil {
		return nil, err
	}
	originals, err := o.collector.Originals(ctx, project, located.Files)
	if err != nil {
		return nil, o.fail(ctx, project.ID, StageFetchingOriginalCode, err)
	}

	if err := o.advance(ctx, project.ID, StageRequestingFixInstructions); err != nil {
		return nil, err
	}
	fixes := make([]FileFix, 0, len(located.Files))
	for _, path := range located.Files {
		fix, err := o.delegate.RequestFix(ctx, path, originals[path])
		if err == nil && strings.TrimSpace(fix.Instruction) == "" {
			err = malformedf("empty fix instruction for %s", path)
		}
		if err != nil {
			return nil, o.fail(ctx, project.ID, StageRequestingFixInstructions, err)
		}
		fixes = append(fixes, fix)
	}

	if err := o.advance(ctx, project.ID, StageRequestingPatchedCode); err != nil {
		return nil, err
	}
	patches := make([]PatchedFile, 0, len(fixes))
	for _, fix := range fixes {
		patch, err := o.delegate.RequestPatch(ctx, fix, originals[fix.Path])
		if err == nil && strings.TrimSpace(patch.Content) == "" {
			err = malformedf("empty patch for %s", fix.Path)
		}
		if err != nil {
			return nil, o.fail(ctx, project.ID, StageRequestingPatchedCode, err)
		}
		patches = append(patches, patch)
	}

	if err := o.advance(ctx, project.ID, StageCommittingFixes); err != nil {
		return nil, err
	}
	branch, err := o.patcher.Apply(ctx, project, patches)
	if err != nil {
		return nil, o.fail(ctx, project.ID, StageCommittingFixes, err)
	}
	log.Info("patches committed", zap.String("branch", branch), zap.Int("files", len(patches)))

	if err := o.advance(ctx, project.ID, StageRebuilding); err != nil {
		return nil, err
	}
	result, err := o.rebuilder.Rebuild(ctx, project, branch)
	if err != nil {
		return nil, o.fail(ctx, project.ID, StageRebuilding, err)
	}
	rebuilt := result == BuildSuccess
	if rebuilt {
		if err := o.advance(ctx, project.ID, StageRebuildSucceeded); err != nil {
			return nil, err
		}
	} else {
		if err := o.advance(ctx, project.ID, StageRebuildFailed); err != nil {
			return nil, err
		}
	}

	if err := o.advance(ctx, project.ID, StageGeneratingReport); err != nil {
		return nil, err
	}
	report, err := o.delegate.GenerateReport(ctx, fixes, resolutionSummary(located, branch, rebuilt))
	if err == nil {
		err = validateReport(report)
	}
	if err != nil {
		return nil, o.fail(ctx, project.ID, StageGeneratingReport, err)
	}

	report.AttemptID = attemptID
	report.ProjectID = project.ID
	report.Branch = branch
	report.CreatedAt = time.Now().UTC()
	if rebuilt {
		report.Status = ReportSuccess
	} else {
		report.Status = ReportFail
	}

	// The merge request is opened before the report is persisted so the
	// persisted report can carry the link and stay immutable.
	if rebuilt {
		if err := o.advance(ctx, project.ID, StageCreatingMergeRequest); err != nil {
			return nil, err
		}
		title := fmt.Sprintf("Automated fix: %s", report.Title)
		url, err := o.patcher.OpenMergeRequest(ctx, project, branch, title)
		if err != nil {
			report.Status = ReportFail
			report.Notes = strings.TrimSpace(report.Notes + "\nmerge request creation failed: " + err.Error())
			if saveErr := o.reports.SaveReport(ctx, report); saveErr != nil {
				log.Warn("report persistence failed after merge request error", zap.Error(saveErr))
			}
			return nil, o.fail(ctx, project.ID, StageCreatingMergeRequest, err)
		}
		report.MergeRequestURL = url
	}

	// A failed rebuild still produces a report documenting the attempt.
	if err := o.reports.SaveReport(ctx, report); err != nil {
		return nil, o.fail(ctx, project.ID, StageGeneratingReport, fmt.Errorf("persist report: %w", err))
	}

	if rebuilt {
		if err := o.advance(ctx, project.ID, StageFinishedSuccess); err != nil {
			return nil, err
		}
		return report, nil
	}

	if err := o.advance(ctx, project.ID, StageFinishedFailure); err != nil {
		return nil, err
	}
	return nil, &StageError{ProjectID: project.ID, Stage: StageRebuildFailed, Err: fmt.Errorf("rebuild on %s finished with %s", branch, result)}
}

// Current exposes the tracker's last recorded stage for status polling.
func (o *Orchestrator) Current(ctx context.Context, projectID string) (ProjectHealingState, error) {
	return o.tracker.Current(ctx, projectID)
}

// advance records a stage transition. A tracker failure aborts the attempt
// like any other stage failure.
func (o *Orchestrator) advance(ctx context.Context, projectID string, stage Stage) error {
	if err := o.tracker.Advance(ctx, projectID, stage); err != nil {
		if stage.Terminal() {
			return &StageError{ProjectID: projectID, Stage: stage, Err: fmt.Errorf("record stage: %w", err)}
		}
		return o.fail(ctx, projectID, stage, fmt.Errorf("record stage: %w", err))
	}
	return nil
}

// fail records the terminal failure marker and wraps the cause with the stage
// at which the attempt stopped.
func (o *Orchestrator) fail(ctx context.Context, projectID string, stage Stage, cause error) error {
	if err := o.tracker.Advance(ctx, projectID, StageFinishedFailure); err != nil {
		o.log.Warn("recording terminal failure stage failed",
			zap.String("project", projectID), zap.Error(err))
	}
	return &StageError{ProjectID: projectID, Stage: stage, Err: cause}
}

func (o *Orchestrator) acquire(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[projectID] {
		return false
	}
	o.inFlight[projectID] = true
	return true
}

func (o *Orchestrator) release(projectID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, projectID)
}

func validateSuspectFiles(r *SuspectFilesResult) error {
	switch {
	case r == nil:
		return malformedf("missing suspect file response")
	case strings.TrimSpace(r.ErrorSummary) == "":
		return malformedf("missing error summary")
	case strings.TrimSpace(r.Cause) == "":
		return malformedf("missing root cause")
	case strings.TrimSpace(r.ResolutionHint) == "":
		return malformedf("missing resolution hint")
	case len(r.Files) == 0:
		return malformedf("empty suspect file list")
	}
	return nil
}

func validateReport(r *Report) error {
	switch {
	case r == nil:
		return malformedf("missing report response")
	case strings.TrimSpace(r.Title) == "":
		return malformedf("missing report title")
	case strings.TrimSpace(r.Summary) == "":
		return malformedf("missing report summary")
	case len(r.AppliedFiles) == 0:
		return malformedf("empty applied file list")
	}
	return nil
}

// resolutionSummary builds the narrative handed to the delegate for report
// generation.
func resolutionSummary(located *SuspectFilesResult, branch string, rebuilt bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\nCause: %s\nResolution: %s\nFix branch: %s\n",
		located.ErrorSummary, located.Cause, located.ResolutionHint, branch)
	if rebuilt {
		b.WriteString("Outcome: rebuild succeeded on the fix branch.")
	} else {
		b.WriteString("Outcome: rebuild failed on the fix branch.")
	}
	return b.String()
}
