package healing

import "fmt"

// Stage identifies where a healing attempt currently stands. Stages advance
// monotonically within one attempt; the two Finished values are absorbing.
type Stage int

const (
	// StageNone is the uninitialized sentinel returned for projects that
	// have never had a healing attempt recorded.
	StageNone Stage = iota

	StageCollectingBuildLog
	StageCollectingAppInfo
	StageInferringSuspectApps
	StageCollectingTrees
	StageInferringSuspectFiles
	StageFetchingOriginalCode
	StageRequestingFixInstructions
	StageRequestingPatchedCode
	StageCommittingFixes
	StageRebuilding
	StageRebuildSucceeded
	StageRebuildFailed
	StageGeneratingReport
	StageCreatingMergeRequest

	// StageFinishedSuccess and StageFinishedFailure are terminal: once
	// recorded, no further transition happens for that attempt.
	StageFinishedSuccess
	StageFinishedFailure
)

var stageNames = map[Stage]string{
	StageNone:                      "none",
	StageCollectingBuildLog:        "collecting_build_log",
	StageCollectingAppInfo:         "collecting_app_info",
	StageInferringSuspectApps:      "inferring_suspect_apps",
	StageCollectingTrees:           "collecting_trees",
	StageInferringSuspectFiles:     "inferring_suspect_files",
	StageFetchingOriginalCode:      "fetching_original_code",
	StageRequestingFixInstructions: "requesting_fix_instructions",
	StageRequestingPatchedCode:     "requesting_patched_code",
	StageCommittingFixes:           "committing_fixes",
	StageRebuilding:                "rebuilding",
	StageRebuildSucceeded:          "rebuild_succeeded",
	StageRebuildFailed:             "rebuild_failed",
	StageGeneratingReport:          "generating_report",
	StageCreatingMergeRequest:      "creating_merge_request",
	StageFinishedSuccess:           "finished_success",
	StageFinishedFailure:           "finished_failure",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Terminal reports whether the stage is absorbing.
func (s Stage) Terminal() bool {
	return s == StageFinishedSuccess || s == StageFinishedFailure
}

// ParseStage maps a persisted stage name back to its Stage value.
func ParseStage(name string) (Stage, error) {
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}
	return StageNone, fmt.Errorf("unknown healing stage %q", name)
}
