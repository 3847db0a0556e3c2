package healing

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the caller credential does not resolve to
// an actor allowed to heal the project.
var ErrUnauthorized = errors.New("caller not authorized for project")

// ErrAttemptInFlight is returned when a healing attempt is already running
// for the project. Attempts for the same project are mutually exclusive.
var ErrAttemptInFlight = errors.New("healing attempt already in flight for project")

// StageError tags a failure with the project and the stage at which the
// attempt stopped. It is what Run surfaces to callers on any stage failure.
type StageError struct {
	ProjectID string
	Stage     Stage
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("healing project %s: stage %s: %v", e.ProjectID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// malformedf marks a delegate response that violated its contract (missing
// field, empty list). Treated identically to an unreachable upstream.
func malformedf(format string, args ...any) error {
	return fmt.Errorf("malformed delegate response: "+format, args...)
}
