package review

import (
	"github.com/taskforge/taskforge/internal/errors"
	"github.com/taskforge/taskforge/internal/state"
)

// checkReady applies the pre-review structural gate (§4.4.1): every phase
// must be completed, and every beyond-the-basics cleanup item must be
// satisfied. A gate failure is a *errors.ReviewError wrapping
// errors.ErrNotReadyForReview and never reaches the executor.
func checkReady(taskID string, record *state.ExecutionRecord) error {
	if !record.AllPhasesCompleted() {
		return errors.NewReviewError("not all phases are completed", errors.ErrNotReadyForReview).
			WithTaskID(taskID)
	}
	if !record.CleanupComplete() {
		return errors.NewReviewError("beyond-the-basics cleanup is incomplete", errors.ErrNotReadyForReview).
			WithTaskID(taskID)
	}
	return nil
}
