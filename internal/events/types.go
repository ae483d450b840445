// Package event defines event types for decoupling components in Task Forge.
// These events enable communication between the CLI status renderer, the
// scheduler, and the task state machine without requiring direct
// dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.started", "wave.complete")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Task Lifecycle Events
// -----------------------------------------------------------------------------

// TaskStartedEvent is emitted when the scheduler dispatches a task to run
// whichever stage it is due for.
type TaskStartedEvent struct {
	baseEvent
	TaskID  string // Unique identifier for the task
	RunID   string // Run this task belongs to
	Attempt int    // Attempt number for this task (1-indexed)
}

// NewTaskStartedEvent creates a TaskStartedEvent.
func NewTaskStartedEvent(taskID, runID string, attempt int) TaskStartedEvent {
	return TaskStartedEvent{
		baseEvent: newBaseEvent("task.started"),
		TaskID:    taskID,
		RunID:     runID,
		Attempt:   attempt,
	}
}

// TaskCompleteEvent is emitted when a task reaches a terminal success state.
type TaskCompleteEvent struct {
	baseEvent
	TaskID string // Unique identifier for the task
	RunID  string // Run this task belongs to
}

// NewTaskCompleteEvent creates a TaskCompleteEvent.
func NewTaskCompleteEvent(taskID, runID string) TaskCompleteEvent {
	return TaskCompleteEvent{
		baseEvent: newBaseEvent("task.complete"),
		TaskID:    taskID,
		RunID:     runID,
	}
}

// TaskFailedEvent is emitted when running a task's current stage returns an
// error; the scheduler keeps the task pending for a later wave.
type TaskFailedEvent struct {
	baseEvent
	TaskID string // Unique identifier for the task
	RunID  string // Run this task belongs to
	Reason string // Failure reason
}

// NewTaskFailedEvent creates a TaskFailedEvent.
func NewTaskFailedEvent(taskID, runID, reason string) TaskFailedEvent {
	return TaskFailedEvent{
		baseEvent: newBaseEvent("task.failed"),
		TaskID:    taskID,
		RunID:     runID,
		Reason:    reason,
	}
}

// TaskBlockedEvent is emitted when a task exceeds its attempt budget and
// the scheduler removes it from the graph as permanently blocked.
type TaskBlockedEvent struct {
	baseEvent
	TaskID string // Unique identifier for the task
	RunID  string // Run this task belongs to
	Reason string // Why the task was blocked
}

// NewTaskBlockedEvent creates a TaskBlockedEvent.
func NewTaskBlockedEvent(taskID, runID, reason string) TaskBlockedEvent {
	return TaskBlockedEvent{
		baseEvent: newBaseEvent("task.blocked"),
		TaskID:    taskID,
		RunID:     runID,
		Reason:    reason,
	}
}

// TaskSplitEvent is emitted when a task is decomposed into subtasks mid-run,
// widening the DAG.
type TaskSplitEvent struct {
	baseEvent
	TaskID     string   // Task that was split
	RunID      string   // Run this task belongs to
	SubtaskIDs []string // Newly created subtask identifiers
}

// NewTaskSplitEvent creates a TaskSplitEvent.
func NewTaskSplitEvent(taskID, runID string, subtaskIDs []string) TaskSplitEvent {
	return TaskSplitEvent{
		baseEvent:  newBaseEvent("task.split"),
		TaskID:     taskID,
		RunID:      runID,
		SubtaskIDs: subtaskIDs,
	}
}

// -----------------------------------------------------------------------------
// Stage Change Events
// -----------------------------------------------------------------------------

// Stage represents the current stage of a task's state machine.
// Mirrors taskmachine.Stage for decoupling.
type Stage string

const (
	StageBootstrap      Stage = "bootstrap"
	StageClarified      Stage = "clarified_spec"
	StageDecomposition  Stage = "decomposition"
	StageDependencies   Stage = "dependency_assignment"
	StageBlueprint      Stage = "blueprint_planning"
	StageImplementation Stage = "implementation"
	StageReview         Stage = "review"
	StageComplete       Stage = "complete"
	StageFailed         Stage = "failed"
)

// StageChangeEvent is emitted when a task's state machine transitions
// between stages.
type StageChangeEvent struct {
	baseEvent
	TaskID        string // Task whose stage changed
	RunID         string // Run this task belongs to
	PreviousStage Stage  // Previous stage (empty if first transition)
	CurrentStage  Stage  // New current stage
}

// NewStageChangeEvent creates a StageChangeEvent.
func NewStageChangeEvent(taskID, runID string, previousStage, currentStage Stage) StageChangeEvent {
	return StageChangeEvent{
		baseEvent:     newBaseEvent("stage.changed"),
		TaskID:        taskID,
		RunID:         runID,
		PreviousStage: previousStage,
		CurrentStage:  currentStage,
	}
}

// -----------------------------------------------------------------------------
// Review Events
// -----------------------------------------------------------------------------

// ReviewVerdict represents the outcome of a review pass.
type ReviewVerdict string

const (
	VerdictApproved    ReviewVerdict = "approved"
	VerdictNeedsWork   ReviewVerdict = "needs_work"
	VerdictEscalated   ReviewVerdict = "escalated"
	VerdictReanalyzing ReviewVerdict = "reanalyzing"
)

// ReviewCompleteEvent is emitted when a review pass finishes judging a
// task's implementation.
type ReviewCompleteEvent struct {
	baseEvent
	TaskID  string        // Task that was reviewed
	RunID   string        // Run this task belongs to
	Verdict ReviewVerdict // Outcome of the review pass
	Attempt int           // Attempt number this review pass judged
}

// NewReviewCompleteEvent creates a ReviewCompleteEvent.
func NewReviewCompleteEvent(taskID, runID string, verdict ReviewVerdict, attempt int) ReviewCompleteEvent {
	return ReviewCompleteEvent{
		baseEvent: newBaseEvent("review.complete"),
		TaskID:    taskID,
		RunID:     runID,
		Verdict:   verdict,
		Attempt:   attempt,
	}
}

// -----------------------------------------------------------------------------
// Wave Events
// -----------------------------------------------------------------------------

// WaveStartedEvent is emitted when the scheduler begins dispatching a new
// topological wave of tasks.
type WaveStartedEvent struct {
	baseEvent
	RunID   string   // Run this wave belongs to
	WaveNum int      // 1-indexed wave number
	TaskIDs []string // Task IDs dispatched in this wave
}

// NewWaveStartedEvent creates a WaveStartedEvent.
func NewWaveStartedEvent(runID string, waveNum int, taskIDs []string) WaveStartedEvent {
	return WaveStartedEvent{
		baseEvent: newBaseEvent("wave.started"),
		RunID:     runID,
		WaveNum:   waveNum,
		TaskIDs:   taskIDs,
	}
}

// WaveCompleteEvent is emitted when every task dispatched in a wave has
// reached a terminal state.
type WaveCompleteEvent struct {
	baseEvent
	RunID        string // Run this wave belongs to
	WaveNum      int    // 1-indexed wave number
	SuccessCount int    // Tasks that completed successfully
	FailedCount  int    // Tasks that failed or were blocked
}

// NewWaveCompleteEvent creates a WaveCompleteEvent.
func NewWaveCompleteEvent(runID string, waveNum, successCount, failedCount int) WaveCompleteEvent {
	return WaveCompleteEvent{
		baseEvent:    newBaseEvent("wave.complete"),
		RunID:        runID,
		WaveNum:      waveNum,
		SuccessCount: successCount,
		FailedCount:  failedCount,
	}
}

// -----------------------------------------------------------------------------
// Run Events
// -----------------------------------------------------------------------------

// RunCompleteEvent is emitted when every task in a run has reached a
// terminal state and finalization has concluded.
type RunCompleteEvent struct {
	baseEvent
	RunID        string // Run that completed
	Success      bool   // True if every task completed successfully
	FailedCount  int
	SuccessCount int
}

// NewRunCompleteEvent creates a RunCompleteEvent.
func NewRunCompleteEvent(runID string, success bool, failedCount, successCount int) RunCompleteEvent {
	return RunCompleteEvent{
		baseEvent:    newBaseEvent("run.complete"),
		RunID:        runID,
		Success:      success,
		FailedCount:  failedCount,
		SuccessCount: successCount,
	}
}

// -----------------------------------------------------------------------------
// Metrics Events
// -----------------------------------------------------------------------------

// MetricsUpdateEvent is emitted when a task's resource usage is updated.
type MetricsUpdateEvent struct {
	baseEvent
	TaskID       string  // Task the metrics belong to
	RunID        string  // Run this task belongs to
	InputTokens  int64   // Total input tokens used
	OutputTokens int64   // Total output tokens used
	Cost         float64 // Estimated cost in USD
	Invocations  int     // Number of executor invocations made
}

// NewMetricsUpdateEvent creates a MetricsUpdateEvent.
func NewMetricsUpdateEvent(taskID, runID string, inputTokens, outputTokens int64, cost float64, invocations int) MetricsUpdateEvent {
	return MetricsUpdateEvent{
		baseEvent:    newBaseEvent("metrics.updated"),
		TaskID:       taskID,
		RunID:        runID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
		Invocations:  invocations,
	}
}

// TotalTokens returns the sum of input and output tokens.
func (e MetricsUpdateEvent) TotalTokens() int64 {
	return e.InputTokens + e.OutputTokens
}

// -----------------------------------------------------------------------------
// Finalization Events
// -----------------------------------------------------------------------------

// FinalizeCompleteEvent is emitted when the finalizer finishes its
// critical-bug sweep and final commit/push for a run.
type FinalizeCompleteEvent struct {
	baseEvent
	RunID   string // Run that was finalized
	Success bool   // Whether finalization succeeded
	Pushed  bool   // Whether the final commit was pushed
}

// NewFinalizeCompleteEvent creates a FinalizeCompleteEvent.
func NewFinalizeCompleteEvent(runID string, success, pushed bool) FinalizeCompleteEvent {
	return FinalizeCompleteEvent{
		baseEvent: newBaseEvent("finalize.complete"),
		RunID:     runID,
		Success:   success,
		Pushed:    pushed,
	}
}
