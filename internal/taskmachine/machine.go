// Package taskmachine drives a single task through the per-task pipeline
// stages (§4.3): blueprint+planning, implementation, and (by delegation)
// review+escalation. It implements scheduler.Runner, inferring a task's
// current stage from which documents already exist on disk rather than
// from an explicit stage field, per the filesystem-as-state-machine design
// (§4.1's "Design decisions").
package taskmachine

import (
	"context"
	"fmt"

	event "github.com/taskforge/taskforge/internal/events"
	"github.com/taskforge/taskforge/internal/executor"
	"github.com/taskforge/taskforge/internal/scheduler"
	"github.com/taskforge/taskforge/internal/state"
)

// PromptBuilder constructs stage prompts from task state. Implemented by
// internal/prompt; kept narrow here so the task machine has no direct
// dependency on template storage or override resolution.
type PromptBuilder interface {
	Blueprint(taskID, taskFile string) string
	Implementation(taskID, blueprint string, record *state.ExecutionRecord) string
	Reanalysis(taskID, blueprint string, record *state.ExecutionRecord) string
	Reflection(taskID, blueprint string, record *state.ExecutionRecord) string
}

// Reviewer drives a task through stage 6 (review, escalation, and
// re-analysis triggering), per §4.4. Implemented by internal/review; kept
// narrow here for the same reason as scheduler.Runner/Finalizer.
type Reviewer interface {
	Review(ctx context.Context, taskID string) (scheduler.Outcome, error)
}

// Machine drives the per-task pipeline. One Machine serves an entire run;
// RunStage is safe for concurrent use across distinct task ids (the
// scheduler never dispatches the same task id twice concurrently).
type Machine struct {
	store      *state.Store
	supervisor *executor.Supervisor
	prompts    PromptBuilder
	reviewer   Reviewer
	bus        *event.Bus
	runID      string
	workDir    string
	fastModel  string
	hardModel  string

	reflection *reflectionIndex
}

// Option configures a Machine at construction.
type Option func(*Machine)

// WithBus attaches an event bus that receives stage-change notifications.
func WithBus(bus *event.Bus) Option { return func(m *Machine) { m.bus = bus } }

// New creates a Machine for a single run.
func New(store *state.Store, supervisor *executor.Supervisor, prompts PromptBuilder, reviewer Reviewer, runID, workDir, fastModel, hardModel string, opts ...Option) *Machine {
	m := &Machine{
		store:      store,
		supervisor: supervisor,
		prompts:    prompts,
		reviewer:   reviewer,
		runID:      runID,
		workDir:    workDir,
		fastModel:  fastModel,
		hardModel:  hardModel,
		reflection: newReflectionIndex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lessons returns every reflection lesson recorded so far across all tasks.
// The stage prompts do not include these lessons; later tasks' prompts are
// built without them.
func (m *Machine) Lessons() []LessonEntry {
	return m.reflection.all()
}

// RunStage implements scheduler.Runner. It infers the task's current stage
// from disk state, runs exactly one stage attempt, and reports the outcome.
func (m *Machine) RunStage(ctx context.Context, taskID string) (scheduler.Outcome, error) {
	record, err := m.store.ReadExecution(taskID)
	if err != nil {
		record = &state.ExecutionRecord{Status: state.StatusPending}
	}

	// The attempt counter is the scheduler's only signal for the attempt
	// budget (§4.3/§4.6); bump and persist it before invoking the stage so
	// the budget is enforced even if this attempt's executor run fails
	// outright or never produces an execution.json of its own.
	record.Attempts++
	if err := m.store.WriteExecution(taskID, record); err != nil {
		return scheduler.OutcomeStillBlocked, fmt.Errorf("persist attempt counter for %s: %w", taskID, err)
	}

	switch {
	case !m.store.Exists(m.store.Paths().BlueprintFile(taskID)):
		return m.runBlueprintStage(ctx, taskID, record)
	case !record.IsCompleted():
		return m.runImplementationStage(ctx, taskID, record)
	case !m.store.HasApprovedReview(taskID):
		return m.reviewer.Review(ctx, taskID)
	default:
		return scheduler.OutcomeApproved, nil
	}
}

// runBlueprintStage runs stage 4: the executor is asked to produce
// BLUEPRINT.md and an execution.json skeleton, and may instead split the
// task by deleting its folder and writing subtask folders in its place. The
// task machine does not itself write these files — the executor, as the
// filesystem-mutating collaborator, does — so the outcome is inferred by
// re-reading disk state after the run.
func (m *Machine) runBlueprintStage(ctx context.Context, taskID string, record *state.ExecutionRecord) (scheduler.Outcome, error) {
	taskFile, err := m.store.ReadTaskFile(taskID)
	if err != nil {
		return scheduler.OutcomeStillBlocked, fmt.Errorf("read task file for %s: %w", taskID, err)
	}

	if err := m.transition(taskID, record, event.StageBlueprint); err != nil {
		return scheduler.OutcomeStillBlocked, err
	}
	prompt := m.prompts.Blueprint(taskID, taskFile)

	if _, err := m.invoke(ctx, taskID, "blueprint", prompt, m.fastModel); err != nil {
		return m.recordStageError(taskID, record, err)
	}

	if !m.store.Exists(m.store.Paths().TaskFile(taskID)) {
		// The executor deleted this folder in favor of subtask folders.
		return scheduler.OutcomeSplit, nil
	}

	if !m.store.Exists(m.store.Paths().BlueprintFile(taskID)) {
		return m.recordStageError(taskID, record, fmt.Errorf("blueprint stage left BLUEPRINT.md unwritten"))
	}

	return scheduler.OutcomeStillBlocked, nil
}

// runImplementationStage runs stage 5, or its §4.4.6 deep re-analysis
// variant once a task has accumulated enough failed attempts.
func (m *Machine) runImplementationStage(ctx context.Context, taskID string, record *state.ExecutionRecord) (scheduler.Outcome, error) {
	blueprint, err := m.store.ReadBlueprint(taskID)
	if err != nil {
		return scheduler.OutcomeStillBlocked, fmt.Errorf("read blueprint for %s: %w", taskID, err)
	}

	if err := m.transition(taskID, record, event.StageImplementation); err != nil {
		return scheduler.OutcomeStillBlocked, err
	}

	var prompt, stage, model string
	if record.NeedsReanalysis() {
		prompt, stage, model = m.prompts.Reanalysis(taskID, blueprint, record), "reanalysis", m.hardModel
	} else {
		prompt, stage, model = m.prompts.Implementation(taskID, blueprint, record), "implementation", m.fastModel
	}

	if _, err := m.invoke(ctx, taskID, stage, prompt, model); err != nil {
		return m.recordStageError(taskID, record, err)
	}

	updated, err := m.store.ReadExecution(taskID)
	if err != nil {
		return scheduler.OutcomeStillBlocked, fmt.Errorf("read execution record for %s after implementation: %w", taskID, err)
	}

	m.maybeReflect(ctx, taskID, blueprint, updated)

	return scheduler.OutcomeStillBlocked, nil
}

// invoke runs one executor attempt, opening and closing this invocation's
// own append stream onto the run's shared log file.
func (m *Machine) invoke(ctx context.Context, taskID, stage, prompt, model string) (*executor.Result, error) {
	log, err := m.store.AppendLogWriter()
	if err != nil {
		return nil, fmt.Errorf("open log writer: %w", err)
	}
	defer log.Close()

	return m.supervisor.Run(ctx, executor.Request{
		TaskID:  taskID,
		Stage:   stage,
		Prompt:  prompt,
		Model:   model,
		WorkDir: m.workDir,
		Log:     log,
	})
}

// recordStageError appends a failure to the task's error history and
// persists it, reporting the task as still blocked (not a Runner-level
// error) so the scheduler retries it within its attempt budget.
func (m *Machine) recordStageError(taskID string, record *state.ExecutionRecord, stageErr error) (scheduler.Outcome, error) {
	record.ErrorHistory = append(record.ErrorHistory, state.ErrorEntry{Message: stageErr.Error()})
	if err := m.store.WriteExecution(taskID, record); err != nil {
		return scheduler.OutcomeStillBlocked, fmt.Errorf("persist error history for %s: %w", taskID, err)
	}
	return scheduler.OutcomeStillBlocked, nil
}

// transition records a stage change on the event bus and persists the
// record's currentPhase field, so a task progressing normally (no stage
// ever erroring, hence never going through recordStageError) still reports
// its current stage to `taskforge status` and to the next RunStage call.
func (m *Machine) transition(taskID string, record *state.ExecutionRecord, next event.Stage) error {
	previous := event.Stage(record.CurrentPhase)
	record.CurrentPhase = string(next)
	if err := m.store.WriteExecution(taskID, record); err != nil {
		return fmt.Errorf("persist stage transition for %s: %w", taskID, err)
	}
	if m.bus != nil {
		m.bus.Publish(event.NewStageChangeEvent(taskID, m.runID, previous, next))
	}
	return nil
}
