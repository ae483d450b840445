// Package review implements the review and escalation engine (§4.4): a
// pre-review structural gate, context-chain extraction, checklist
// completion, a two-pass review-with-escalation model, the completion
// predicate, and commit-on-success. It implements taskmachine.Reviewer.
package review

import (
	"context"
	"fmt"

	"github.com/taskforge/taskforge/internal/config"
	event "github.com/taskforge/taskforge/internal/events"
	"github.com/taskforge/taskforge/internal/executor"
	"github.com/taskforge/taskforge/internal/git"
	"github.com/taskforge/taskforge/internal/scheduler"
	"github.com/taskforge/taskforge/internal/state"
)

// PromptBuilder is the narrow slice of internal/prompt.Builder the review
// engine needs, kept separate from taskmachine.PromptBuilder since the two
// subsystems render different stage prompts.
type PromptBuilder interface {
	ChecklistCompletion(taskID, checklistPath, checklistByFile, checklistJSON string) string
	ReviewFast(taskID, blueprint, contextChain, checklist string) string
	ReviewHard(taskID, blueprint, contextChain, checklist, difficulty string) string
}

// Engine drives a single task through the review subsystem's state machine
// (§4.4.8): pending_review -> checklist_running -> pass1_running ->
// (pass2_running | blocked) -> (completed | blocked).
type Engine struct {
	store      *state.Store
	supervisor *executor.Supervisor
	prompts    PromptBuilder
	router     *git.Router
	bus        *event.Bus
	runID      string
	workDir    string
	fastModel  string
	hardModel  string
	review     config.ReviewConfig
	multiRepo  config.MultiRepoConfig
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithBus attaches an event bus that receives stage-change notifications.
func WithBus(bus *event.Bus) Option { return func(e *Engine) { e.bus = bus } }

// New creates a review Engine for a single run.
func New(store *state.Store, supervisor *executor.Supervisor, prompts PromptBuilder, router *git.Router, runID, workDir, fastModel, hardModel string, review config.ReviewConfig, multiRepo config.MultiRepoConfig, opts ...Option) *Engine {
	e := &Engine{
		store: store, supervisor: supervisor, prompts: prompts, router: router,
		runID: runID, workDir: workDir, fastModel: fastModel, hardModel: hardModel,
		review: review, multiRepo: multiRepo,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Review implements taskmachine.Reviewer. It is only called once a task's
// implementation stage has reported completed (taskmachine.Machine.RunStage
// gates on record.IsCompleted() first), so Review's own responsibility is
// narrower than spec.md §4.4's full description: the deep re-analysis
// trigger (§4.4.6) is instead owned directly by internal/taskmachine, which
// invokes it as an alternate implementation-stage attempt rather than a
// review-stage side effect — see DESIGN.md's Open Question resolution for
// why splitting it this way keeps the attempt-budget bookkeeping in one
// place.
func (e *Engine) Review(ctx context.Context, taskID string) (scheduler.Outcome, error) {
	record, err := e.store.ReadExecution(taskID)
	if err != nil {
		return scheduler.OutcomeStillBlocked, fmt.Errorf("read execution record for %s: %w", taskID, err)
	}

	e.transition(taskID)

	if err := checkReady(taskID, record); err != nil {
		return e.recordNotReady(taskID, record, err)
	}

	blueprint, err := e.store.ReadBlueprint(taskID)
	if err != nil {
		return scheduler.OutcomeStillBlocked, fmt.Errorf("read blueprint for %s: %w", taskID, err)
	}

	contextChain, err := e.buildContextChain(ctx, taskID, blueprint, record)
	if err != nil {
		return scheduler.OutcomeStillBlocked, fmt.Errorf("build context chain for %s: %w", taskID, err)
	}

	_, checklistJSON := e.runChecklist(ctx, taskID)

	difficulty := parseDifficulty(blueprint)
	completed, err := e.runReviewPass(ctx, taskID, blueprint, contextChain, checklistJSON, e.fastModel, "review-pass1")
	if err != nil {
		return scheduler.OutcomeStillBlocked, err
	}

	if completed && difficulty != DifficultyFast {
		completed, err = e.runReviewPassEscalated(ctx, taskID, blueprint, contextChain, checklistJSON, string(difficulty))
		if err != nil {
			return scheduler.OutcomeStillBlocked, err
		}
	}

	if !completed {
		return scheduler.OutcomeStillBlocked, nil
	}

	e.commitOnSuccess(taskID, blueprint)
	return scheduler.OutcomeApproved, nil
}

// runChecklist runs the §4.4.3 checklist-completion stage. A missing or
// empty checklist yields a zero ChecklistResult and is skipped, per spec.
func (e *Engine) runChecklist(ctx context.Context, taskID string) (ChecklistResult, string) {
	path := e.store.Paths().ReviewChecklistFile(taskID)
	data, err := e.store.ReadFile(path)
	if err != nil {
		return ChecklistResult{}, "[]"
	}

	items, err := parseChecklist(data)
	if err != nil || len(items) == 0 {
		return ChecklistResult{}, "[]"
	}

	prompt := e.prompts.ChecklistCompletion(taskID, path, formatChecklistByFile(items), string(data))
	if _, err := e.invoke(ctx, taskID, "checklist", prompt, e.fastModel); err != nil {
		return ChecklistResult{Success: false}, string(data)
	}

	reloaded, err := e.store.ReadFile(path)
	if err != nil {
		return ChecklistResult{Success: false}, string(data)
	}
	items, err = parseChecklist(reloaded)
	if err != nil {
		return ChecklistResult{Success: false}, string(reloaded)
	}

	completed, total := countReviewed(items)
	return ChecklistResult{Success: true, Completed: completed, Total: total}, string(reloaded)
}

// runReviewPass runs one review pass at the given model and reports whether
// the completion predicate (§4.4.5) holds afterward.
func (e *Engine) runReviewPass(ctx context.Context, taskID, blueprint, contextChain, checklistJSON, model, stage string) (bool, error) {
	prompt := e.prompts.ReviewFast(taskID, blueprint, contextChain, checklistJSON)
	if _, err := e.invoke(ctx, taskID, stage, prompt, model); err != nil {
		return false, nil
	}
	return e.isCompleted(taskID)
}

// runReviewPassEscalated runs the §4.4.4 pass-2 validation with the hard
// model, used once pass 1 concludes the task is completed and its declared
// difficulty is not "fast".
func (e *Engine) runReviewPassEscalated(ctx context.Context, taskID, blueprint, contextChain, checklistJSON, difficulty string) (bool, error) {
	prompt := e.prompts.ReviewHard(taskID, blueprint, contextChain, checklistJSON, difficulty)
	if _, err := e.invoke(ctx, taskID, "review-pass2", prompt, e.hardModel); err != nil {
		return false, nil
	}
	return e.isCompleted(taskID)
}

func (e *Engine) isCompleted(taskID string) (bool, error) {
	record, err := e.store.ReadExecution(taskID)
	if err != nil {
		return false, fmt.Errorf("read execution record for %s: %w", taskID, err)
	}
	return record.IsCompleted(), nil
}

// buildContextChain assembles the reading list (declared context chain plus
// artifact paths) and concurrently reads it.
func (e *Engine) buildContextChain(ctx context.Context, taskID, blueprint string, record *state.ExecutionRecord) (string, error) {
	extensions := e.review.ChecklistExtensions
	excludes := e.review.ChecklistExcludes

	paths := extractContextChainPaths(blueprint, extensions, excludes)
	paths = append(paths, artifactPaths(record)...)
	paths = dedupe(paths)

	return buildContextChain(ctx, paths, func(path string) ([]byte, error) {
		return e.store.ReadFile(e.workDir + "/" + path)
	})
}

// commitOnSuccess dispatches a scope-aware commit per §4.4.7. A commit
// failure (including a missing required scope) is appended to the run log
// and the task remains approved regardless, since the operator can always
// commit manually.
func (e *Engine) commitOnSuccess(taskID, blueprint string) {
	if e.router == nil {
		return
	}
	taskFile, err := e.store.ReadTaskFile(taskID)
	if err != nil {
		return
	}
	scope, _ := parseScope(taskFile)
	if err := e.router.Commit(scope, fmt.Sprintf("%s: reviewed and approved", taskID)); err != nil {
		if log, logErr := e.store.AppendLogWriter(); logErr == nil {
			fmt.Fprintf(log, "taskforge: commit for %s failed: %v\n", taskID, err)
			_ = log.Close()
		}
	}
}

// recordNotReady appends the gate failure to the task's error history,
// mirroring taskmachine.recordStageError: a review-gate rejection keeps the
// task in the retry loop rather than aborting the run.
func (e *Engine) recordNotReady(taskID string, record *state.ExecutionRecord, gateErr error) (scheduler.Outcome, error) {
	record.ErrorHistory = append(record.ErrorHistory, state.ErrorEntry{Stage: "review", Message: gateErr.Error()})
	if err := e.store.WriteExecution(taskID, record); err != nil {
		return scheduler.OutcomeStillBlocked, fmt.Errorf("persist error history for %s: %w", taskID, err)
	}
	return scheduler.OutcomeStillBlocked, nil
}

func (e *Engine) invoke(ctx context.Context, taskID, stage, prompt, model string) (*executor.Result, error) {
	log, err := e.store.AppendLogWriter()
	if err != nil {
		return nil, fmt.Errorf("open log writer: %w", err)
	}
	defer log.Close()

	return e.supervisor.Run(ctx, executor.Request{
		TaskID: taskID, Stage: stage, Prompt: prompt, Model: model, WorkDir: e.workDir, Log: log,
	})
}

// transition announces entry into the review stage. Its previous stage is
// always implementation, since Review is only invoked once
// taskmachine.Machine.RunStage has observed a completed implementation.
func (e *Engine) transition(taskID string) {
	if e.bus != nil {
		e.bus.Publish(event.NewStageChangeEvent(taskID, e.runID, event.StageImplementation, event.StageReview))
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
