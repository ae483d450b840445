// Package bootstrap drives the run-level setup stages that precede the
// DAG scheduler (§4.3's Stage 0 through Stage 3): bootstrap and optional
// clarification, decomposition into task folders, and dependency
// assignment, falling back to a sequential chain when the dependency
// analyzer leaves a task's @dependencies line unwritten.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskforge/taskforge/internal/dag"
	tferrors "github.com/taskforge/taskforge/internal/errors"
	"github.com/taskforge/taskforge/internal/executor"
	"github.com/taskforge/taskforge/internal/state"
)

// ErrClarificationPending is returned by Run when the bootstrap stage has
// written clarification questions and the run must halt until the
// operator supplies CLARIFICATION_ANSWERS.json and resumes.
var ErrClarificationPending = errors.New("bootstrap: clarification pending, run halted")

// PromptBuilder renders the run-level setup prompts.
type PromptBuilder interface {
	Bootstrap(objective string) string
	Decomposition(objective string) string
	DependencyAssignment(objective string) string
}

// Bootstrap runs the one-time, sequential run-setup pipeline for a run.
type Bootstrap struct {
	store      *state.Store
	supervisor *executor.Supervisor
	prompts    PromptBuilder
	workDir    string
	fastModel  string
}

// New creates a Bootstrap for the given run.
func New(store *state.Store, supervisor *executor.Supervisor, prompts PromptBuilder, workDir, fastModel string) *Bootstrap {
	return &Bootstrap{store: store, supervisor: supervisor, prompts: prompts, workDir: workDir, fastModel: fastModel}
}

// Run executes Stage 0 through Stage 3 for objective, the operator's
// seed prompt (ignored on resume once INITIAL_PROMPT.md already exists).
// It is idempotent per stage: a stage whose output already exists on disk
// is skipped, so Run can be called again after the operator answers a
// pending clarification.
func (b *Bootstrap) Run(ctx context.Context, objective string) error {
	if err := b.store.EnsureCoordDir(); err != nil {
		return fmt.Errorf("ensure coordination directory: %w", err)
	}

	if b.store.Exists(b.store.Paths().InitialPromptFile()) {
		seed, err := b.store.ReadFile(b.store.Paths().InitialPromptFile())
		if err != nil {
			return fmt.Errorf("read initial prompt: %w", err)
		}
		objective = string(seed)
	}

	if err := b.runBootstrapStage(ctx, objective); err != nil {
		return err
	}
	if err := b.runDecompositionStage(ctx, objective); err != nil {
		return err
	}
	return b.runDependencyAssignmentStage(ctx, objective)
}

// runBootstrapStage invokes the executor with the seed prompt. If the
// executor cannot proceed without clarification, it writes
// PENDING_CLARIFICATION.flag and CLARIFICATION_QUESTIONS.json; Run then
// halts with ErrClarificationPending until the operator supplies
// CLARIFICATION_ANSWERS.json and Run is invoked again, at which point the
// same prompt is re-sent and the executor reads its own prior output plus
// the operator's answers from disk to produce the finalized AI_PROMPT.md
// instead of further questions.
func (b *Bootstrap) runBootstrapStage(ctx context.Context, objective string) error {
	if b.store.Exists(b.store.Paths().AIPromptFile()) && !b.store.Exists(b.store.Paths().PendingClarificationFlag()) {
		return nil
	}

	if !b.store.Exists(b.store.Paths().InitialPromptFile()) {
		if err := b.store.WriteFile(b.store.Paths().InitialPromptFile(), []byte(objective)); err != nil {
			return fmt.Errorf("write initial prompt: %w", err)
		}
	}

	if _, err := b.invoke(ctx, "bootstrap", b.prompts.Bootstrap(objective)); err != nil {
		return fmt.Errorf("bootstrap stage: %w", err)
	}

	if b.store.Exists(b.store.Paths().PendingClarificationFlag()) {
		return ErrClarificationPending
	}

	if !b.store.Exists(b.store.Paths().AIPromptFile()) {
		return tferrors.NewStateError("bootstrap stage left AI_PROMPT.md unwritten", tferrors.ErrStateMissing)
	}
	return nil
}

// runDecompositionStage invokes the executor to produce task folders,
// each with a TASK.md, per §4.3 Stage 2. A successful run must leave at
// least one task folder behind.
func (b *Bootstrap) runDecompositionStage(ctx context.Context, objective string) error {
	existing, err := b.store.ListTasks()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	if _, err := b.invoke(ctx, "decomposition", b.prompts.Decomposition(objective)); err != nil {
		return fmt.Errorf("decomposition stage: %w", err)
	}

	tasks, err := b.store.ListTasks()
	if err != nil {
		return fmt.Errorf("list tasks after decomposition: %w", err)
	}
	if len(tasks) == 0 {
		return tferrors.NewStateError("decomposition stage produced no task folders", tferrors.ErrStateMissing)
	}
	return nil
}

// runDependencyAssignmentStage invokes the executor to annotate every
// TASK.md with an @dependencies line, per §4.3 Stage 3. Any task the
// analyzer left without one falls back to a sequential dependency on the
// task immediately before it in sorted id order, per spec.md §4.3's
// explicit fallback clause.
func (b *Bootstrap) runDependencyAssignmentStage(ctx context.Context, objective string) error {
	tasks, err := b.store.ListTasks()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if b.allAnnotated(tasks) {
		return nil
	}

	if _, err := b.invoke(ctx, "dependency_assignment", b.prompts.DependencyAssignment(objective)); err != nil {
		return fmt.Errorf("dependency assignment stage: %w", err)
	}

	return b.applySequentialFallback(tasks)
}

func (b *Bootstrap) allAnnotated(tasks []string) bool {
	for _, id := range tasks {
		contents, err := b.store.ReadTaskFile(id)
		if err != nil {
			return false
		}
		if _, ok := dag.ParseDependencies(contents); !ok {
			return false
		}
	}
	return true
}

// applySequentialFallback rewrites TASK.md for any task the analyzer
// still left without an @dependencies line, declaring a dependency on the
// task immediately before it in tasks' order (already sorted by id via
// Store.ListTasks), or none for the first.
func (b *Bootstrap) applySequentialFallback(tasks []string) error {
	for i, id := range tasks {
		contents, err := b.store.ReadTaskFile(id)
		if err != nil {
			return fmt.Errorf("read task file for %s: %w", id, err)
		}
		if _, ok := dag.ParseDependencies(contents); ok {
			continue
		}

		dep := "none"
		if i > 0 {
			dep = tasks[i-1]
		}
		rewritten := fmt.Sprintf("@dependencies %s\n%s", dep, contents)
		if err := b.store.WriteFile(b.store.Paths().TaskFile(id), []byte(rewritten)); err != nil {
			return fmt.Errorf("write fallback dependency for %s: %w", id, err)
		}
	}
	return nil
}

func (b *Bootstrap) invoke(ctx context.Context, stage, prompt string) (*executor.Result, error) {
	log, err := b.store.AppendLogWriter()
	if err != nil {
		return nil, fmt.Errorf("open log writer: %w", err)
	}
	defer log.Close()
	return b.supervisor.Run(ctx, executor.Request{
		Stage: stage, Prompt: prompt, Model: b.fastModel, WorkDir: b.workDir, Log: log,
	})
}
