// Package finalizer implements the run-level finalization step (§4.7):
// a critical-bug sweep over the cumulative diff, a scope-aware final
// commit and push, and the idempotent run completion marker. It
// implements scheduler.Finalizer.
package finalizer

import (
	"context"
	"fmt"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/errors"
	event "github.com/taskforge/taskforge/internal/events"
	"github.com/taskforge/taskforge/internal/executor"
	"github.com/taskforge/taskforge/internal/git"
	"github.com/taskforge/taskforge/internal/state"
)

// PromptBuilder renders the critical-bug sweep prompt.
type PromptBuilder interface {
	CriticalSweep(codeReview string) string
}

// Finalizer runs the critical-bug sweep and final commit/push once every
// task in a run is approved.
type Finalizer struct {
	store      *state.Store
	supervisor *executor.Supervisor
	prompts    PromptBuilder
	router     *git.Router
	ops        git.Operations
	bus        *event.Bus
	runID      string
	workDir    string
	hardModel  string
	cfg        config.FinalizerConfig
	runCfg     config.RunConfig
	multiRepo  config.MultiRepoConfig
}

// Option configures a Finalizer at construction.
type Option func(*Finalizer)

// WithBus attaches an event bus that receives the FinalizeCompleteEvent
// published after the final commit and push.
func WithBus(bus *event.Bus) Option { return func(f *Finalizer) { f.bus = bus } }

// New creates a Finalizer for the given run.
func New(store *state.Store, supervisor *executor.Supervisor, prompts PromptBuilder, router *git.Router, ops git.Operations, runID, workDir, hardModel string, cfg config.FinalizerConfig, runCfg config.RunConfig, multiRepo config.MultiRepoConfig, opts ...Option) *Finalizer {
	f := &Finalizer{
		store: store, supervisor: supervisor, prompts: prompts, router: router, ops: ops,
		runID: runID, workDir: workDir, hardModel: hardModel,
		cfg: cfg, runCfg: runCfg, multiRepo: multiRepo,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Finalize implements scheduler.Finalizer. It is idempotent: a prior
// successful run's completion marker short-circuits every subsequent
// invocation.
func (f *Finalizer) Finalize(ctx context.Context) error {
	if f.store.HasCompletionMarker() {
		return nil
	}

	if err := f.sweep(ctx); err != nil {
		return err
	}

	f.commitAndPush()

	if err := f.store.WriteFile(f.store.Paths().CompletionMarkerFile(), []byte("done\n")); err != nil {
		return fmt.Errorf("write completion marker: %w", err)
	}
	return nil
}

// sweep runs the critical-bug sweep loop: each iteration diffs the
// workspace against the configured base branch, asks the executor (hard
// model) to hunt for critical bugs in that diff, and checks for the
// terminal CRITICAL_REVIEW_PASSED marker the executor writes when it
// finds none. The loop gives up after cfg.MaxIterations rounds.
func (f *Finalizer) sweep(ctx context.Context) error {
	maxIterations := f.cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		diff, err := f.ops.Diff(f.diffDir(), f.cfg.BaseBranch)
		if err != nil {
			return fmt.Errorf("diff against %s: %w", f.cfg.BaseBranch, err)
		}

		prompt := f.prompts.CriticalSweep(diff)
		if _, err := f.invoke(ctx, fmt.Sprintf("critical-sweep-%d", i+1), prompt); err != nil {
			continue
		}

		if f.store.Exists(f.store.Paths().CriticalReviewPassedFile()) {
			return nil
		}
	}

	return errors.NewFinalizerError("critical-bug sweep did not pass within its iteration budget", errors.ErrFinalReviewExhausted).
		WithIterations(maxIterations)
}

// diffDir picks the repository the cumulative diff is computed against.
// In separate multi-repo mode there is no single root that spans both
// repositories, so the backend repository stands in; the sweep prompt's
// diff is a hardening pass over recent history, not a scope-routed
// artifact, so this approximation is acceptable.
func (f *Finalizer) diffDir() string {
	if f.multiRepo.Enabled && f.multiRepo.Mode == "separate" {
		return f.multiRepo.Backend
	}
	return f.workDir
}

// commitAndPush performs the finalizer's own scope-aware commit (§4.4.7's
// routing table, with scope forced to integration so multi-repo separate
// mode commits both repositories) and, if configured, pushes afterward.
// Failures do not abort finalization: each is appended to the run log, and
// the published FinalizeCompleteEvent reports Success=false (commit failed)
// or Pushed=false (push disabled or a push failed).
func (f *Finalizer) commitAndPush() {
	if f.router == nil {
		return
	}
	var failures []string
	message := fmt.Sprintf("taskforge: final review pass for run %s", f.runID)
	if err := f.router.Commit(git.ScopeIntegration, message); err != nil {
		failures = append(failures, fmt.Sprintf("final commit failed: %v", err))
	}
	committed := len(failures) == 0

	pushed := false
	if committed && f.runCfg.Push {
		pushed = true
		for _, dir := range f.pushDirs() {
			if err := f.ops.Push(dir, false); err != nil {
				pushed = false
				failures = append(failures, fmt.Sprintf("push %s failed: %v", dir, err))
			}
		}
	}
	if len(failures) > 0 {
		if log, err := f.store.AppendLogWriter(); err == nil {
			for _, line := range failures {
				fmt.Fprintf(log, "taskforge: %s\n", line)
			}
			_ = log.Close()
		}
	}
	f.publish(committed, pushed)
}

func (f *Finalizer) pushDirs() []string {
	if f.multiRepo.Enabled && f.multiRepo.Mode == "separate" {
		return []string{f.multiRepo.Backend, f.multiRepo.Frontend}
	}
	return []string{f.workDir}
}

func (f *Finalizer) invoke(ctx context.Context, stage, prompt string) (*executor.Result, error) {
	log, err := f.store.AppendLogWriter()
	if err != nil {
		return nil, fmt.Errorf("open log writer: %w", err)
	}
	defer log.Close()
	return f.supervisor.Run(ctx, executor.Request{
		Stage: stage, Prompt: prompt, Model: f.hardModel, WorkDir: f.workDir, Log: log,
	})
}

func (f *Finalizer) publish(success, pushed bool) {
	if f.bus != nil {
		f.bus.Publish(event.NewFinalizeCompleteEvent(f.runID, success, pushed))
	}
}
