package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	event "github.com/taskforge/taskforge/internal/events"
	"github.com/taskforge/taskforge/internal/state"
)

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(afero.NewMemMapFs(), "/workspace")
}

func writeTask(t *testing.T, store *state.Store, id, deps string) {
	t.Helper()
	if err := store.EnsureTaskDir(id); err != nil {
		t.Fatal(err)
	}
	content := "# " + id + "\n\n@dependencies " + deps + "\n"
	if err := store.WriteFile(store.Paths().TaskFile(id), []byte(content)); err != nil {
		t.Fatal(err)
	}
}

// fakeRunner approves every task on its first invocation and records
// call order for assertions.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	outcomes map[string]Outcome
	errs     map[string]error
	onRun    func(taskID string)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outcomes: make(map[string]Outcome), errs: make(map[string]error)}
}

func (f *fakeRunner) RunStage(ctx context.Context, taskID string) (Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, taskID)
	f.mu.Unlock()

	if f.onRun != nil {
		f.onRun(taskID)
	}

	if err, ok := f.errs[taskID]; ok {
		return 0, err
	}
	if outcome, ok := f.outcomes[taskID]; ok {
		return outcome, nil
	}
	return OutcomeApproved, nil
}

func markApproved(t *testing.T, store *state.Store, id string) {
	t.Helper()
	record := &state.ExecutionRecord{
		Status: state.StatusCompleted,
		Completion: state.Completion{
			Status:           state.CompletionCompleted,
			CodeReviewPassed: true,
		},
	}
	if err := store.WriteExecution(id, record); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteFile(store.Paths().CodeReviewFile(id), []byte("## Status\napproved\n")); err != nil {
		t.Fatal(err)
	}
}

func TestScheduler_Run_SimpleChain(t *testing.T) {
	store := newTestStore(t)
	writeTask(t, store, "TASK1", "none")
	writeTask(t, store, "TASK2", "[TASK1]")

	runner := newFakeRunner()
	runner.onRun = func(taskID string) {
		markApproved(t, store, taskID)
	}

	sched := New(store, runner, "run-1", 2, 20)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 stage invocations, got %d: %v", len(runner.calls), runner.calls)
	}
	if runner.calls[0] != "TASK1" {
		t.Errorf("expected TASK1 to run before TASK2, got order %v", runner.calls)
	}
}

func TestScheduler_Run_RespectsConcurrencyCap(t *testing.T) {
	store := newTestStore(t)
	writeTask(t, store, "TASK1", "none")
	writeTask(t, store, "TASK2", "none")
	writeTask(t, store, "TASK3", "none")

	var mu sync.Mutex
	inFlight, maxSeen := 0, 0
	runner := newFakeRunner()
	runner.onRun = func(taskID string) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)
		markApproved(t, store, taskID)

		mu.Lock()
		inFlight--
		mu.Unlock()
	}

	sched := New(store, runner, "run-1", 1, 20)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if maxSeen > 1 {
		t.Errorf("max concurrent in flight = %d, want <= 1", maxSeen)
	}
}

func TestScheduler_Run_AttemptLimitExceeded(t *testing.T) {
	store := newTestStore(t)
	writeTask(t, store, "TASK1", "none")

	record := &state.ExecutionRecord{Attempts: 3}
	if err := store.WriteExecution("TASK1", record); err != nil {
		t.Fatal(err)
	}

	runner := newFakeRunner()
	runner.outcomes["TASK1"] = OutcomeStillBlocked

	bus := event.NewBus()
	var blocked bool
	bus.Subscribe("task.blocked", func(e event.Event) {
		blocked = true
	})

	sched := New(store, runner, "run-1", 1, 3, WithBus(bus))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Run(ctx); err == nil {
		t.Fatal("Run() error = nil, want an error once the only task is permanently blocked")
	}
	if !blocked {
		t.Error("expected a task.blocked event to be published")
	}
}

func TestScheduler_Run_SplitRebuildsGraph(t *testing.T) {
	store := newTestStore(t)
	writeTask(t, store, "TASK1", "none")

	runner := newFakeRunner()
	runner.outcomes["TASK1"] = OutcomeSplit

	runner.onRun = func(taskID string) {
		switch taskID {
		case "TASK1":
			if err := store.RemoveTaskDir("TASK1"); err != nil {
				t.Fatal(err)
			}
			writeTask(t, store, "TASK1.1", "none")
		case "TASK1.1":
			markApproved(t, store, taskID)
		}
	}

	sched := New(store, runner, "run-1", 2, 20)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	found := false
	for _, id := range runner.calls {
		if id == "TASK1.1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected TASK1.1 to be dispatched after split, calls = %v", runner.calls)
	}
}

func TestScheduler_Run_InvokesFinalizer(t *testing.T) {
	store := newTestStore(t)
	writeTask(t, store, "TASK1", "none")

	runner := newFakeRunner()
	runner.onRun = func(taskID string) {
		markApproved(t, store, taskID)
	}

	finalizeCalled := false
	finalizer := finalizerFunc(func(ctx context.Context) error {
		finalizeCalled = true
		return nil
	})

	sched := New(store, runner, "run-1", 2, 20, WithFinalizer(finalizer))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !finalizeCalled {
		t.Error("expected Finalize() to be called once all tasks approved")
	}
}

type finalizerFunc func(ctx context.Context) error

func (f finalizerFunc) Finalize(ctx context.Context) error { return f(ctx) }

func TestScheduler_Run_FinalizerFailure(t *testing.T) {
	store := newTestStore(t)
	writeTask(t, store, "TASK1", "none")

	runner := newFakeRunner()
	runner.onRun = func(taskID string) {
		markApproved(t, store, taskID)
	}

	finalizer := finalizerFunc(func(ctx context.Context) error {
		return fmt.Errorf("critical review failed")
	})

	sched := New(store, runner, "run-1", 2, 20, WithFinalizer(finalizer))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sched.Run(ctx); err == nil {
		t.Error("Run() error = nil, want finalizer failure to propagate")
	}
}
