// Package scheduler drives a task dependency graph to completion by
// dispatching ready tasks in parallel waves, up to a configured
// concurrency cap, per §4.6.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskforge/taskforge/internal/dag"
	event "github.com/taskforge/taskforge/internal/events"
	"github.com/taskforge/taskforge/internal/state"
)

// Outcome is the result of running one stage of one task.
type Outcome int

const (
	// OutcomeApproved means the task reached a completed, approved state.
	OutcomeApproved Outcome = iota
	// OutcomeStillBlocked means the task made no terminal progress this
	// attempt and remains pending for a future wave.
	OutcomeStillBlocked
	// OutcomeAttemptLimitExceeded means the task exhausted its attempt
	// budget and moves to a terminal blocked state.
	OutcomeAttemptLimitExceeded
	// OutcomeSplit means the task's folder was replaced by subtask
	// folders; the graph must be rebuilt from disk.
	OutcomeSplit
)

// Runner executes whatever stage a task is currently due for and reports
// the outcome. Implemented by internal/taskmachine; kept as a narrow
// interface here so the scheduler has no direct dependency on the stage
// machinery it drives.
type Runner interface {
	RunStage(ctx context.Context, taskID string) (Outcome, error)
}

// Finalizer runs the global critical-bug sweep and final commit once
// every task is approved. Implemented by internal/finalizer.
type Finalizer interface {
	Finalize(ctx context.Context) error
}

// Scheduler owns the in-memory task graph and in-flight set for a single
// run, per §5: a single logical thread of control mutates the graph;
// workers interact with it only at dispatch and completion.
type Scheduler struct {
	store         *state.Store
	bus           *event.Bus
	runner        Runner
	finalizer     Finalizer
	runID         string
	maxConcurrent int
	attemptLimit  int

	mu       sync.Mutex
	graph    *dag.Graph
	inFlight map[string]bool
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithBus attaches an event bus that receives wave and task lifecycle
// notifications. Without one, the scheduler runs silently.
func WithBus(bus *event.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithFinalizer attaches the finalizer invoked once every task is
// approved. Without one, Run returns as soon as the graph is exhausted.
func WithFinalizer(f Finalizer) Option {
	return func(s *Scheduler) { s.finalizer = f }
}

// New creates a Scheduler for the given run, store, and runner.
// maxConcurrent bounds in-flight tasks; attemptLimit bounds per-task
// attempts before a task is moved to a terminal blocked state (0 means
// unlimited).
func New(store *state.Store, runner Runner, runID string, maxConcurrent, attemptLimit int, opts ...Option) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	s := &Scheduler{
		store:         store,
		runner:        runner,
		runID:         runID,
		maxConcurrent: maxConcurrent,
		attemptLimit:  attemptLimit,
		inFlight:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// workResult is delivered on the results channel when a worker finishes
// running a task's current stage.
type workResult struct {
	taskID  string
	outcome Outcome
	err     error
}

// Run drives the wave loop to completion: dispatch ready tasks up to the
// concurrency cap, await completions, update the graph, and rebuild it
// whenever a split is observed. Returns when every task is approved and
// the finalizer (if any) has run, when the graph is unsatisfiable (a
// cycle or a task permanently blocked with dependents unreachable), or
// when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	graph, err := dag.Build(s.store)
	if err != nil {
		return fmt.Errorf("build task graph: %w", err)
	}
	s.mu.Lock()
	s.graph = graph
	s.mu.Unlock()

	results := make(chan workResult)
	wave := 0
	var successCount, failedCount int

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		ready := s.graph.ReadySet()
		var dispatch []string
		for _, id := range ready {
			if len(s.inFlight)+len(dispatch) >= s.maxConcurrent {
				break
			}
			if !s.inFlight[id] {
				dispatch = append(dispatch, id)
			}
		}
		for _, id := range dispatch {
			s.inFlight[id] = true
		}
		inFlightCount := len(s.inFlight)
		nodesRemaining := len(s.graph.Nodes)
		allApproved := nodesRemaining > 0 && s.allApprovedLocked()
		s.mu.Unlock()

		if nodesRemaining == 0 {
			// Nodes leave the graph only when removed after a terminal
			// failure or replaced by a split; a rebuild keeps completed
			// tasks as completed nodes. An empty graph therefore means no
			// task is left to run: the run fails if any task was
			// permanently blocked and is finalized otherwise.
			if failedCount > 0 {
				return fmt.Errorf("run ended with %d permanently blocked task(s) and no remaining work", failedCount)
			}
			return s.finalize(ctx, successCount, failedCount)
		}

		if allApproved {
			return s.finalize(ctx, successCount, failedCount)
		}

		if len(dispatch) == 0 && inFlightCount == 0 {
			// Nothing ready and nothing running: the graph is stuck.
			return fmt.Errorf("scheduler stalled: no ready tasks and none in flight (%d task(s) remain unapproved)", s.unapprovedCount())
		}

		if len(dispatch) > 0 {
			wave++
			s.publish(event.NewWaveStartedEvent(s.runID, wave, dispatch))
			for _, id := range dispatch {
				s.startWorker(ctx, id, results)
			}
		}

		if inFlightCount == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-results:
			s.mu.Lock()
			delete(s.inFlight, res.taskID)
			s.mu.Unlock()

			switch s.handleResult(res) {
			case resultSuccess:
				successCount++
			case resultFailure:
				failedCount++
			case resultSplit:
				rebuilt, err := dag.Build(s.store)
				if err != nil {
					return fmt.Errorf("rebuild task graph after split: %w", err)
				}
				s.mu.Lock()
				s.graph = rebuilt
				s.mu.Unlock()
			}
		}
	}
}

type resultKind int

const (
	resultNone resultKind = iota
	resultSuccess
	resultFailure
	resultSplit
)

func (s *Scheduler) handleResult(res workResult) resultKind {
	if res.err != nil {
		s.publish(event.NewTaskFailedEvent(res.taskID, s.runID, res.err.Error()))
		s.setNodeStatus(res.taskID, dag.StatusPending)
		return resultNone
	}

	switch res.outcome {
	case OutcomeApproved:
		s.setNodeStatus(res.taskID, dag.StatusCompleted)
		s.publish(event.NewTaskCompleteEvent(res.taskID, s.runID))
		return resultSuccess
	case OutcomeAttemptLimitExceeded:
		s.removeNode(res.taskID)
		s.publish(event.NewTaskBlockedEvent(res.taskID, s.runID, "attempt budget exceeded"))
		return resultFailure
	case OutcomeSplit:
		s.removeNode(res.taskID)
		return resultSplit
	default: // OutcomeStillBlocked
		s.setNodeStatus(res.taskID, dag.StatusPending)
		return resultNone
	}
}

func (s *Scheduler) startWorker(ctx context.Context, taskID string, results chan<- workResult) {
	s.publish(event.NewTaskStartedEvent(taskID, s.runID, s.attempts(taskID)+1))
	go func() {
		outcome, err := s.runner.RunStage(ctx, taskID)
		if err == nil {
			if limit := s.attemptLimit; limit > 0 && outcome == OutcomeStillBlocked && s.attempts(taskID) >= limit {
				outcome = OutcomeAttemptLimitExceeded
			}
		}
		select {
		case results <- workResult{taskID: taskID, outcome: outcome, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Scheduler) attempts(taskID string) int {
	record, err := s.store.ReadExecution(taskID)
	if err != nil {
		return 0
	}
	return record.Attempts
}

func (s *Scheduler) allApprovedLocked() bool {
	for _, node := range s.graph.Nodes {
		if node.Status != dag.StatusCompleted {
			return false
		}
	}
	return true
}

func (s *Scheduler) unapprovedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, node := range s.graph.Nodes {
		if node.Status != dag.StatusCompleted {
			n++
		}
	}
	return n
}

func (s *Scheduler) setNodeStatus(taskID string, status dag.NodeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node, ok := s.graph.Nodes[taskID]; ok {
		node.Status = status
	}
}

func (s *Scheduler) removeNode(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.graph.Nodes, taskID)
	for i, id := range s.graph.Order {
		if id == taskID {
			s.graph.Order = append(s.graph.Order[:i:i], s.graph.Order[i+1:]...)
			break
		}
	}
}

func (s *Scheduler) finalize(ctx context.Context, successCount, failedCount int) error {
	if s.finalizer != nil {
		if err := s.finalizer.Finalize(ctx); err != nil {
			s.publish(event.NewFinalizeCompleteEvent(s.runID, false, false))
			s.publish(event.NewRunCompleteEvent(s.runID, false, failedCount, successCount))
			return fmt.Errorf("finalize: %w", err)
		}
	}
	s.publish(event.NewRunCompleteEvent(s.runID, failedCount == 0, failedCount, successCount))
	return nil
}

func (s *Scheduler) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
