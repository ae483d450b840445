// Package event provides a pub-sub event bus for decoupled inter-component
// communication in Task Forge.
//
// This package enables loose coupling between the CLI status renderer, the
// scheduler, and the task state machine by allowing them to communicate
// through events rather than direct method calls. Components can publish
// events without knowing who will receive them, and subscribe to events
// without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// The package defines several categories of events:
//
// Task Lifecycle:
//   - [TaskStartedEvent]: Emitted when the scheduler dispatches a task to run its current stage
//   - [TaskCompleteEvent]: Emitted when a task reaches a terminal success state
//   - [TaskFailedEvent]: Emitted when running a task's stage returns an error; the task stays pending
//   - [TaskBlockedEvent]: Emitted when a task exceeds its attempt budget and is blocked permanently
//   - [TaskSplitEvent]: Emitted when a task is decomposed into subtasks
//
// Stage and Review Events:
//   - [StageChangeEvent]: Emitted when a task's state machine changes stage
//   - [ReviewCompleteEvent]: Emitted when a review pass finishes
//
// Wave and Run Events:
//   - [WaveStartedEvent]: Emitted when the scheduler dispatches a new wave
//   - [WaveCompleteEvent]: Emitted when every task in a wave reaches a terminal state
//   - [RunCompleteEvent]: Emitted when an entire run finishes
//   - [FinalizeCompleteEvent]: Emitted when the finalizer's sweep concludes
//
// Resource Events:
//   - [MetricsUpdateEvent]: Emitted when a task's resource usage is updated
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("task.started", func(e event.Event) {
//	    started := e.(event.TaskStartedEvent)
//	    log.Printf("Task %s started (attempt %d)", started.TaskID, started.Attempt)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewTaskStartedEvent("task-1", "run-1", 1))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("wave.complete", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - task.started, task.complete, task.failed, task.blocked, task.split
//   - stage.changed
//   - review.complete
//   - wave.started, wave.complete
//   - run.complete
//   - finalize.complete
//   - metrics.updated
package event
