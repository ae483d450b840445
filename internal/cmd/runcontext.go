// Package cmd provides the CLI command structure for Task Forge: a
// cobra-driven `taskforge` binary exposing run, resume, reset, status,
// cancel, and logs, each operating on the coordination directory rooted at the
// working directory.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/taskforge/taskforge/internal/bootstrap"
	"github.com/taskforge/taskforge/internal/config"
	event "github.com/taskforge/taskforge/internal/events"
	"github.com/taskforge/taskforge/internal/executor"
	"github.com/taskforge/taskforge/internal/finalizer"
	"github.com/taskforge/taskforge/internal/git"
	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/metrics"
	"github.com/taskforge/taskforge/internal/prompt"
	"github.com/taskforge/taskforge/internal/review"
	"github.com/taskforge/taskforge/internal/scheduler"
	"github.com/taskforge/taskforge/internal/state"
	"github.com/taskforge/taskforge/internal/taskmachine"
)

// runContext bundles every component a run or resume invocation wires
// together, per §9's "pass a RunContext value by reference to every
// subsystem; initialize once at startup" design note. It is built once
// in newRunContext and never mutated afterward.
type runContext struct {
	cfg       *config.Config
	store     *state.Store
	bus       *event.Bus
	logger    *logging.Logger
	collector *metrics.Collector
	scheduler *scheduler.Scheduler
	bootstrap *bootstrap.Bootstrap
	runID     string
	workDir   string
}

// newRunContext resolves configuration, validates it, and wires every
// package built so far into a single scheduler ready to drive a run. It is
// shared by the run and resume commands; the only difference between them
// is the objective text passed to Bootstrap.Run.
func newRunContext(cfg *config.Config, workDir string) (*runContext, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errs)
	}

	store := state.NewStore(afero.NewOsFs(), workDir)
	if err := store.EnsureCoordDir(); err != nil {
		return nil, fmt.Errorf("ensure coordination directory: %w", err)
	}

	runID, err := loadOrCreateRunID(store)
	if err != nil {
		return nil, err
	}

	logger, err := newRunLogger(store.Paths().CoordDir(), cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger = logger.WithRun(runID)

	bus := event.NewBus()
	bus.SubscribeAll(loggingHandler(logger))
	subscribeProgress(bus)

	collector := metrics.New()

	supervisor := executor.New(cfg.Executor.Backend,
		executor.WithTimeout(cfg.Executor.AttemptTimeout()),
		executor.WithMetrics(collector),
	)

	ops := git.NewCLIOperations()
	router := git.NewRouter(ops, workDir, cfg.MultiRepo)
	builder := prompt.New(cfg.Review.Prompts)

	reviewer := review.New(store, supervisor, builder, router, runID, workDir,
		cfg.Executor.FastModel, cfg.Executor.HardModel, cfg.Review, cfg.MultiRepo,
		review.WithBus(bus),
	)

	machine := taskmachine.New(store, supervisor, builder, reviewer, runID, workDir,
		cfg.Executor.FastModel, cfg.Executor.HardModel,
		taskmachine.WithBus(bus),
	)

	fin := finalizer.New(store, supervisor, builder, router, ops, runID, workDir,
		cfg.Executor.HardModel, cfg.Finalizer, cfg.Run, cfg.MultiRepo,
		finalizer.WithBus(bus),
	)

	sched := scheduler.New(store, machine, runID, cfg.Run.MaxConcurrent, cfg.Run.AttemptLimit,
		scheduler.WithBus(bus),
		scheduler.WithFinalizer(fin),
	)

	boot := bootstrap.New(store, supervisor, builder, workDir, cfg.Executor.FastModel)

	return &runContext{
		cfg:       cfg,
		store:     store,
		bus:       bus,
		logger:    logger,
		collector: collector,
		scheduler: sched,
		bootstrap: boot,
		runID:     runID,
		workDir:   workDir,
	}, nil
}

// newRunLogger builds the run's debug.log writer, rotating it once it
// crosses cfg.MaxSizeMB rather than letting a multi-hour, many-task run
// grow one unbounded file.
func newRunLogger(coordDir string, cfg config.LoggingConfig) (*logging.Logger, error) {
	if cfg.MaxSizeMB <= 0 {
		return logging.NewLogger(coordDir, cfg.Level)
	}
	return logging.NewLoggerWithRotation(coordDir, cfg.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
}

// loadOrCreateRunID returns the run id persisted from a prior invocation in
// this workspace, or mints and persists a new one. A run's id is stable
// across resume so that every log line and metric in a run's lifetime
// shares one identifier.
func loadOrCreateRunID(store *state.Store) (string, error) {
	path := filepath.Join(store.Paths().CoordDir(), "run.id")
	if store.Exists(path) {
		data, err := store.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read run id: %w", err)
		}
		return string(data), nil
	}

	runID := uuid.NewString()
	if err := store.WriteFile(path, []byte(runID)); err != nil {
		return "", fmt.Errorf("persist run id: %w", err)
	}
	return runID, nil
}

// loggingHandler adapts the structured Logger to an event.Handler, giving
// every lifecycle event (wave start/complete, task stage changes, review
// verdicts, finalize completion) a corresponding debug-log line.
func loggingHandler(logger *logging.Logger) event.Handler {
	return func(e event.Event) {
		logger.Info(e.EventType())
	}
}

// subscribeProgress registers the typed, stdout-facing progress lines an
// operator watching `run`/`resume` sees live, distinct from the structured
// debug log: which wave dispatched, which tasks got blocked or exhausted
// their attempt budget, and how the run and its finalization concluded.
func subscribeProgress(bus *event.Bus) {
	event.SubscribeTyped(bus, "wave.started", func(e event.WaveStartedEvent) {
		fmt.Printf("wave %d: dispatching %d task(s)\n", e.WaveNum, len(e.TaskIDs))
	})
	event.SubscribeTyped(bus, "wave.complete", func(e event.WaveCompleteEvent) {
		fmt.Printf("wave %d: %d succeeded, %d failed\n", e.WaveNum, e.SuccessCount, e.FailedCount)
	})
	event.SubscribeTyped(bus, "task.blocked", func(e event.TaskBlockedEvent) {
		fmt.Printf("task %s: blocked (%s)\n", e.TaskID, e.Reason)
	})
	event.SubscribeTyped(bus, "task.failed", func(e event.TaskFailedEvent) {
		fmt.Printf("task %s: failed (%s)\n", e.TaskID, e.Reason)
	})
	event.SubscribeTyped(bus, "finalize.complete", func(e event.FinalizeCompleteEvent) {
		fmt.Printf("finalize: success=%t pushed=%t\n", e.Success, e.Pushed)
	})
}

// writePIDFile records the current process id so cancel can signal it.
func writePIDFile(store *state.Store) error {
	path := filepath.Join(store.Paths().CoordDir(), "run.pid")
	return store.WriteFile(path, []byte(strconv.Itoa(os.Getpid())))
}

func pidFilePath(workDir string) string {
	return filepath.Join(workDir, state.CoordDirName, "run.pid")
}
