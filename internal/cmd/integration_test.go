package cmd

import (
	"testing"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/testutil"
)

// TestNewRunContext_WiresFullPackageSet builds a runContext against a real
// temp git repository, exercising every package's constructor together the
// way run/resume do at startup. It never invokes the scheduler or bootstrap
// pipeline, since those spawn the configured executor subprocess; this only
// proves the wiring in newRunContext type-checks and succeeds end to end.
func TestNewRunContext_WiresFullPackageSet(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)

	cfg := config.Default()
	cfg.Executor.Backend = "claude"

	rc, err := newRunContext(cfg, dir)
	if err != nil {
		t.Fatalf("newRunContext() error = %v", err)
	}
	defer rc.logger.Close()

	if rc.runID == "" {
		t.Error("runID should not be empty")
	}
	if rc.scheduler == nil {
		t.Error("scheduler should be wired")
	}
	if rc.bootstrap == nil {
		t.Error("bootstrap should be wired")
	}

	second, err := newRunContext(cfg, dir)
	if err != nil {
		t.Fatalf("second newRunContext() error = %v", err)
	}
	defer second.logger.Close()

	if second.runID != rc.runID {
		t.Errorf("run id should persist across invocations in the same workspace: %q vs %q", rc.runID, second.runID)
	}
}

// TestDiscardRunState_ThenNewRunContext_StartsFresh exercises the reset and
// run paths in sequence: discarding state, then re-wiring a runContext,
// should mint a new run id rather than reusing the discarded one.
func TestDiscardRunState_ThenNewRunContext_StartsFresh(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)

	cfg := config.Default()
	cfg.Executor.Backend = "claude"

	first, err := newRunContext(cfg, dir)
	if err != nil {
		t.Fatalf("newRunContext() error = %v", err)
	}
	first.logger.Close()

	if err := discardRunState(dir, true); err != nil {
		t.Fatalf("discardRunState() error = %v", err)
	}

	second, err := newRunContext(cfg, dir)
	if err != nil {
		t.Fatalf("newRunContext() after reset error = %v", err)
	}
	defer second.logger.Close()

	if second.runID == first.runID {
		t.Error("run id should change after discardRunState")
	}
}
