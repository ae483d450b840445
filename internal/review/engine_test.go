package review

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/executor"
	"github.com/taskforge/taskforge/internal/scheduler"
	"github.com/taskforge/taskforge/internal/state"
)

type fakePrompts struct{}

func (fakePrompts) ChecklistCompletion(taskID, checklistPath, checklistByFile, checklistJSON string) string {
	return "checklist:" + taskID
}
func (fakePrompts) ReviewFast(taskID, blueprint, contextChain, checklist string) string {
	return "review-fast:" + taskID
}
func (fakePrompts) ReviewHard(taskID, blueprint, contextChain, checklist, difficulty string) string {
	return "review-hard:" + taskID + ":" + difficulty
}

func writeBackendScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-backend.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(t *testing.T, backendScript string) (*Engine, *state.Store) {
	t.Helper()
	workDir := t.TempDir()
	store := state.NewStore(afero.NewOsFs(), workDir)
	sup := executor.New(backendScript, executor.WithTimeout(5*time.Second))
	e := New(store, sup, fakePrompts{}, nil, "run-1", workDir, "fast", "hard",
		config.ReviewConfig{ChecklistExtensions: []string{".go"}}, config.MultiRepoConfig{})
	return e, store
}

// readyRecord satisfies the pre-review gate (§4.4.1): every phase completed,
// every cleanup item done.
func readyRecord() *state.ExecutionRecord {
	return &state.ExecutionRecord{
		Status: state.StatusInProgress,
		Phases: []state.ExecutionPhase{{ID: "p1", Status: state.PhaseStatusCompleted}},
		BeyondTheBasics: state.BeyondTheBasics{Cleanup: state.Cleanup{
			DebugLogsRemoved: true, FormattingConsistent: true, DeadCodeRemoved: true,
		}},
	}
}

func writeTaskAndBlueprint(t *testing.T, store *state.Store, id, blueprint string) {
	t.Helper()
	if err := store.EnsureTaskDir(id); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteFile(store.Paths().TaskFile(id), []byte("# "+id+"\n\n@dependencies none\n")); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteFile(store.Paths().BlueprintFile(id), []byte(blueprint)); err != nil {
		t.Fatal(err)
	}
}

func TestEngine_Review_GateFailureDoesNotInvokeExecutor(t *testing.T) {
	dir := t.TempDir()
	script := writeBackendScript(t, dir, "touch invoked.marker\n")

	e, store := newTestEngine(t, script)
	if err := store.WriteExecution("TASK1", &state.ExecutionRecord{Status: state.StatusInProgress}); err != nil {
		t.Fatal(err)
	}
	writeTaskAndBlueprint(t, store, "TASK1", "# Blueprint\n")

	outcome, err := e.Review(context.Background(), "TASK1")
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if outcome != scheduler.OutcomeStillBlocked {
		t.Errorf("outcome = %v, want OutcomeStillBlocked", outcome)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "invoked.marker")); statErr == nil {
		t.Error("executor should not be invoked when the pre-review gate fails")
	}

	record, err := store.ReadExecution("TASK1")
	if err != nil {
		t.Fatal(err)
	}
	if len(record.ErrorHistory) != 1 {
		t.Errorf("ErrorHistory = %v, want exactly one entry", record.ErrorHistory)
	}
}

func TestEngine_Review_FastDifficultySkipsPass2(t *testing.T) {
	dir := t.TempDir()
	script := writeBackendScript(t, dir, `
echo pass >> "$TASKFORGE_TEST_PASS_LOG"
cat > .taskforge/TASK1/execution.json <<'EOF'
{"status":"completed","attempts":1,"completion":{"status":"completed","codeReviewPassed":true},"beyondTheBasics":{"cleanup":{"debugLogsRemoved":true,"formattingConsistent":true,"deadCodeRemoved":true}},"phases":[{"id":"p1","name":"p1","status":"completed"}]}
EOF
`)

	e, store := newTestEngine(t, script)
	if err := store.WriteExecution("TASK1", readyRecord()); err != nil {
		t.Fatal(err)
	}
	writeTaskAndBlueprint(t, store, "TASK1", "@difficulty fast\n# Blueprint\n")

	passLog := filepath.Join(t.TempDir(), "passes.log")
	t.Setenv("TASKFORGE_TEST_PASS_LOG", passLog)

	outcome, err := e.Review(context.Background(), "TASK1")
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if outcome != scheduler.OutcomeApproved {
		t.Errorf("outcome = %v, want OutcomeApproved", outcome)
	}

	data, err := os.ReadFile(passLog)
	if err != nil {
		t.Fatalf("reading pass log: %v", err)
	}
	if got := string(data); got != "pass\n" {
		t.Errorf("pass log = %q, want exactly one pass (no escalation for @difficulty fast)", got)
	}
}

func TestEngine_Review_EscalatesWhenDifficultyIsMedium(t *testing.T) {
	dir := t.TempDir()
	script := writeBackendScript(t, dir, `
echo pass >> "$TASKFORGE_TEST_PASS_LOG"
cat > .taskforge/TASK1/execution.json <<'EOF'
{"status":"completed","attempts":1,"completion":{"status":"completed","codeReviewPassed":true},"beyondTheBasics":{"cleanup":{"debugLogsRemoved":true,"formattingConsistent":true,"deadCodeRemoved":true}},"phases":[{"id":"p1","name":"p1","status":"completed"}]}
EOF
`)

	e, store := newTestEngine(t, script)
	if err := store.WriteExecution("TASK1", readyRecord()); err != nil {
		t.Fatal(err)
	}
	writeTaskAndBlueprint(t, store, "TASK1", "@difficulty medium\n# Blueprint\n")

	passLog := filepath.Join(t.TempDir(), "passes.log")
	t.Setenv("TASKFORGE_TEST_PASS_LOG", passLog)

	outcome, err := e.Review(context.Background(), "TASK1")
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if outcome != scheduler.OutcomeApproved {
		t.Errorf("outcome = %v, want OutcomeApproved", outcome)
	}

	data, err := os.ReadFile(passLog)
	if err != nil {
		t.Fatalf("reading pass log: %v", err)
	}
	if got := string(data); got != "pass\npass\n" {
		t.Errorf("pass log = %q, want two passes (fast then hard escalation)", got)
	}
}

func TestEngine_Review_NotCompletedAfterPass1StaysBlocked(t *testing.T) {
	dir := t.TempDir()
	script := writeBackendScript(t, dir, "true\n")

	e, store := newTestEngine(t, script)
	record := readyRecord()
	record.Status = state.StatusBlocked
	if err := store.WriteExecution("TASK1", record); err != nil {
		t.Fatal(err)
	}
	writeTaskAndBlueprint(t, store, "TASK1", "@difficulty medium\n# Blueprint\n")

	outcome, err := e.Review(context.Background(), "TASK1")
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if outcome != scheduler.OutcomeStillBlocked {
		t.Errorf("outcome = %v, want OutcomeStillBlocked since the backend left the record blocked", outcome)
	}
}
