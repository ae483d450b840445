// Package state implements the filesystem-backed State Store: the single
// source of truth for run and task persistence. All coordination-directory
// path construction is centralized in [Paths] so that no other package
// builds these paths directly.
package state

import (
	"path/filepath"
	"regexp"
)

// CoordDirName is the hidden directory, relative to the workspace root,
// that holds all orchestrator state.
const CoordDirName = ".taskforge"

// taskIDPattern matches task identifiers of the form TASK<n> or
// TASK<n>.<m>.<p>... (dotted subtask paths).
var taskIDPattern = regexp.MustCompile(`^TASK\d+(\.\d+)*$`)

// IsValidTaskID reports whether id matches the task-id grammar.
func IsValidTaskID(id string) bool {
	return taskIDPattern.MatchString(id)
}

// Paths centralizes every path built under a workspace's coordination
// directory. Constructing paths anywhere else is a layering violation.
type Paths struct {
	workspaceRoot string
}

// NewPaths returns a Paths rooted at the given workspace directory.
func NewPaths(workspaceRoot string) *Paths {
	return &Paths{workspaceRoot: workspaceRoot}
}

// CoordDir returns the hidden coordination directory.
func (p *Paths) CoordDir() string {
	return filepath.Join(p.workspaceRoot, CoordDirName)
}

// TaskDir returns the folder for a given task id.
func (p *Paths) TaskDir(id string) string {
	return filepath.Join(p.CoordDir(), id)
}

// TaskFile returns TASK.md for a given task id.
func (p *Paths) TaskFile(id string) string {
	return filepath.Join(p.TaskDir(id), "TASK.md")
}

// BlueprintFile returns BLUEPRINT.md for a given task id.
func (p *Paths) BlueprintFile(id string) string {
	return filepath.Join(p.TaskDir(id), "BLUEPRINT.md")
}

// ExecutionFile returns execution.json for a given task id.
func (p *Paths) ExecutionFile(id string) string {
	return filepath.Join(p.TaskDir(id), "execution.json")
}

// ReviewChecklistFile returns review-checklist.json for a given task id.
func (p *Paths) ReviewChecklistFile(id string) string {
	return filepath.Join(p.TaskDir(id), "review-checklist.json")
}

// CodeReviewFile returns CODE_REVIEW.md for a given task id.
func (p *Paths) CodeReviewFile(id string) string {
	return filepath.Join(p.TaskDir(id), "CODE_REVIEW.md")
}

// ContextFile returns CONTEXT.md for a given task id.
func (p *Paths) ContextFile(id string) string {
	return filepath.Join(p.TaskDir(id), "CONTEXT.md")
}

// ResearchFile returns RESEARCH.md for a given task id.
func (p *Paths) ResearchFile(id string) string {
	return filepath.Join(p.TaskDir(id), "RESEARCH.md")
}

// ReflectionFile returns REFLECTION.md for a given task id.
func (p *Paths) ReflectionFile(id string) string {
	return filepath.Join(p.TaskDir(id), "REFLECTION.md")
}

// SplitMarkerFile returns split.txt for a given task id.
func (p *Paths) SplitMarkerFile(id string) string {
	return filepath.Join(p.TaskDir(id), "split.txt")
}

// LockFile returns the flock(2) lock file for a given task id.
func (p *Paths) LockFile(id string) string {
	return filepath.Join(p.TaskDir(id), "task.lock")
}

// PlanBackupFile returns a timestamped TODO.old.<ts>.md backup path for a
// given task id, produced when re-analysis rewrites a task's plan.
func (p *Paths) PlanBackupFile(id, timestamp string) string {
	return filepath.Join(p.TaskDir(id), "TODO.old."+timestamp+".md")
}

// AIPromptFile returns the run-level AI_PROMPT.md document.
func (p *Paths) AIPromptFile() string {
	return filepath.Join(p.CoordDir(), "AI_PROMPT.md")
}

// InitialPromptFile returns the run-level INITIAL_PROMPT.md document.
func (p *Paths) InitialPromptFile() string {
	return filepath.Join(p.CoordDir(), "INITIAL_PROMPT.md")
}

// ClarificationQuestionsFile returns CLARIFICATION_QUESTIONS.json.
func (p *Paths) ClarificationQuestionsFile() string {
	return filepath.Join(p.CoordDir(), "CLARIFICATION_QUESTIONS.json")
}

// ClarificationAnswersFile returns CLARIFICATION_ANSWERS.json.
func (p *Paths) ClarificationAnswersFile() string {
	return filepath.Join(p.CoordDir(), "CLARIFICATION_ANSWERS.json")
}

// PendingClarificationFlag returns PENDING_CLARIFICATION.flag.
func (p *Paths) PendingClarificationFlag() string {
	return filepath.Join(p.CoordDir(), "PENDING_CLARIFICATION.flag")
}

// MultiRepoFile returns multi-repo.json.
func (p *Paths) MultiRepoFile() string {
	return filepath.Join(p.CoordDir(), "multi-repo.json")
}

// BugsFile returns BUGS.md, written during the Finalizer's critical-bug sweep.
func (p *Paths) BugsFile() string {
	return filepath.Join(p.CoordDir(), "BUGS.md")
}

// CriticalReviewPassedFile returns the Finalizer's terminal marker.
func (p *Paths) CriticalReviewPassedFile() string {
	return filepath.Join(p.CoordDir(), "CRITICAL_REVIEW_PASSED.md")
}

// CompletionMarkerFile returns the idempotent run completion marker.
func (p *Paths) CompletionMarkerFile() string {
	return filepath.Join(p.CoordDir(), "done.txt")
}

// LogFile returns the run's shared append-only log file.
func (p *Paths) LogFile() string {
	return filepath.Join(p.CoordDir(), "log.txt")
}
