// Package git implements the narrow git abstraction Task Forge depends on
// for committing task output and driving the Finalizer's final push
// (§4.4.7, §4.7). The interface is intentionally small: Task Forge does
// not manage per-task worktrees or branches beyond what the scope-aware
// commit router needs.
package git

import (
	"os/exec"
	"strings"

	"github.com/taskforge/taskforge/internal/errors"
)

// Operations is the git abstraction every commit-capable component
// (review engine, finalizer) depends on.
type Operations interface {
	// CommitAll stages and commits every change under dir. A no-op (nil
	// error) if there is nothing to commit.
	CommitAll(dir, message string) error

	// HasUncommittedChanges reports whether dir has a dirty working tree.
	HasUncommittedChanges(dir string) (bool, error)

	// Push pushes the current branch. force allows a force-push.
	Push(dir string, force bool) error

	// Diff returns the cumulative diff against base.
	Diff(dir, base string) (string, error)

	// CreateBranch creates and checks out a new branch.
	CreateBranch(dir, name string) error

	// CurrentBranch returns the name of the currently checked-out branch.
	CurrentBranch(dir string) (string, error)
}

// CommandExecutor abstracts command execution for testability, allowing
// tests to substitute a fake without shelling out to a real git binary.
type CommandExecutor interface {
	Run(dir, name string, args ...string) ([]byte, error)
}

// CLICommandExecutor executes commands via os/exec.
type CLICommandExecutor struct{}

// Run executes a command and returns its combined stdout/stderr output.
func (CLICommandExecutor) Run(dir, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// CLIOperations implements Operations by shelling out to the git CLI.
type CLIOperations struct {
	executor CommandExecutor
}

// NewCLIOperations creates a CLIOperations backed by the real git binary.
func NewCLIOperations() *CLIOperations {
	return &CLIOperations{executor: CLICommandExecutor{}}
}

// NewCLIOperationsWithExecutor creates a CLIOperations backed by a custom
// executor, primarily for tests.
func NewCLIOperationsWithExecutor(executor CommandExecutor) *CLIOperations {
	return &CLIOperations{executor: executor}
}

// CommitAll stages and commits all changes in dir.
func (g *CLIOperations) CommitAll(dir, message string) error {
	output, err := g.executor.Run(dir, "git", "add", "-A")
	if err != nil {
		return errors.NewGitError("failed to stage changes", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}

	output, err = g.executor.Run(dir, "git", "commit", "-m", message)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return errors.NewGitError("failed to commit changes", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return nil
}

// HasUncommittedChanges reports whether dir has a dirty working tree.
func (g *CLIOperations) HasUncommittedChanges(dir string) (bool, error) {
	output, err := g.executor.Run(dir, "git", "status", "--porcelain")
	if err != nil {
		return false, errors.NewGitError("failed to check git status", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// Push pushes the current branch, optionally with --force.
func (g *CLIOperations) Push(dir string, force bool) error {
	args := []string{"push"}
	if force {
		args = append(args, "--force")
	}
	output, err := g.executor.Run(dir, "git", args...)
	if err != nil {
		return errors.NewGitError("failed to push", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return nil
}

// Diff returns the cumulative diff against base.
func (g *CLIOperations) Diff(dir, base string) (string, error) {
	output, err := g.executor.Run(dir, "git", "diff", base)
	if err != nil {
		return "", errors.NewGitError("failed to compute diff", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return string(output), nil
}

// CreateBranch creates and checks out a new branch.
func (g *CLIOperations) CreateBranch(dir, name string) error {
	output, err := g.executor.Run(dir, "git", "checkout", "-b", name)
	if err != nil {
		return errors.NewGitError("failed to create branch", err).
			WithRepository(dir).
			WithBranch(name).
			WithGitOutput(string(output))
	}
	return nil
}

// CurrentBranch returns the name of the currently checked-out branch.
func (g *CLIOperations) CurrentBranch(dir string) (string, error) {
	output, err := g.executor.Run(dir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to determine current branch", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}
