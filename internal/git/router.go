package git

import (
	"fmt"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/errors"
)

// Scope identifies which repository a task's changes belong to in
// multi-repo mode.
type Scope string

const (
	ScopeBackend     Scope = "backend"
	ScopeFrontend    Scope = "frontend"
	ScopeIntegration Scope = "integration"
)

// Router dispatches commits to the correct repository root(s) based on
// multi-repo configuration and a task's declared scope, per §4.4.7.
type Router struct {
	ops       Operations
	workspace string
	multiRepo config.MultiRepoConfig
}

// NewRouter creates a Router for the given workspace root and multi-repo
// configuration.
func NewRouter(ops Operations, workspaceRoot string, multiRepo config.MultiRepoConfig) *Router {
	return &Router{ops: ops, workspace: workspaceRoot, multiRepo: multiRepo}
}

// Commit dispatches a commit according to the routing table in §4.4.7:
//   - single-repo: one commit in the workspace.
//   - multi-repo, monorepo mode: one commit in the workspace (one git root).
//   - multi-repo, separate mode, scope=backend: commit only in the backend repo.
//   - multi-repo, separate mode, scope=frontend: commit only in the frontend repo.
//   - multi-repo, separate mode, scope=integration: commit backend first, then frontend.
//
// scope is ignored unless multi-repo is enabled in separate mode, where it
// is required; its absence raises ScopeRequired.
func (r *Router) Commit(scope Scope, message string) error {
	if !r.multiRepo.Enabled {
		return r.ops.CommitAll(r.workspace, message)
	}

	if r.multiRepo.Mode == "monorepo" {
		return r.ops.CommitAll(r.workspace, message)
	}

	switch scope {
	case ScopeBackend:
		return r.ops.CommitAll(r.multiRepo.Backend, message)
	case ScopeFrontend:
		return r.ops.CommitAll(r.multiRepo.Frontend, message)
	case ScopeIntegration:
		if err := r.ops.CommitAll(r.multiRepo.Backend, message); err != nil {
			return fmt.Errorf("commit backend: %w", err)
		}
		return r.ops.CommitAll(r.multiRepo.Frontend, message)
	default:
		return errors.NewValidationError("scope is required in separate multi-repo mode").
			WithField("scope").
			WithValue(string(scope)).
			WithCause(errors.ErrScopeRequired)
	}
}
