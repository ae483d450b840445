package review

import (
	"regexp"

	"github.com/taskforge/taskforge/internal/git"
)

var scopeTagPattern = regexp.MustCompile(`(?im)^@scope\s+(\w+)\s*$`)

// parseScope extracts a task's @scope tag from TASK.md, per spec.md line 42.
// The second return value is false when no tag is present, letting the
// caller distinguish "single-repo, scope doesn't matter" from "multi-repo,
// scope was required and missing."
func parseScope(taskFile string) (git.Scope, bool) {
	m := scopeTagPattern.FindStringSubmatch(taskFile)
	if m == nil {
		return "", false
	}
	return git.Scope(m[1]), true
}
