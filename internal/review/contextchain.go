package review

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/taskforge/taskforge/internal/state"
)

// maxContextChainBytes bounds the total size of the context chain handed to
// a review prompt, so a blueprint naming a large number of files can't blow
// out the prompt length (§4.4.2).
const maxContextChainBytes = 64 * 1024

// contextChainHeadingPattern matches BLUEPRINT.md's "## 2. CONTEXT CHAIN"
// section heading, tolerant of the exact numbering the executor used.
var contextChainHeadingPattern = regexp.MustCompile(`(?i)^##\s*\d*\.?\s*context chain\s*$`)

// contextChainLinePattern extracts a path from a Markdown list item of the
// form "- path" or "* `path`".
var contextChainLinePattern = regexp.MustCompile("^[-*]\\s*`?([^`\\s][^`]*?)`?\\s*$")

// extractContextChainPaths parses BLUEPRINT.md for its CONTEXT CHAIN section
// and returns the listed paths, filtered to those whose extension is in
// extensions and not matched by any pattern in excludes.
func extractContextChainPaths(blueprint string, extensions, excludes []string) []string {
	lines := strings.Split(blueprint, "\n")
	inSection := false
	var paths []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			inSection = contextChainHeadingPattern.MatchString(trimmed)
			continue
		}
		if !inSection {
			continue
		}
		m := contextChainLinePattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		path := strings.TrimSpace(m[1])
		if path == "" {
			continue
		}
		if matchesContextChainFilters(path, extensions, excludes) {
			paths = append(paths, path)
		}
	}
	return paths
}

func matchesContextChainFilters(path string, extensions, excludes []string) bool {
	if len(extensions) > 0 {
		ok := false
		ext := filepath.Ext(path)
		for _, allowed := range extensions {
			if matched, _ := doublestar.Match(allowed, ext); matched || allowed == "*"+ext {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, pattern := range excludes {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return false
		}
	}
	return true
}

// readFunc abstracts a single path read so tests can fake the filesystem
// without constructing a real *state.Store.
type readFunc func(path string) ([]byte, error)

// buildContextChain concurrently reads every path in the chain (one
// errgroup goroutine per path, grounded on the same pattern the corpus uses for fan-out
// file I/O) and renders them as a single Markdown section for the review
// prompt, truncated to maxContextChainBytes.
func buildContextChain(ctx context.Context, paths []string, read readFunc) (string, error) {
	if len(paths) == 0 {
		return "(no context chain files)", nil
	}

	contents := make([]string, len(paths))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			data, err := read(p)
			if err != nil {
				contents[i] = fmt.Sprintf("(could not read %s: %v)\n", p, err)
				return nil
			}
			contents[i] = fmt.Sprintf("### %s\n```\n%s\n```\n", p, string(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, c := range contents {
		if sb.Len()+len(c) > maxContextChainBytes {
			sb.WriteString("(context chain truncated)\n")
			break
		}
		sb.WriteString(c)
	}
	return sb.String(), nil
}

// artifactPaths extracts every artifact path recorded on an execution
// record, included in the review's reading list alongside the blueprint's
// declared context chain (§4.4.2).
func artifactPaths(record *state.ExecutionRecord) []string {
	paths := make([]string, 0, len(record.Artifacts))
	for _, a := range record.Artifacts {
		paths = append(paths, a.Path)
	}
	return paths
}
