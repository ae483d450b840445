package review

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const sampleBlueprint = `# Blueprint

## 1. SUMMARY

Some summary text.

## 2. CONTEXT CHAIN

- internal/foo.go
- ` + "`internal/foo_test.go`" + `
* docs/README.md

## 3. PLAN

Unrelated section text with - a bullet that should not be picked up.
`

func TestExtractContextChainPaths(t *testing.T) {
	paths := extractContextChainPaths(sampleBlueprint, []string{".go", ".md"}, []string{"**/*_test.go"})

	want := []string{"internal/foo.go", "docs/README.md"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], p)
		}
	}
}

func TestExtractContextChainPaths_NoExtensionFilterIncludesEverything(t *testing.T) {
	paths := extractContextChainPaths(sampleBlueprint, nil, nil)
	if len(paths) != 3 {
		t.Errorf("paths = %v, want 3 entries when no extension filter is configured", paths)
	}
}

func TestBuildContextChain_ConcurrentReadsAndUnreadableFile(t *testing.T) {
	paths := []string{"a.go", "b.go", "missing.go"}
	read := func(path string) ([]byte, error) {
		if path == "missing.go" {
			return nil, errors.New("not found")
		}
		return []byte("package x // " + path), nil
	}

	out, err := buildContextChain(context.Background(), paths, read)
	if err != nil {
		t.Fatalf("buildContextChain() error = %v", err)
	}
	if !strings.Contains(out, "a.go") || !strings.Contains(out, "b.go") {
		t.Errorf("output missing expected file sections: %q", out)
	}
	if !strings.Contains(out, "could not read missing.go") {
		t.Errorf("output should note the unreadable file, got %q", out)
	}
}

func TestBuildContextChain_EmptyPathsReturnsPlaceholder(t *testing.T) {
	out, err := buildContextChain(context.Background(), nil, func(string) ([]byte, error) { return nil, nil })
	if err != nil {
		t.Fatalf("buildContextChain() error = %v", err)
	}
	if out != "(no context chain files)" {
		t.Errorf("out = %q", out)
	}
}
