package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/spf13/afero"
)

// Sentinel errors returned by Store operations, matching the error
// taxonomy's semantic error family.
var (
	// ErrNotFound is returned when a task's execution.json does not exist.
	ErrNotFound = errors.New("execution record not found")

	// ErrMalformed is returned when execution.json exists but cannot be parsed.
	ErrMalformed = errors.New("execution record malformed")
)

// statusHeadingPattern matches a "## Status" heading line in CODE_REVIEW.md
// (case-insensitive); HasApprovedReview then looks for the literal
// "approved" in the first non-blank line after it, per the
// hasApprovedReview contract (§4.1).
var statusHeadingPattern = regexp.MustCompile(`(?i)^##\s*status\s*$`)

// Store mediates all persistence of task and run state. It is the sole
// owner of coordination-directory path construction (via [Paths]) and
// performs every write atomically (temp-file-then-rename).
//
// Filesystem access goes through afero.Fs so tests can swap in
// afero.NewMemMapFs() while production uses afero.NewOsFs(). No locks are
// taken for single-shot reads/writes; a task folder is owned by exactly
// one scheduler slot at a time by construction. Multi-step
// read-modify-write sequences against execution.json should additionally
// hold a [FileLock] for the task, acquired by the caller.
type Store struct {
	fs    afero.Fs
	paths *Paths
}

// NewStore creates a Store rooted at workspaceRoot, using fs for all
// filesystem access.
func NewStore(fs afero.Fs, workspaceRoot string) *Store {
	return &Store{
		fs:    fs,
		paths: NewPaths(workspaceRoot),
	}
}

// Paths returns the Store's path builder, for components (executor,
// review, finalizer) that need to address run-level documents directly.
func (s *Store) Paths() *Paths {
	return s.paths
}

// TaskDir returns the folder path for a given task id.
func (s *Store) TaskDir(id string) string {
	return s.paths.TaskDir(id)
}

// ReadExecution loads and parses a task's execution record.
// Returns ErrNotFound if the file does not exist, ErrMalformed if it
// exists but cannot be parsed.
func (s *Store) ReadExecution(id string) (*ExecutionRecord, error) {
	data, err := afero.ReadFile(s.fs, s.paths.ExecutionFile(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var record ExecutionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, id, err)
	}

	return &record, nil
}

// WriteExecution atomically persists a task's execution record.
func (s *Store) WriteExecution(id string, record *ExecutionRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal execution record: %w", err)
	}
	return s.writeAtomic(s.paths.ExecutionFile(id), data)
}

// ListTasks returns every task id discoverable under the coordination
// directory, sorted by the numeric components of the id.
func (s *Store) ListTasks() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.paths.CoordDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && IsValidTaskID(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}

	sort.Slice(ids, func(i, j int) bool {
		return compareTaskIDs(ids[i], ids[j]) < 0
	})
	return ids, nil
}

// compareTaskIDs orders task ids by their dotted numeric components, so
// TASK2 < TASK2.1 < TASK2.2 < TASK10.
func compareTaskIDs(a, b string) int {
	aParts := taskIDComponents(a)
	bParts := taskIDComponents(b)
	for i := 0; i < len(aParts) && i < len(bParts); i++ {
		if aParts[i] != bParts[i] {
			if aParts[i] < bParts[i] {
				return -1
			}
			return 1
		}
	}
	return len(aParts) - len(bParts)
}

func taskIDComponents(id string) []int {
	trimmed := strings.TrimPrefix(id, "TASK")
	parts := strings.Split(trimmed, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		nums[i] = n
	}
	return nums
}

// ReadBlueprint returns the contents of BLUEPRINT.md for a task.
func (s *Store) ReadBlueprint(id string) (string, error) {
	data, err := afero.ReadFile(s.fs, s.paths.BlueprintFile(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", err
	}
	return string(data), nil
}

// ReadTaskFile returns the contents of TASK.md for a task.
func (s *Store) ReadTaskFile(id string) (string, error) {
	data, err := afero.ReadFile(s.fs, s.paths.TaskFile(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", err
	}
	return string(data), nil
}

// HasApprovedReview inspects CODE_REVIEW.md for a "## Status" section whose
// first non-blank following line contains the literal "approved"
// (case-insensitive).
func (s *Store) HasApprovedReview(id string) bool {
	data, err := afero.ReadFile(s.fs, s.paths.CodeReviewFile(id))
	if err != nil {
		return false
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if !statusHeadingPattern.MatchString(strings.TrimSpace(line)) {
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			trimmed := strings.TrimSpace(lines[j])
			if trimmed == "" {
				continue
			}
			return strings.Contains(strings.ToLower(trimmed), "approved")
		}
		return false
	}
	return false
}

// HasCompletionMarker reports whether the run's idempotent completion
// marker (done.txt) exists.
func (s *Store) HasCompletionMarker() bool {
	return s.Exists(s.paths.CompletionMarkerFile())
}

// Exists reports whether a file exists at path, used by stage logic to
// infer a task's current position in the state machine from which of its
// documents are already present on disk.
func (s *Store) Exists(path string) bool {
	exists, err := afero.Exists(s.fs, path)
	return err == nil && exists
}

// ReadFile returns the raw contents of an arbitrary run- or task-level
// document.
func (s *Store) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return data, nil
}

// WriteFile atomically writes an arbitrary run- or task-level document
// (TASK.md, BLUEPRINT.md, CODE_REVIEW.md, markers, and so on).
func (s *Store) WriteFile(path string, data []byte) error {
	return s.writeAtomic(path, data)
}

// EnsureTaskDir creates a task's directory if it does not already exist.
func (s *Store) EnsureTaskDir(id string) error {
	return s.fs.MkdirAll(s.paths.TaskDir(id), 0755)
}

// EnsureCoordDir creates the coordination directory if it does not already
// exist.
func (s *Store) EnsureCoordDir() error {
	return s.fs.MkdirAll(s.paths.CoordDir(), 0755)
}

// RemoveTaskDir deletes a task's entire directory, used when Stage 4
// splits a task into subtasks.
func (s *Store) RemoveTaskDir(id string) error {
	return s.fs.RemoveAll(s.paths.TaskDir(id))
}

// AppendLogWriter opens the run's shared log file for appending, creating
// it if it doesn't exist. Per §5's ordering guarantees, each executor
// invocation opens its own stream; the caller must Close it when done.
func (s *Store) AppendLogWriter() (io.WriteCloser, error) {
	path := s.paths.LogFile()
	if err := s.fs.MkdirAll(pathDir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := s.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// writeAtomic writes data to path via a temp-file-then-rename sequence.
// When fs is backed by the real operating system filesystem,
// github.com/google/renameio/v2 is used directly for its simpler
// atomic-rename API; otherwise (e.g. afero.NewMemMapFs() in tests) the
// write falls back to an afero-native temp-then-rename, since renameio
// operates on real file descriptors.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := pathDir(path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if _, ok := s.fs.(*afero.OsFs); ok {
		return renameio.WriteFile(path, data, 0644)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func pathDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
