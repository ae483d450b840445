package taskmachine

import (
	"context"
	"strings"
	"sync"

	"github.com/taskforge/taskforge/internal/state"
)

// LessonEntry is one reflection recorded after a task's implementation
// stage and held in the run's in-memory lessons index (see
// [Machine.Lessons]).
type LessonEntry struct {
	Topic      string
	Lesson     string
	SourceTask string
}

// reflectionIndex accumulates lessons across every task in a run.
type reflectionIndex struct {
	mu      sync.Mutex
	entries []LessonEntry
}

func newReflectionIndex() *reflectionIndex {
	return &reflectionIndex{}
}

func (r *reflectionIndex) add(e LessonEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *reflectionIndex) all() []LessonEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LessonEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// shouldReflect decides whether the reflection hook fires after an
// implementation attempt, per §4.3: based on attempt count, accumulated
// error count, or the size of the change so far. Declared complexity is not
// consulted: the record has no complexity field and Extra is not read.
func shouldReflect(record *state.ExecutionRecord) bool {
	if record.Attempts > 0 && record.Attempts%5 == 0 {
		return true
	}
	if len(record.ErrorHistory) >= 3 {
		return true
	}
	if len(record.Artifacts) >= 10 {
		return true
	}
	return false
}

// maybeReflect runs the reflection hook when shouldReflect triggers: it
// asks the executor to append an entry to the task's REFLECTION.md, then
// adds the file's whole trimmed content to the in-memory lessons index as a
// single entry with topic "implementation". The text is not parsed into
// separate entries — the orchestrator treats REFLECTION.md as prose the
// executor owns, not a schema it validates.
func (m *Machine) maybeReflect(ctx context.Context, taskID, blueprint string, record *state.ExecutionRecord) {
	if !shouldReflect(record) {
		return
	}

	prompt := m.prompts.Reflection(taskID, blueprint, record)
	if _, err := m.invoke(ctx, taskID, "reflection", prompt, m.fastModel); err != nil {
		return
	}

	data, err := m.store.ReadFile(m.store.Paths().ReflectionFile(taskID))
	if err != nil {
		return
	}

	lesson := strings.TrimSpace(string(data))
	if lesson == "" {
		return
	}
	m.reflection.add(LessonEntry{Topic: "implementation", Lesson: lesson, SourceTask: taskID})
}
