package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/state"
)

// Builder renders every stage's prompt text, substituting an operator
// override from config.PromptOverrides for a stage's built-in template when
// one is configured non-empty (§4.9). It implements taskmachine.PromptBuilder.
type Builder struct {
	overrides config.PromptOverrides
}

// New creates a Builder using the given override set. A zero-value
// config.PromptOverrides uses every built-in template unmodified.
func New(overrides config.PromptOverrides) *Builder {
	return &Builder{overrides: overrides}
}

// Bootstrap renders the initial decomposition prompt (stage 1).
func (b *Builder) Bootstrap(objective string) string {
	return mustRender(b.templateOr(bootstrapTemplate, ""), map[string]string{phObjective: objective})
}

// Decomposition renders the task-graph refinement prompt (stage 2).
func (b *Builder) Decomposition(objective string) string {
	return mustRender(b.templateOr(decompositionTemplate, b.overrides.Decomposition), map[string]string{phObjective: objective})
}

// DependencyAssignment renders the dependency-edge-assignment prompt (stage 3).
func (b *Builder) DependencyAssignment(objective string) string {
	return mustRender(b.templateOr(dependencyAssignmentTemplate, ""), map[string]string{phObjective: objective})
}

// Blueprint renders the blueprint+planning prompt (stage 4). Implements
// taskmachine.PromptBuilder.
func (b *Builder) Blueprint(taskID, taskFile string) string {
	return mustRender(b.templateOr(blueprintTemplate, b.overrides.Blueprint), map[string]string{
		phTaskID:   taskID,
		phTaskFile: taskFile,
	})
}

// Implementation renders the implementation prompt (stage 5). Implements
// taskmachine.PromptBuilder.
func (b *Builder) Implementation(taskID, blueprint string, record *state.ExecutionRecord) string {
	return mustRender(b.templateOr(implementationTemplate, b.overrides.Implementation), map[string]string{
		phTaskID:         taskID,
		phBlueprint:      blueprint,
		phAttempts:       strconv.Itoa(record.Attempts),
		phErrorHistory:   formatErrorHistory(record.ErrorHistory),
		phForFutureTasks: formatLines(record.Completion.ForFutureTasks),
	})
}

// Reanalysis renders the deep re-analysis prompt (§4.4.6). Implements
// taskmachine.PromptBuilder.
func (b *Builder) Reanalysis(taskID, blueprint string, record *state.ExecutionRecord) string {
	return mustRender(b.templateOr(reanalysisTemplate, b.overrides.Reanalysis), map[string]string{
		phTaskID:       taskID,
		phBlueprint:    blueprint,
		phAttempts:     strconv.Itoa(record.Attempts),
		phErrorHistory: formatErrorHistory(record.ErrorHistory),
	})
}

// Reflection renders the reflection-hook prompt (§4.3 supplemented).
// Implements taskmachine.PromptBuilder.
func (b *Builder) Reflection(taskID, blueprint string, record *state.ExecutionRecord) string {
	return mustRender(b.templateOr(reflectionTemplate, ""), map[string]string{
		phTaskID:    taskID,
		phBlueprint: blueprint,
		phAttempts:  strconv.Itoa(record.Attempts),
		phArtifacts: formatArtifacts(record.Artifacts),
	})
}

// Checklist renders the review-checklist generation prompt (produced by an
// earlier stage not specified by §4.4.3 itself; see ChecklistCompletion for
// the §4.4.3 verification prompt).
func (b *Builder) Checklist(taskID, blueprint string) string {
	return mustRender(b.templateOr(checklistTemplate, ""), map[string]string{
		phTaskID:    taskID,
		phBlueprint: blueprint,
	})
}

// ChecklistCompletion renders the §4.4.3 checklist-completion prompt:
// checklistByFile is the items grouped by file (as produced by
// internal/review's groupChecklistByFile/formatChecklistByFile), checklistPath
// is the on-disk path to review-checklist.json, and checklistJSON is its raw
// contents.
func (b *Builder) ChecklistCompletion(taskID, checklistPath, checklistByFile, checklistJSON string) string {
	return mustRender(b.templateOr(checklistCompletionTemplate, ""), map[string]string{
		phTaskID:          taskID,
		phChecklistPath:   checklistPath,
		phChecklistByFile: checklistByFile,
		phChecklistJSON:   checklistJSON,
	})
}

// ReviewFast renders the first-pass review prompt (§4.4.4).
func (b *Builder) ReviewFast(taskID, blueprint, contextChain, checklist string) string {
	return mustRender(b.templateOr(reviewFastTemplate, b.overrides.Review), map[string]string{
		phTaskID:       taskID,
		phBlueprint:    blueprint,
		phContextChain: contextChain,
		phChecklist:    checklist,
	})
}

// ReviewHard renders the escalated review prompt (§4.4.4), used as the
// second pass once the fast pass concludes the task is completed and its
// declared @difficulty is not fast.
func (b *Builder) ReviewHard(taskID, blueprint, contextChain, checklist, difficulty string) string {
	return mustRender(b.templateOr(reviewHardTemplate, b.overrides.Review), map[string]string{
		phTaskID:       taskID,
		phBlueprint:    blueprint,
		phContextChain: contextChain,
		phChecklist:    checklist,
		phDifficulty:   difficulty,
	})
}

// CriticalSweep renders the finalization critical-bug sweep prompt (§4.7).
func (b *Builder) CriticalSweep(codeReview string) string {
	return mustRender(b.templateOr(criticalSweepTemplate, ""), map[string]string{phCodeReview: codeReview})
}

// templateOr returns a Template built from override if non-empty, otherwise
// the built-in default. Overrides are rebuilt per call rather than cached
// since they're sourced from config loaded once at startup, not a hot path.
func (b *Builder) templateOr(builtin *Template, override string) *Template {
	if override == "" {
		return builtin
	}
	return NewTemplate(builtin.name+"-override", override, builtin.Placeholders()...)
}

func mustRender(t *Template, values map[string]string) string {
	out, err := t.Render(values)
	if err != nil {
		// A missing placeholder value here is a programmer error in this
		// package's call sites, not operator input; templates are rendered
		// with a fixed, fully-populated value map at every call site above.
		panic(fmt.Sprintf("prompt: %v", err))
	}
	return out
}

func formatErrorHistory(entries []state.ErrorEntry) string {
	if len(entries) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString("- ")
		if e.Stage != "" {
			sb.WriteString("[" + e.Stage + "] ")
		}
		sb.WriteString(e.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatArtifacts(artifacts []state.Artifact) string {
	if len(artifacts) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, a := range artifacts {
		sb.WriteString(fmt.Sprintf("- (%s) %s\n", a.Type, a.Path))
	}
	return sb.String()
}

func formatLines(lines []string) string {
	if len(lines) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString("- " + l + "\n")
	}
	return sb.String()
}
