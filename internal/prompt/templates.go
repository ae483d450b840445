package prompt

// Placeholder names shared across the built-in templates. Declaring these
// as constants keeps Builder's Render calls and the template bodies below
// in sync — a typo in either place is caught at package init via
// NewTemplate's panic-on-unknown-placeholder check.
const (
	phTaskID          = "taskID"
	phTaskFile        = "taskFile"
	phBlueprint       = "blueprint"
	phObjective       = "objective"
	phAttempts        = "attempts"
	phErrorHistory    = "errorHistory"
	phArtifacts       = "artifacts"
	phForFutureTasks  = "forFutureTasks"
	phChecklist       = "checklist"
	phContextChain    = "contextChain"
	phDifficulty      = "difficulty"
	phCodeReview      = "codeReview"
	phChecklistPath   = "checklistPath"
	phChecklistByFile = "checklistByFile"
	phChecklistJSON   = "checklistJSON"
)

const bootstrapBody = `You are decomposing a software engineering objective into an executable task graph.

## Objective
{{objective}}

## Instructions
Break the objective into the smallest independent units of work you can. For
each task, write a TASK.md under its own .taskforge/TASKn/ folder describing
the work, its file ownership, and a @dependencies line naming the task ids
(or "none") it must wait on.`

const decompositionBody = `You are refining the task graph for the following objective.

## Objective
{{objective}}

## Instructions
Review the existing task folders under .taskforge/. Split any task whose
scope is too large for a single focused change, and merge trivially small
ones. Keep every @dependencies line consistent with the resulting folder
layout.`

const dependencyAssignmentBody = `You are assigning dependency edges between tasks for the following objective.

## Objective
{{objective}}

## Instructions
For every task folder under .taskforge/, confirm its @dependencies line
names only task ids that genuinely must complete first. A task with no
prerequisite should declare "none".`

const blueprintBody = `You are producing an implementation blueprint for a single task.

## Task
{{taskID}}

## Task description
{{taskFile}}

## Instructions
Write BLUEPRINT.md describing the concrete plan of changes for this task,
and an execution.json skeleton recording its initial status. If this task's
scope is still too large for one focused implementation pass, delete this
task's folder and replace it with subtask folders instead (e.g. {{taskID}}.1,
{{taskID}}.2), each with its own TASK.md and @dependencies line.`

const implementationBody = `You are implementing a task per its blueprint.

## Task
{{taskID}}

## Blueprint
{{blueprint}}

## Attempt
This is attempt {{attempts}} for this task.

## Prior errors
{{errorHistory}}

## Notes this task has recorded for future tasks
{{forFutureTasks}}

## Instructions
Make the changes described in the blueprint. Update execution.json to
reflect the artifacts you touched and your completion status.`

const reanalysisBody = `You are performing a deep re-analysis of a task that has failed multiple
implementation attempts.

## Task
{{taskID}}

## Blueprint
{{blueprint}}

## Attempt
This is attempt {{attempts}} for this task.

## Prior errors
{{errorHistory}}

## Instructions
Re-read the blueprint and the prior error history carefully. Consider
whether the blueprint's plan itself is flawed, not just the implementation.
Revise BLUEPRINT.md if needed, then make the changes and update
execution.json.`

const reflectionBody = `You are reflecting on a task that has required unusual effort.

## Task
{{taskID}}

## Blueprint
{{blueprint}}

## Attempt
This is attempt {{attempts}} for this task.

## Artifacts touched so far
{{artifacts}}

## Instructions
Append a short entry to REFLECTION.md describing what made this task
difficult and what you'd do differently, so future tasks in this run can
benefit from the lesson.`

const checklistBody = `You are producing a review checklist for a completed task.

## Task
{{taskID}}

## Blueprint
{{blueprint}}

## Instructions
Write review-checklist.json enumerating the concrete items a reviewer
should verify for this change (tests added, edge cases covered, style
conventions followed).`

const checklistCompletionBody = `You are verifying a review checklist against a completed task's changes.

## Task
{{taskID}}

## Checklist file
{{checklistPath}}

## Items, grouped by file
{{checklistByFile}}

## Raw checklist JSON
{{checklistJSON}}

## Instructions
For each item listed above, open the file it names and check whether the
described concern is actually satisfied in the current changes. Set its
"reviewed" field to true in {{checklistPath}} only once you've confirmed
that, leaving it false if the concern isn't met or you can't verify it.
Do not add or remove items; this pass only updates "reviewed".`

const reviewFastBody = `You are reviewing a completed task's changes.

## Task
{{taskID}}

## Blueprint
{{blueprint}}

## Context chain
{{contextChain}}

## Checklist
{{checklist}}

## Instructions
Check the implementation against the blueprint and checklist. Write
CODE_REVIEW.md with a "## Status" section whose first line is either
"Approved" or a description of what's blocking approval.`

const reviewHardBody = `You are performing an escalated, deeper review of a task's changes, after
a prior review pass concluded the task is complete.

## Task
{{taskID}}

## Blueprint
{{blueprint}}

## Context chain
{{contextChain}}

## Checklist
{{checklist}}

## Declared difficulty
{{difficulty}}

## Instructions
Give this review extra scrutiny: re-check correctness, integration with
the rest of the context chain, and whether the checklist items are
genuinely satisfied, not just nominally present. Write CODE_REVIEW.md with
a "## Status" section whose first line is either "Approved" or a
description of what's blocking approval.`

const criticalSweepBody = `You are performing a final critical-bug sweep before this run is finalized.

## Prior review
{{codeReview}}

## Instructions
Look for any remaining critical defects across the changes made in this
run: crashes, data loss, security issues, or broken builds. If you find
none, write CRITICAL_REVIEW_PASSED.md. Otherwise describe what you found
and fix it.`

// Built-in templates, one per named stage (§4.9).
var (
	bootstrapTemplate            = NewTemplate("bootstrap", bootstrapBody, phObjective)
	decompositionTemplate        = NewTemplate("decomposition", decompositionBody, phObjective)
	dependencyAssignmentTemplate = NewTemplate("dependency-assignment", dependencyAssignmentBody, phObjective)
	blueprintTemplate            = NewTemplate("blueprint", blueprintBody, phTaskID, phTaskFile)
	implementationTemplate       = NewTemplate("implementation", implementationBody, phTaskID, phBlueprint, phAttempts, phErrorHistory, phForFutureTasks)
	reanalysisTemplate           = NewTemplate("reanalysis", reanalysisBody, phTaskID, phBlueprint, phAttempts, phErrorHistory)
	reflectionTemplate           = NewTemplate("reflection", reflectionBody, phTaskID, phBlueprint, phAttempts, phArtifacts)
	checklistTemplate            = NewTemplate("checklist", checklistBody, phTaskID, phBlueprint)
	checklistCompletionTemplate  = NewTemplate("checklist-completion", checklistCompletionBody, phTaskID, phChecklistPath, phChecklistByFile, phChecklistJSON)
	reviewFastTemplate           = NewTemplate("review-fast", reviewFastBody, phTaskID, phBlueprint, phContextChain, phChecklist)
	reviewHardTemplate           = NewTemplate("review-hard", reviewHardBody, phTaskID, phBlueprint, phContextChain, phChecklist, phDifficulty)
	criticalSweepTemplate        = NewTemplate("critical-sweep", criticalSweepBody, phCodeReview)
)
