package state

import (
	"encoding/json"
	"time"
)

// Status is the top-level execution state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// PhaseStatus is the state of one entry in an execution record's phase list.
type PhaseStatus string

const (
	PhaseStatusPending    PhaseStatus = "pending"
	PhaseStatusInProgress PhaseStatus = "in_progress"
	PhaseStatusCompleted  PhaseStatus = "completed"
	PhaseStatusFailed     PhaseStatus = "failed"
)

// ExecutionPhase is one sub-step within the implementation stage.
type ExecutionPhase struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Status PhaseStatus `json:"status"`
}

// ArtifactType categorizes a file touched by a task's implementation.
type ArtifactType string

const (
	ArtifactFile ArtifactType = "file"
	ArtifactTest ArtifactType = "test"
	ArtifactDoc  ArtifactType = "doc"
)

// Artifact records one file created or modified while implementing a task.
type Artifact struct {
	Type ArtifactType `json:"type"`
	Path string       `json:"path"`
}

// ErrorEntry is one append-only record in a task's error history.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"phase"`
	Message   string    `json:"message"`
}

// Uncertainty records an assumption the executor made while implementing a
// task, along with its confidence and optional resolution.
type Uncertainty struct {
	ID         string  `json:"id"`
	Topic      string  `json:"topic"`
	Assumption string  `json:"assumption"`
	Confidence float64 `json:"confidence"`
	Resolution string  `json:"resolution,omitempty"`
}

// CompletionStatus is the inner completion.status field.
type CompletionStatus string

const (
	CompletionPendingValidation CompletionStatus = "pending_validation"
	CompletionCompleted         CompletionStatus = "completed"
)

// Completion holds the task's self-reported completion summary.
type Completion struct {
	Status           CompletionStatus `json:"status"`
	Summary          []string         `json:"summary,omitempty"`
	ForFutureTasks   []string         `json:"forFutureTasks,omitempty"`
	BlockedBy        []string         `json:"blockedBy,omitempty"`
	CodeReviewPassed bool             `json:"codeReviewPassed"`
}

// Cleanup records the "beyond the basics" cleanup checklist.
type Cleanup struct {
	DebugLogsRemoved     bool `json:"debugLogsRemoved"`
	FormattingConsistent bool `json:"formattingConsistent"`
	DeadCodeRemoved      bool `json:"deadCodeRemoved"`
}

// BeyondTheBasics wraps the Cleanup checklist under its on-disk key.
type BeyondTheBasics struct {
	Cleanup Cleanup `json:"cleanup"`
}

// ExecutionRecord is the canonical persisted state for a single task,
// serialized to execution.json.
type ExecutionRecord struct {
	Status          Status           `json:"status"`
	Attempts        int              `json:"attempts"`
	Phases          []ExecutionPhase `json:"phases"`
	CurrentPhase    string           `json:"currentPhase,omitempty"`
	Artifacts       []Artifact       `json:"artifacts,omitempty"`
	ErrorHistory    []ErrorEntry     `json:"errorHistory,omitempty"`
	Uncertainties   []Uncertainty    `json:"uncertainties,omitempty"`
	Completion      Completion       `json:"completion"`
	BeyondTheBasics BeyondTheBasics  `json:"beyondTheBasics"`

	// Extra preserves unknown keys round-tripped for forward compatibility
	// with executor backends that add fields this orchestrator does not
	// yet model.
	Extra map[string]json.RawMessage `json:"-"`
}

// executionRecordAlias has ExecutionRecord's fields without its MarshalJSON/
// UnmarshalJSON methods, so those methods can delegate to the default
// struct encoding without recursing into themselves.
type executionRecordAlias ExecutionRecord

// executionRecordKnownFields lists every JSON key ExecutionRecord declares,
// used by UnmarshalJSON to decide which top-level keys are "unknown" and
// therefore belong in Extra.
var executionRecordKnownFields = []string{
	"status", "attempts", "phases", "currentPhase", "artifacts",
	"errorHistory", "uncertainties", "completion", "beyondTheBasics",
}

// MarshalJSON merges the declared fields with any keys preserved in Extra,
// so round-tripping a record through ReadExecution/WriteExecution does not
// silently drop fields an executor backend wrote that this type does not
// yet model (§6.3).
func (r ExecutionRecord) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(executionRecordAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return known, nil
	}

	var knownFields map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownFields); err != nil {
		return nil, err
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+len(knownFields))
	for k, v := range r.Extra {
		merged[k] = v
	}
	for k, v := range knownFields {
		merged[k] = v // a declared field always wins over a stale Extra entry with the same key
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the declared fields and preserves every top-level
// key this type does not declare into Extra, so an unrecognized field
// survives a read-modify-write cycle instead of being dropped on the next
// WriteExecution (§6.3, §8's round-trip law).
func (r *ExecutionRecord) UnmarshalJSON(data []byte) error {
	var alias executionRecordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = ExecutionRecord(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range executionRecordKnownFields {
		delete(raw, key)
	}
	if len(raw) > 0 {
		r.Extra = raw
	} else {
		r.Extra = nil
	}
	return nil
}

// AllPhasesCompleted reports whether every phase in the record has reached
// the completed status. An empty phase list is not considered complete.
func (r *ExecutionRecord) AllPhasesCompleted() bool {
	if len(r.Phases) == 0 {
		return false
	}
	for _, ph := range r.Phases {
		if ph.Status != PhaseStatusCompleted {
			return false
		}
	}
	return true
}

// CleanupComplete reports whether every beyond-the-basics cleanup item is
// satisfied.
func (r *ExecutionRecord) CleanupComplete() bool {
	c := r.BeyondTheBasics.Cleanup
	return c.DebugLogsRemoved && c.FormattingConsistent && c.DeadCodeRemoved
}

// IsCompleted applies the completion predicate from the review engine
// (§4.4.5): completion.status, then status, then phase completeness, in
// that preference order; a blocked status always overrides.
func (r *ExecutionRecord) IsCompleted() bool {
	if r.Status == StatusBlocked {
		return false
	}
	if r.Completion.Status == CompletionCompleted {
		return true
	}
	if r.Status == StatusCompleted {
		return true
	}
	return r.AllPhasesCompleted()
}

// NeedsReanalysis reports whether the task has accumulated enough failed
// attempts to trigger deep re-analysis (§4.4.6): never at zero attempts,
// then every third attempt thereafter.
func (r *ExecutionRecord) NeedsReanalysis() bool {
	return r.Attempts > 0 && r.Attempts%3 == 0
}
