// Package dashboard contains the pure aggregation and classification
// logic behind the OmniLens dashboard views. Every function in this
// package is a total function over already-fetched collections: no
// I/O, no shared state, no errors for well-formed input.
package dashboard

import "time"

// RunStatus is the lifecycle state of a workflow run as reported by
// the GitHub Actions API.
type RunStatus string

const (
	StatusQueued     RunStatus = "queued"
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
)

// RunConclusion is the terminal result of a completed run. It is empty
// while the run has not completed.
type RunConclusion string

const (
	ConclusionSuccess RunConclusion = "success"
	ConclusionFailure RunConclusion = "failure"
	ConclusionNone    RunConclusion = ""
)

// WorkflowRun is a read-only projection of a GitHub Actions run. A run
// id may be observed multiple times across polls with status and
// conclusion moving from in_progress/empty to completed/success-or-failure.
type WorkflowRun struct {
	ID           int64         `json:"id"`
	WorkflowID   int64         `json:"workflow_id"`
	WorkflowName string        `json:"workflow_name"`
	WorkflowPath string        `json:"workflow_path"`
	Status       RunStatus     `json:"status"`
	Conclusion   RunConclusion `json:"conclusion"`
	RunStartedAt time.Time     `json:"run_started_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	HTMLURL      string        `json:"html_url"`
}

// Completed reports whether the run has reached a terminal status.
func (r WorkflowRun) Completed() bool {
	return r.Status == StatusCompleted
}

// Running reports whether the run is queued or in progress.
func (r WorkflowRun) Running() bool {
	return r.Status == StatusQueued || r.Status == StatusInProgress
}

// WorkflowState is the lifecycle state of a workflow definition.
type WorkflowState string

const (
	WorkflowActive  WorkflowState = "active"
	WorkflowDeleted WorkflowState = "deleted"
)

// Workflow is a named, pathed workflow definition. GitHub is the source
// of truth; OmniLens only caches active workflows.
type Workflow struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Path  string        `json:"path"`
	State WorkflowState `json:"state"`
}

// RunnerType distinguishes GitHub-hosted from self-hosted runners.
type RunnerType string

const (
	RunnerHosted     RunnerType = "hosted"
	RunnerSelfHosted RunnerType = "self-hosted"
)

// JobRecord is a single job execution used by the usage aggregator.
type JobRecord struct {
	WorkflowName string        `json:"workflow_name"`
	WorkflowPath string        `json:"workflow_path"`
	RunID        int64         `json:"run_id"`
	RunnerType   RunnerType    `json:"runner_type"`
	RuntimeOS    string        `json:"runtime_os"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}
