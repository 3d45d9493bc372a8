package model

import "time"

// JobState is the lifecycle state of a pipeline job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobError     JobState = "error"
)

// Terminal reports whether the state is a final one.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// GlobalScope is the mutual-exclusion token for whole-run (daily) jobs.
// Per-paper jobs use the arxiv id as their scope.
const GlobalScope = "pipeline"

// PipelineJob is the transient execution record for one in-flight pipeline
// run. It is created by the registry on trigger, mutated only by the state
// machine that owns it, and archived on terminal transition.
type PipelineJob struct {
	JobID      string    `json:"job_id"`
	Scope      string    `json:"scope"` // GlobalScope or an arxiv id
	ArxivID    string    `json:"arxiv_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Date       string    `json:"date,omitempty"` // YYYY-MM-DD
	State      JobState  `json:"state"`
	RetryCount int       `json:"retry_count"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
