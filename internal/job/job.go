// Package job orchestrates GraphGen pipeline runs as asynchronous jobs.
//
// The Manager validates submissions, records jobs in a Registry, and hands
// each execution to a worker pool so long pipeline runs never block callers
// polling other jobs. Each job has exactly one owning goroutine allowed to
// transition it; every read returns a copy.
package job

import (
	"time"

	"github.com/phrazzld/graphgen-api/internal/credential"
	"github.com/phrazzld/graphgen-api/internal/pipeline"
	"github.com/phrazzld/graphgen-api/internal/redact"
)

// Status is a job's lifecycle state.
type Status string

// Lifecycle states. A job only ever moves queued → running → succeeded|failed.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransitionTo reports whether next directly follows s in the lifecycle.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusSucceeded || next == StatusFailed
	default:
		return false
	}
}

// Failure is the structured reason a job failed.
type Failure struct {
	Cause   pipeline.Cause `json:"cause"`
	Message string         `json:"message"`
}

// Job is one pipeline execution tracked from submission to a terminal state.
type Job struct {
	ID         string
	Status     Status
	ConfigPath string
	OutputDir  string
	Overrides  map[string]any
	LLM        credential.Settings

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	RunID   string
	RunPath string
	LogFile string
	Error   string
	Failure *Failure

	// seq orders jobs created within the same clock tick.
	seq uint64
}

// clone returns a deep copy of j.
func (j Job) clone() Job {
	c := j
	c.Overrides = pipeline.CopyMap(j.Overrides)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Failure != nil {
		f := *j.Failure
		c.Failure = &f
	}
	return c
}

// Response is the external view of a job. API keys are masked.
type Response struct {
	JobID       string               `json:"job_id"`
	Status      Status               `json:"status"`
	ConfigPath  string               `json:"config_path"`
	OutputDir   string               `json:"output_dir"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	RunID       string               `json:"run_id,omitempty"`
	LogFile     string               `json:"log_file,omitempty"`
	RunPath     string               `json:"run_path,omitempty"`
	Error       string               `json:"error,omitempty"`
	Failure     *Failure             `json:"failure,omitempty"`
	LLMSettings *credential.Settings `json:"llm_settings,omitempty"`
}

// Response renders j for callers.
func (j Job) Response() Response {
	c := j.clone()
	r := Response{
		JobID:       c.ID,
		Status:      c.Status,
		ConfigPath:  c.ConfigPath,
		OutputDir:   c.OutputDir,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		StartedAt:   c.StartedAt,
		CompletedAt: c.CompletedAt,
		RunID:       c.RunID,
		LogFile:     c.LogFile,
		RunPath:     c.RunPath,
		Error:       c.Error,
		Failure:     c.Failure,
	}
	if !c.LLM.IsZero() {
		s := c.LLM
		s.SynthesizerAPIKey = redact.Mask(s.SynthesizerAPIKey)
		s.TraineeAPIKey = redact.Mask(s.TraineeAPIKey)
		r.LLMSettings = &s
	}
	return r
}
