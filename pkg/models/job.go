package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

const (
	JobTypePageSplit        = "page_split"
	JobTypeScriptGeneration = "script_generation"
	JobTypeAudioGeneration  = "audio_generation"
)

// Job tracks one long-running generation task. The API returns a job id when a
// generation request is accepted; clients poll GET /api/v1/jobs/{job_id} until
// the status is completed or failed. Progress is monotonic while running and
// reaches 1.0 only on completion.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	ProjectID    uuid.UUID  `db:"project_id"    json:"project_id"`
	Type         string     `db:"type"          json:"type"`
	Status       string     `db:"status"        json:"status"`
	Progress     float64    `db:"progress"      json:"progress"`
	CurrentStep  int        `db:"current_step"  json:"current_step"`
	TotalSteps   int        `db:"total_steps"   json:"total_steps"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ValidJobType reports whether t is one of the known job kinds.
func ValidJobType(t string) bool {
	switch t {
	case JobTypePageSplit, JobTypeScriptGeneration, JobTypeAudioGeneration:
		return true
	}
	return false
}
