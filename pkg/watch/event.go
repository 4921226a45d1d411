// Package watch tracks long-running generation jobs from the client side:
// a polling Monitor that fans progress events out to listeners, a Registry
// of jobs the user has touched, a Pipeline that chains stages into one
// weighted progress number, and recovery state so polling survives restarts.
package watch

import (
	"context"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/pkg/client"
	"github.com/weihanchu/slidecast/pkg/models"
)

// StatusGateway is the job-status boundary the monitor polls through.
// *client.Client satisfies it.
type StatusGateway interface {
	Job(ctx context.Context, id uuid.UUID) (*client.PollResult, error)
	CancelJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// ProgressEvent is an immutable snapshot of a job at one poll tick. The
// next tick's event supersedes it; no history is kept.
type ProgressEvent struct {
	JobID        uuid.UUID
	Fraction     float64
	Status       string
	CurrentStep  int
	TotalSteps   int
	ErrorMessage string

	// Finished mirrors the server's poll contract and is the single
	// authoritative completion signal for everything downstream.
	Finished bool
}

// Failed reports whether the job ended in failure.
func (e ProgressEvent) Failed() bool {
	return e.Finished && e.Status == models.JobStatusFailed
}

// Completed reports whether the job ended successfully.
func (e ProgressEvent) Completed() bool {
	return e.Finished && e.Status == models.JobStatusCompleted
}

func eventFromPoll(result *client.PollResult) ProgressEvent {
	job := result.Job
	ev := ProgressEvent{
		JobID:       job.ID,
		Fraction:    job.Progress,
		Status:      job.Status,
		CurrentStep: job.CurrentStep,
		TotalSteps:  job.TotalSteps,
		Finished:    result.Finished,
	}
	if job.ErrorMessage != nil {
		ev.ErrorMessage = *job.ErrorMessage
	}
	return ev
}
