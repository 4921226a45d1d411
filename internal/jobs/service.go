// Package jobs tracks long-running generation jobs: creation, progress
// accounting, terminal transitions, and cancellation. Every mutation is
// mirrored into the cache so the high-frequency poll path stays off Postgres.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/internal/cache"
	"github.com/weihanchu/slidecast/internal/store"
	"github.com/weihanchu/slidecast/pkg/models"
)

const snapshotTTL = 30 * time.Minute

// ErrNotCancellable is returned when cancelling a job that already terminated.
var ErrNotCancellable = errors.New("job is not cancellable")

// Service manages job lifecycle.
type Service struct {
	store store.Store
	cache cache.Cache
}

// NewService creates a job service.
func NewService(st store.Store, ca cache.Cache) *Service {
	return &Service{store: st, cache: ca}
}

// Create inserts a pending job for the given project.
func (s *Service) Create(ctx context.Context, projectID uuid.UUID, jobType string, totalSteps int) (*models.Job, error) {
	if !models.ValidJobType(jobType) {
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Type:       jobType,
		Status:     models.JobStatusPending,
		TotalSteps: totalSteps,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	s.refreshSnapshot(ctx, job.ID)
	return job, nil
}

// Get returns the current job snapshot, served from cache when possible.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if snapshot, ok, err := s.cache.GetJobSnapshot(ctx, id); err == nil && ok {
		var job models.Job
		if err := json.Unmarshal(snapshot, &job); err == nil {
			return &job, nil
		}
		// Corrupt cache entry: fall through to the store.
		slog.Warn("discarding unreadable job snapshot", "job_id", id)
	}

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheJob(ctx, job)
	return job, nil
}

// List returns jobs matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter store.JobFilter) ([]*models.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

// Start transitions the job to running and records the step count when the
// worker only learns it after probing its input (e.g. PDF page count).
func (s *Service) Start(ctx context.Context, id uuid.UUID, totalSteps int) error {
	if totalSteps > 0 {
		if err := s.store.SetJobTotalSteps(ctx, id, totalSteps); err != nil {
			return fmt.Errorf("setting total steps: %w", err)
		}
	}
	if err := s.store.UpdateJobStatus(ctx, id, models.JobStatusRunning); err != nil {
		return fmt.Errorf("marking job running: %w", err)
	}
	s.refreshSnapshot(ctx, id)
	return nil
}

// Advance records one completed step. Progress is currentStep/totalSteps; the
// store enforces monotonicity.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, currentStep, totalSteps int) error {
	progress := 0.0
	if totalSteps > 0 {
		progress = float64(currentStep) / float64(totalSteps)
	}
	if progress > 1.0 {
		progress = 1.0
	}
	if err := s.store.UpdateJobProgress(ctx, id, progress, currentStep); err != nil {
		return fmt.Errorf("advancing job: %w", err)
	}
	s.refreshSnapshot(ctx, id)
	return nil
}

// Complete marks the job completed with progress pinned to 1.0.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.UpdateJobStatus(ctx, id, models.JobStatusCompleted); err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	s.refreshSnapshot(ctx, id)
	return nil
}

// Fail marks the job failed and records the error message.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, message string) error {
	if err := s.store.UpdateJobStatus(ctx, id, models.JobStatusFailed,
		store.WithErrorMessage(message)); err != nil {
		return fmt.Errorf("failing job: %w", err)
	}
	s.refreshSnapshot(ctx, id)
	return nil
}

// Cancel moves a pending or running job to failed with a cancellation
// message. Workers observe the status flip between steps and abandon the
// remaining work; there is no forced teardown of an in-flight step.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return ErrNotCancellable
	}

	if err := s.store.UpdateJobStatus(ctx, id, models.JobStatusFailed,
		store.WithErrorMessage("job cancelled")); err != nil {
		return fmt.Errorf("cancelling job: %w", err)
	}
	s.refreshSnapshot(ctx, id)
	slog.Info("job cancelled", "job_id", id, "type", job.Type)
	return nil
}

// Cancelled reports whether the job has been cancelled or otherwise failed
// out from under a worker. Errors resolve to false so a flaky read never
// aborts a healthy run.
func (s *Service) Cancelled(ctx context.Context, id uuid.UUID) bool {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return false
	}
	return job.Status == models.JobStatusFailed
}

func (s *Service) refreshSnapshot(ctx context.Context, id uuid.UUID) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		slog.Warn("refreshing job snapshot", "job_id", id, "error", err)
		return
	}
	s.cacheJob(ctx, job)
}

func (s *Service) cacheJob(ctx context.Context, job *models.Job) {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := s.cache.SetJobSnapshot(ctx, job.ID, snapshot, snapshotTTL); err != nil {
		slog.Warn("caching job snapshot", "job_id", job.ID, "error", err)
	}
}
