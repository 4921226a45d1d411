package watch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/pkg/models"
)

// Registry keeps the jobs the user has touched this session, in first-seen
// order, refreshed on demand through the gateway. It owns the interplay
// between cancelling a job server-side and tearing down its local watch.
type Registry struct {
	gateway StatusGateway
	monitor *Monitor

	mu   sync.Mutex
	jobs []*models.Job
}

// NewRegistry builds a registry over the given gateway and monitor.
func NewRegistry(gateway StatusGateway, monitor *Monitor) *Registry {
	return &Registry{gateway: gateway, monitor: monitor}
}

// Track upserts a job into the collection without a network round trip,
// for jobs the caller just received from the server.
func (r *Registry) Track(job *models.Job) {
	r.upsert(job)
}

// Refresh fetches the current state of jobID and upserts it.
func (r *Registry) Refresh(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	result, err := r.gateway.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	r.upsert(result.Job)
	return result.Job, nil
}

// Jobs returns the tracked jobs in first-seen order.
func (r *Registry) Jobs() []*models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Get returns the tracked job for jobID, if present.
func (r *Registry) Get(jobID uuid.UUID) (*models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.ID == jobID {
			return job, true
		}
	}
	return nil, false
}

// Cancel asks the server to cancel jobID, then drops it from the collection
// and stops the monitor if it was the watched job. Local teardown happens
// even when the server call fails; the error is still returned so the caller
// can surface it.
func (r *Registry) Cancel(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.gateway.CancelJob(ctx, jobID)

	r.mu.Lock()
	for i, job := range r.jobs {
		if job.ID == jobID {
			r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	if watched, ok := r.monitor.Watching(); ok && watched == jobID {
		r.monitor.Stop()
	}
	return err
}

func (r *Registry) upsert(job *models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.jobs {
		if existing.ID == job.ID {
			r.jobs[i] = job
			return
		}
	}
	r.jobs = append(r.jobs, job)
}
