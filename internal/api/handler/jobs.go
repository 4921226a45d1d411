package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/internal/api/response"
	"github.com/weihanchu/slidecast/internal/jobs"
	"github.com/weihanchu/slidecast/internal/store"
	"github.com/weihanchu/slidecast/pkg/models"
)

// JobReader serves the poll and list endpoints.
type JobReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filter store.JobFilter) ([]*models.Job, error)
}

// JobCanceller cancels a pending or running job.
type JobCanceller interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

type pollResponse struct {
	Finished bool        `json:"finished"`
	Job      *models.Job `json:"job"`
}

// NewPollJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// Finished is true iff the job reached a terminal status; pollers stop on it
// rather than inspecting the status themselves.
func NewPollJobHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "jobID")
		if !ok {
			return
		}

		job, err := svc.Get(r.Context(), id)
		if err != nil {
			notFoundOrInternal(w, "Job", err)
			return
		}
		response.JSON(w, pollResponse{Finished: job.Terminal(), Job: job})
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// Supports ?type= and ?limit= filters.
func NewListJobsHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.JobFilter{Type: r.URL.Query().Get("type")}
		if filter.Type != "" && !models.ValidJobType(filter.Type) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Unknown job type", nil)
			return
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			filter.Limit = limit
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			internalError(w, "listing jobs", err)
			return
		}
		if list == nil {
			list = []*models.Job{}
		}
		response.JSON(w, list)
	}
}

// NewRunningJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs/running.
func NewRunningJobsHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context(), store.JobFilter{RunningOnly: true})
		if err != nil {
			internalError(w, "listing running jobs", err)
			return
		}
		if list == nil {
			list = []*models.Job{}
		}
		response.JSON(w, list)
	}
}

// NewCancelJobHandler returns an http.HandlerFunc for DELETE /api/v1/jobs/{jobID}.
func NewCancelJobHandler(svc JobCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "jobID")
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			case errors.Is(err, jobs.ErrNotCancellable):
				response.Error(w, http.StatusConflict, "NOT_CANCELLABLE",
					"Job already reached a terminal state", nil)
			default:
				internalError(w, "cancelling job", err)
			}
			return
		}

		job, err := svc.Get(r.Context(), id)
		if err != nil {
			notFoundOrInternal(w, "Job", err)
			return
		}
		response.JSON(w, job)
	}
}
