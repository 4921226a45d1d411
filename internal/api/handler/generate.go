package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/internal/api/response"
	"github.com/weihanchu/slidecast/internal/generate"
	"github.com/weihanchu/slidecast/internal/store"
	"github.com/weihanchu/slidecast/pkg/models"
)

// Generator dispatches a pipeline stage and returns the tracking job.
type Generator interface {
	StartSplit(ctx context.Context, projectID uuid.UUID) (*models.Job, error)
	StartScripts(ctx context.Context, projectID uuid.UUID) (*models.Job, error)
	StartAudio(ctx context.Context, projectID uuid.UUID) (*models.Job, error)
}

// NewSplitHandler returns an http.HandlerFunc for POST /api/v1/projects/{projectID}/split.
func NewSplitHandler(g Generator) http.HandlerFunc {
	return stageHandler(func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
		return g.StartSplit(ctx, id)
	})
}

// NewGenerateScriptsHandler returns an http.HandlerFunc for POST /api/v1/projects/{projectID}/scripts.
func NewGenerateScriptsHandler(g Generator) http.HandlerFunc {
	return stageHandler(func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
		return g.StartScripts(ctx, id)
	})
}

// NewGenerateAudioHandler returns an http.HandlerFunc for POST /api/v1/projects/{projectID}/audio.
func NewGenerateAudioHandler(g Generator) http.HandlerFunc {
	return stageHandler(func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
		return g.StartAudio(ctx, id)
	})
}

// stageHandler responds 202 with the pending job; the caller polls it.
func stageHandler(start func(ctx context.Context, id uuid.UUID) (*models.Job, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "projectID")
		if !ok {
			return
		}

		job, err := start(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Project not found", nil)
			case errors.Is(err, generate.ErrNoPDF):
				response.Error(w, http.StatusConflict, "NO_PDF",
					"Upload a PDF before splitting", nil)
			case errors.Is(err, generate.ErrNoPages):
				response.Error(w, http.StatusConflict, "NO_PAGES",
					"Split the deck before generating scripts", nil)
			case errors.Is(err, generate.ErrNoScripts):
				response.Error(w, http.StatusConflict, "NO_SCRIPTS",
					"Generate scripts before synthesizing audio", nil)
			default:
				internalError(w, "starting generation stage", err)
			}
			return
		}
		response.Accepted(w, job)
	}
}
