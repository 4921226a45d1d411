package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/internal/api/response"
	"github.com/weihanchu/slidecast/internal/storage"
	"github.com/weihanchu/slidecast/internal/store"
	"github.com/weihanchu/slidecast/pkg/models"
)

// maxPDFBytes caps uploaded deck size.
const maxPDFBytes = 200 << 20

// NewCreateProjectHandler returns an http.HandlerFunc for POST /api/v1/projects.
func NewCreateProjectHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}

		now := time.Now().UTC()
		project := &models.Project{
			ID:        uuid.New(),
			Name:      req.Name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.CreateProject(r.Context(), project); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "DUPLICATE_NAME",
					"A project with this name already exists", nil)
				return
			}
			internalError(w, "creating project", err)
			return
		}
		response.Created(w, project)
	}
}

// NewListProjectsHandler returns an http.HandlerFunc for GET /api/v1/projects.
func NewListProjectsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := st.ListProjects(r.Context())
		if err != nil {
			internalError(w, "listing projects", err)
			return
		}
		if projects == nil {
			projects = []*models.Project{}
		}
		response.JSON(w, projects)
	}
}

// NewGetProjectHandler returns an http.HandlerFunc for GET /api/v1/projects/{projectID}.
// The response includes the project's split pages.
func NewGetProjectHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "projectID")
		if !ok {
			return
		}

		project, err := st.GetProject(r.Context(), id)
		if err != nil {
			notFoundOrInternal(w, "Project", err)
			return
		}
		pages, err := st.ListPages(r.Context(), id)
		if err != nil {
			internalError(w, "listing pages", err)
			return
		}
		if pages == nil {
			pages = []*models.Page{}
		}

		response.JSON(w, struct {
			*models.Project
			Pages []*models.Page `json:"pages"`
		}{project, pages})
	}
}

// NewRenameProjectHandler returns an http.HandlerFunc for PUT /api/v1/projects/{projectID}.
func NewRenameProjectHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "projectID")
		if !ok {
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}

		project, err := st.RenameProject(r.Context(), id, req.Name)
		if err != nil {
			notFoundOrInternal(w, "Project", err)
			return
		}
		response.JSON(w, project)
	}
}

// NewDeleteProjectHandler returns an http.HandlerFunc for DELETE /api/v1/projects/{projectID}.
// Removes the database rows and everything under the project's data dir.
func NewDeleteProjectHandler(st store.Store, paths storage.Paths) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "projectID")
		if !ok {
			return
		}

		if err := st.DeleteProject(r.Context(), id); err != nil {
			notFoundOrInternal(w, "Project", err)
			return
		}
		if err := paths.RemoveProject(id); err != nil {
			slog.Warn("removing project files", "project_id", id, "error", err)
		}
		response.NoContent(w)
	}
}

// NewUploadPDFHandler returns an http.HandlerFunc for POST /api/v1/projects/{projectID}/pdf.
// Accepts a multipart form with a "file" field. Replacing the deck resets the
// recorded page count; pages are rebuilt by the next split job.
func NewUploadPDFHandler(st store.Store, paths storage.Paths) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "projectID")
		if !ok {
			return
		}
		if _, err := st.GetProject(r.Context(), id); err != nil {
			notFoundOrInternal(w, "Project", err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxPDFBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Multipart field 'file' is required", nil)
			return
		}
		defer file.Close()

		if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			response.Error(w, http.StatusBadRequest, "INVALID_FILE_TYPE",
				"Only PDF files are accepted", nil)
			return
		}

		if err := paths.EnsureDir(paths.ProjectDir(id)); err != nil {
			internalError(w, "creating project dir", err)
			return
		}
		pdfPath := paths.PDFPath(id)
		dst, err := os.Create(pdfPath)
		if err != nil {
			internalError(w, "creating pdf file", err)
			return
		}
		written, err := io.Copy(dst, file)
		closeErr := dst.Close()
		if err != nil || closeErr != nil {
			os.Remove(pdfPath)
			internalError(w, "writing pdf file", fmt.Errorf("copy: %v, close: %v", err, closeErr))
			return
		}

		if err := st.SetProjectPDF(r.Context(), id, pdfPath, 0); err != nil {
			notFoundOrInternal(w, "Project", err)
			return
		}

		slog.Info("pdf uploaded", "project_id", id, "bytes", written, "filename", header.Filename)
		project, err := st.GetProject(r.Context(), id)
		if err != nil {
			notFoundOrInternal(w, "Project", err)
			return
		}
		response.JSON(w, project)
	}
}

// NewPageImageHandler returns an http.HandlerFunc for
// GET /api/v1/projects/{projectID}/pages/{pageNumber}/image.
func NewPageImageHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "projectID")
		if !ok {
			return
		}
		number, err := strconv.Atoi(chi.URLParam(r, "pageNumber"))
		if err != nil || number < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"pageNumber must be a positive integer", nil)
			return
		}

		pages, err := st.ListPages(r.Context(), id)
		if err != nil {
			internalError(w, "listing pages", err)
			return
		}
		for _, page := range pages {
			if page.Number == number {
				http.ServeFile(w, r, page.ImagePath)
				return
			}
		}
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Page not found", nil)
	}
}

// --- shared helpers ---

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			fmt.Sprintf("%s must be a valid UUID", param), nil)
		return uuid.Nil, false
	}
	return id, true
}

func notFoundOrInternal(w http.ResponseWriter, resource string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", resource+" not found", nil)
		return
	}
	internalError(w, "store error", err)
}

func internalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"An unexpected error occurred", nil)
}
