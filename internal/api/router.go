package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/weihanchu/slidecast/internal/api/middleware"
	"github.com/weihanchu/slidecast/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateProject http.HandlerFunc
	ListProjects  http.HandlerFunc
	GetProject    http.HandlerFunc
	RenameProject http.HandlerFunc
	DeleteProject http.HandlerFunc
	UploadPDF     http.HandlerFunc
	PageImage     http.HandlerFunc

	StartSplit   http.HandlerFunc
	StartScripts http.HandlerFunc
	StartAudio   http.HandlerFunc

	ListScripts   http.HandlerFunc
	GetScript     http.HandlerFunc
	UpdateScript  http.HandlerFunc
	DialogueAudio http.HandlerFunc

	PollJob     http.HandlerFunc
	ListJobs    http.HandlerFunc
	RunningJobs http.HandlerFunc
	CancelJob   http.HandlerFunc

	GetVoices http.HandlerFunc
	PutVoices http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Route("/api/v1/projects", func(r chi.Router) {
			r.Post("/", orNotImplemented(deps.CreateProject))
			r.Get("/", orNotImplemented(deps.ListProjects))

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", orNotImplemented(deps.GetProject))
				r.Put("/", orNotImplemented(deps.RenameProject))
				r.Delete("/", orNotImplemented(deps.DeleteProject))
				r.Post("/pdf", orNotImplemented(deps.UploadPDF))
				r.Get("/pages/{pageNumber}/image", orNotImplemented(deps.PageImage))

				r.Post("/split", orNotImplemented(deps.StartSplit))
				r.Post("/audio", orNotImplemented(deps.StartAudio))

				r.Route("/scripts", func(r chi.Router) {
					r.Post("/", orNotImplemented(deps.StartScripts))
					r.Get("/", orNotImplemented(deps.ListScripts))
					r.Get("/{pageNumber}", orNotImplemented(deps.GetScript))
					r.Put("/{pageNumber}", orNotImplemented(deps.UpdateScript))
					r.Get("/{pageNumber}/audio/{lineID}", orNotImplemented(deps.DialogueAudio))
				})
			})
		})

		r.Route("/api/v1/jobs", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.ListJobs))
			r.Get("/running", orNotImplemented(deps.RunningJobs))
			r.Get("/{jobID}", orNotImplemented(deps.PollJob))
			r.Delete("/{jobID}", orNotImplemented(deps.CancelJob))
		})

		r.Get("/api/v1/voices", orNotImplemented(deps.GetVoices))
		r.Put("/api/v1/voices", orNotImplemented(deps.PutVoices))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
