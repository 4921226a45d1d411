package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/weihanchu/slidecast/internal/api/response"
)

// Pinger is anything whose connectivity the health endpoint reports on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// Reports degraded (503) if the database or cache is unreachable.
func NewHealthHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{
			"status":   "ok",
			"database": "ok",
			"cache":    "ok",
		}
		healthy := true

		if err := db.Ping(ctx); err != nil {
			status["database"] = "unreachable"
			healthy = false
		}
		if err := cache.Ping(ctx); err != nil {
			status["cache"] = "unreachable"
			healthy = false
		}

		if !healthy {
			status["status"] = "degraded"
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more dependencies are unreachable", status)
			return
		}
		response.JSON(w, status)
	}
}
