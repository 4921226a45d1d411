package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/weihanchu/slidecast/internal/api/response"
	"github.com/weihanchu/slidecast/internal/store"
	"github.com/weihanchu/slidecast/pkg/models"
)

// NewGetVoicesHandler returns an http.HandlerFunc for GET /api/v1/voices.
func NewGetVoicesHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group, err := st.CurrentVoiceGroup(r.Context())
		if err != nil {
			notFoundOrInternal(w, "Voice group", err)
			return
		}
		response.JSON(w, group)
	}
}

// NewPutVoicesHandler returns an http.HandlerFunc for PUT /api/v1/voices.
// Saves the group and makes it current. A narrator voice is mandatory since
// it is the fallback for unmapped roles.
func NewPutVoicesHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name  string            `json:"name"`
			Roles map[string]string `json:"roles"`
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
		if len(req.Roles) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "roles must not be empty", nil)
			return
		}
		if req.Roles[models.RoleNarrator] == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"roles must include a narrator voice", nil)
			return
		}
		for role, voice := range req.Roles {
			if strings.TrimSpace(role) == "" || strings.TrimSpace(voice) == "" {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"role names and voice ids must not be blank", nil)
				return
			}
		}

		group := &models.VoiceGroup{Name: req.Name, Roles: req.Roles}
		if err := st.SaveVoiceGroup(r.Context(), group, true); err != nil {
			internalError(w, "saving voice group", err)
			return
		}
		response.JSON(w, group)
	}
}
