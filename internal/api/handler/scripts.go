package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/internal/api/response"
	"github.com/weihanchu/slidecast/internal/store"
	"github.com/weihanchu/slidecast/pkg/models"
)

// NewListScriptsHandler returns an http.HandlerFunc for
// GET /api/v1/projects/{projectID}/scripts.
func NewListScriptsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "projectID")
		if !ok {
			return
		}

		scripts, err := st.ListScripts(r.Context(), id)
		if err != nil {
			internalError(w, "listing scripts", err)
			return
		}
		if scripts == nil {
			scripts = []*models.Script{}
		}
		response.JSON(w, scripts)
	}
}

// NewGetScriptHandler returns an http.HandlerFunc for
// GET /api/v1/projects/{projectID}/scripts/{pageNumber}.
func NewGetScriptHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, page, ok := scriptPath(w, r)
		if !ok {
			return
		}

		script, err := st.GetScript(r.Context(), id, page)
		if err != nil {
			notFoundOrInternal(w, "Script", err)
			return
		}
		response.JSON(w, script)
	}
}

// NewUpdateScriptHandler returns an http.HandlerFunc for
// PUT /api/v1/projects/{projectID}/scripts/{pageNumber}. Replaces the page's
// dialogue wholesale; audio paths are cleared since edited lines need
// re-synthesis.
func NewUpdateScriptHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, page, ok := scriptPath(w, r)
		if !ok {
			return
		}

		var req struct {
			Dialogues []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
				Emotion string `json:"emotion"`
				Speed   string `json:"speed"`
			} `json:"dialogues"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if len(req.Dialogues) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"dialogues must not be empty", nil)
			return
		}

		script := &models.Script{
			ID:         uuid.New(),
			ProjectID:  id,
			PageNumber: page,
		}
		for i, d := range req.Dialogues {
			role := strings.TrimSpace(d.Role)
			content := strings.TrimSpace(d.Content)
			if role == "" || content == "" {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"every dialogue needs a role and content", nil)
				return
			}
			emotion := d.Emotion
			if !models.ValidEmotion(emotion) {
				emotion = models.EmotionAuto
			}
			speed := d.Speed
			if !models.ValidSpeed(speed) {
				speed = models.SpeedNormal
			}
			script.Dialogues = append(script.Dialogues, models.DialogueLine{
				ID:       uuid.New(),
				ScriptID: script.ID,
				Role:     role,
				Content:  content,
				Emotion:  emotion,
				Speed:    speed,
				Position: i,
			})
		}

		if err := st.UpsertScript(r.Context(), script); err != nil {
			notFoundOrInternal(w, "Project", err)
			return
		}

		stored, err := st.GetScript(r.Context(), id, page)
		if err != nil {
			notFoundOrInternal(w, "Script", err)
			return
		}
		response.JSON(w, stored)
	}
}

// NewDialogueAudioHandler returns an http.HandlerFunc for
// GET /api/v1/projects/{projectID}/scripts/{pageNumber}/audio/{lineID}.
func NewDialogueAudioHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, page, ok := scriptPath(w, r)
		if !ok {
			return
		}
		lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"lineID must be a valid UUID", nil)
			return
		}

		script, err := st.GetScript(r.Context(), id, page)
		if err != nil {
			notFoundOrInternal(w, "Script", err)
			return
		}
		for _, line := range script.Dialogues {
			if line.ID != lineID {
				continue
			}
			if line.AudioPath == nil {
				response.Error(w, http.StatusNotFound, "NO_AUDIO",
					"Audio has not been generated for this line", nil)
				return
			}
			http.ServeFile(w, r, *line.AudioPath)
			return
		}
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Dialogue line not found", nil)
	}
}

func scriptPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, int, bool) {
	id, ok := pathUUID(w, r, "projectID")
	if !ok {
		return uuid.Nil, 0, false
	}
	page, err := strconv.Atoi(chi.URLParam(r, "pageNumber"))
	if err != nil || page < 1 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"pageNumber must be a positive integer", nil)
		return uuid.Nil, 0, false
	}
	return id, page, true
}
