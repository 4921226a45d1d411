// Package prompt holds the provider-independent half of script generation:
// prompt construction, response parsing, and the retry loop. It sits below
// the concrete providers so they share one contract.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/pkg/models"
)

// System builds the generation instructions for a provider given the set of
// allowed speaker roles.
func System(roles []string) string {
	return fmt.Sprintf(`You are a narration writer. Convert the provided slide image into a lively spoken-dialogue script.

Rules:
1. Every line's "role" must be one of: %s. Keep the role aligned with what the line says.
2. Keep lines short and natural to speak aloud.
3. Convert every formula or mathematical symbol on the slide to LaTeX wrapped in $$, e.g. $$E = m \times c^2$$.
4. Set a fitting "emotion" (auto, happy, sad, angry, fearful, disgusted, surprised, neutral) and "speed" (slow, normal, fast) per line; use "auto" and "normal" when nothing stands out.

Respond with a single JSON object: {"dialogues": [{"role": ..., "content": ..., "emotion": ..., "speed": ...}, ...]}.`,
		strings.Join(roles, ", "))
}

// User builds the per-page request text, folding in the accumulated script
// of earlier pages so narration flows across slides.
func User(req models.ScriptRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the dialogue script for slide %d of %d.", req.PageNumber, req.TotalPages)
	if req.Context != "" {
		b.WriteString("\n\nScript so far (earlier slides):\n")
		b.WriteString(req.Context)
	}
	return b.String()
}

type dialoguePayload struct {
	Dialogues []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Emotion string `json:"emotion"`
		Speed   string `json:"speed"`
	} `json:"dialogues"`
}

// ParseDialogues decodes a provider's JSON content into dialogue lines,
// validating roles against the allowed set. Out-of-range emotion or speed
// values degrade to their defaults rather than failing the page.
func ParseDialogues(content string, roles []string) ([]models.DialogueLine, error) {
	// Some models wrap JSON in markdown fences despite instructions.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var payload dialoguePayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(payload.Dialogues) == 0 {
		return nil, fmt.Errorf("%w: empty dialogue list", ErrInvalidResponse)
	}

	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	lines := make([]models.DialogueLine, 0, len(payload.Dialogues))
	for i, d := range payload.Dialogues {
		if !allowed[d.Role] {
			return nil, fmt.Errorf("%w: line %d has unknown role %q", ErrInvalidResponse, i, d.Role)
		}
		if strings.TrimSpace(d.Content) == "" {
			return nil, fmt.Errorf("%w: line %d has empty content", ErrInvalidResponse, i)
		}

		emotion := d.Emotion
		if !models.ValidEmotion(emotion) {
			emotion = models.EmotionAuto
		}
		speed := d.Speed
		if !models.ValidSpeed(speed) {
			speed = models.SpeedNormal
		}

		lines = append(lines, models.DialogueLine{
			ID:       uuid.New(),
			Role:     d.Role,
			Content:  d.Content,
			Emotion:  emotion,
			Speed:    speed,
			Position: i,
		})
	}
	return lines, nil
}
