package models

import (
	"time"

	"github.com/google/uuid"
)

// Dialogue emotions understood by the speech synthesizer. "auto" lets the
// synthesizer infer emotion from the text.
const (
	EmotionAuto      = "auto"
	EmotionHappy     = "happy"
	EmotionSad       = "sad"
	EmotionAngry     = "angry"
	EmotionFearful   = "fearful"
	EmotionDisgusted = "disgusted"
	EmotionSurprised = "surprised"
	EmotionNeutral   = "neutral"
)

const (
	SpeedSlow   = "slow"
	SpeedNormal = "normal"
	SpeedFast   = "fast"
)

// Script holds the generated dialogue for one slide page.
type Script struct {
	ID         uuid.UUID      `db:"id"          json:"id"`
	ProjectID  uuid.UUID      `db:"project_id"  json:"project_id"`
	PageNumber int            `db:"page_number" json:"page_number"`
	Dialogues  []DialogueLine `db:"-"           json:"dialogues"`
	CreatedAt  time.Time      `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"  json:"updated_at"`
}

// DialogueLine is one spoken line within a page script. Position orders lines
// within the page; AudioPath is set once audio synthesis has run for the line.
type DialogueLine struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	ScriptID  uuid.UUID `db:"script_id"  json:"script_id"`
	Role      string    `db:"role"       json:"role"`
	Content   string    `db:"content"    json:"content"`
	Emotion   string    `db:"emotion"    json:"emotion"`
	Speed     string    `db:"speed"      json:"speed"`
	Position  int       `db:"position"   json:"position"`
	AudioPath *string   `db:"audio_path" json:"audio_path,omitempty"`
}

// ValidEmotion reports whether e is a known emotion value.
func ValidEmotion(e string) bool {
	switch e {
	case EmotionAuto, EmotionHappy, EmotionSad, EmotionAngry,
		EmotionFearful, EmotionDisgusted, EmotionSurprised, EmotionNeutral:
		return true
	}
	return false
}

// ValidSpeed reports whether s is a known speech speed.
func ValidSpeed(s string) bool {
	switch s {
	case SpeedSlow, SpeedNormal, SpeedFast:
		return true
	}
	return false
}
