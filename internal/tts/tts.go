package tts

import (
	"context"
	"errors"

	"github.com/weihanchu/slidecast/pkg/models"
)

// Sentinel errors for speech synthesis failures.
var (
	ErrSynthUnavailable = errors.New("speech service unavailable")
	ErrSynthTimeout     = errors.New("speech synthesis timeout")
	ErrInvalidAudio     = errors.New("invalid audio response")
)

// SpeechRequest describes one dialogue line to synthesize. Voices holds the
// role to voice-id mapping from the current voice group.
type SpeechRequest struct {
	Text    string
	Role    string
	Emotion string
	Speed   string
	Voices  map[string]string
}

// Synthesizer converts a dialogue line into encoded audio bytes.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// speedFactor maps the script speed labels to synthesizer playback rates.
func speedFactor(speed string) float64 {
	switch speed {
	case models.SpeedSlow:
		return 0.8
	case models.SpeedFast:
		return 1.25
	default:
		return 1.0
	}
}

// voiceFor resolves the voice id for a role, falling back to the narrator
// voice and then to a default Mandarin voice when the group has no mapping.
func voiceFor(role string, voices map[string]string) string {
	if id, ok := voices[role]; ok {
		return id
	}
	if id, ok := voices[models.RoleNarrator]; ok {
		return id
	}
	return "Chinese (Mandarin)_Radio_Host"
}
