package tts

import (
	"fmt"
	"log/slog"

	"github.com/weihanchu/slidecast/internal/config"
)

// NewSynthesizer constructs the appropriate speech synthesizer based on
// config. Called once at server startup.
func NewSynthesizer(cfg config.TTSConfig, logger *slog.Logger) (Synthesizer, error) {
	switch cfg.Provider {
	case "minimax":
		return NewMiniMaxClient(cfg, logger), nil
	case "mock":
		return NewMockSynthesizer(), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: must be one of minimax, mock", cfg.Provider)
	}
}
