package ai

import (
	"fmt"

	"github.com/weihanchu/slidecast/internal/ai/mock"
	"github.com/weihanchu/slidecast/internal/ai/ollama"
	"github.com/weihanchu/slidecast/internal/ai/openai"
	"github.com/weihanchu/slidecast/internal/config"
	"github.com/weihanchu/slidecast/pkg/models"
)

// NewProvider constructs the appropriate script provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.ScriptProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of openai, ollama, mock", cfg.Provider)
	}
}
