// Package ollama implements the script provider against a local Ollama
// server using a vision-capable model.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/weihanchu/slidecast/internal/ai/prompt"
	"github.com/weihanchu/slidecast/internal/config"
	"github.com/weihanchu/slidecast/pkg/models"
)

// Provider implements models.ScriptProvider using Ollama.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 300 * time.Second},
	}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) GenerateScript(ctx context.Context, req models.ScriptRequest) ([]models.DialogueLine, error) {
	return prompt.Retry(ctx, 3, 5*time.Second, func() ([]models.DialogueLine, error) {
		return p.generate(ctx, req)
	})
}

func (p *Provider) generate(ctx context.Context, req models.ScriptRequest) ([]models.DialogueLine, error) {
	body := chatRequest{
		Model:  p.cfg.Model,
		Stream: false,
		Format: "json",
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System(req.Roles)},
			{
				Role:    "user",
				Content: prompt.User(req),
				Images:  []string{base64.StdEncoding.EncodeToString(req.ImagePNG)},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", prompt.ErrInferenceTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", prompt.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", prompt.ErrProviderUnavailable, resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: %v", prompt.ErrInvalidResponse, err)
	}

	return prompt.ParseDialogues(chatResp.Message.Content, req.Roles)
}

// --- wire types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

var _ models.ScriptProvider = (*Provider)(nil)
