// Package openai implements the script provider against any
// OpenAI-compatible chat completions endpoint (OpenAI, OpenRouter, vLLM).
package openai

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

// Provider implements models.ScriptProvider using an OpenAI-compatible API.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) GenerateScript(ctx context.Context, req models.ScriptRequest) ([]models.DialogueLine, error) {
	return prompt.Retry(ctx, 3, 5*time.Second, func() ([]models.DialogueLine, error) {
		return p.generate(ctx, req)
	})
}

func (p *Provider) generate(ctx context.Context, req models.ScriptRequest) ([]models.DialogueLine, error) {
	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ImagePNG)

	body := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: prompt.System(req.Roles)}}},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: prompt.User(req)},
				{Type: "image_url", ImageURL: &imageRef{URL: imageURL}},
			}},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
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
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", prompt.ErrInvalidResponse)
	}

	return prompt.ParseDialogues(chatResp.Choices[0].Message.Content, req.Roles)
}

// --- wire types ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var _ models.ScriptProvider = (*Provider)(nil)
