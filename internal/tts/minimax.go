package tts

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/weihanchu/slidecast/internal/config"
	"github.com/weihanchu/slidecast/pkg/models"
)

const (
	maxAttempts = 3
	baseDelay   = 5 * time.Second
	maxDelay    = 60 * time.Second
)

// MiniMaxClient implements Synthesizer using the MiniMax t2a_v2 HTTP API.
// The API returns the audio payload hex encoded inside a JSON envelope.
type MiniMaxClient struct {
	baseURL string
	apiKey  string
	groupID string
	model   string
	client  *http.Client
	logger  *slog.Logger

	// sleep is swappable so tests do not wait out real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMiniMaxClient creates a MiniMax speech client from config.
func NewMiniMaxClient(cfg config.TTSConfig, logger *slog.Logger) *MiniMaxClient {
	return &MiniMaxClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		groupID: cfg.GroupID,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		sleep:   sleepCtx,
	}
}

func (c *MiniMaxClient) Name() string { return "minimax" }

func (c *MiniMaxClient) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	payload := c.buildPayload(req)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		audio, retryable, err := c.request(ctx, payload)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		if !retryable || attempt == maxAttempts {
			break
		}

		c.logger.Warn("speech synthesis attempt failed",
			"attempt", attempt,
			"role", req.Role,
			"error", err)

		if err := c.sleep(ctx, backoffDelay(attempt)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSynthTimeout, err)
		}
	}

	return nil, lastErr
}

// request performs one synthesis attempt. The second return reports whether
// the failure is worth retrying: rate limits, server errors and malformed
// envelopes are; other client errors are not.
func (c *MiniMaxClient) request(ctx context.Context, payload speechPayload) ([]byte, bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("encoding speech request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/t2a_v2?GroupId=%s", c.baseURL, c.groupID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("building speech request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, false, fmt.Errorf("%w: %v", ErrSynthTimeout, err)
		}
		return nil, true, fmt.Errorf("%w: %v", ErrSynthUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("%w: rate limited", ErrSynthUnavailable)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d", ErrSynthUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrSynthUnavailable, resp.StatusCode, msg)
	}

	var envelope speechResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, true, fmt.Errorf("%w: decoding response: %v", ErrInvalidAudio, err)
	}
	if envelope.BaseResp.StatusCode != 0 {
		return nil, true, fmt.Errorf("%w: api error %d: %s",
			ErrInvalidAudio, envelope.BaseResp.StatusCode, envelope.BaseResp.StatusMsg)
	}
	if envelope.Data == nil || envelope.Data.Audio == "" {
		return nil, true, fmt.Errorf("%w: missing audio data", ErrInvalidAudio)
	}

	audio, err := hex.DecodeString(envelope.Data.Audio)
	if err != nil {
		return nil, true, fmt.Errorf("%w: decoding audio hex: %v", ErrInvalidAudio, err)
	}
	return audio, false, nil
}

func (c *MiniMaxClient) buildPayload(req SpeechRequest) speechPayload {
	voiceID := voiceFor(req.Role, req.Voices)

	p := speechPayload{
		Model: c.model,
		Text:  req.Text,
		TimbreWeights: []timbreWeight{
			{VoiceID: voiceID, Weight: 100},
		},
		VoiceSetting: voiceSetting{
			VoiceID:   voiceID,
			Speed:     speedFactor(req.Speed),
			Pitch:     0,
			Vol:       1,
			LatexRead: true,
		},
		AudioSetting: audioSetting{
			SampleRate: 32000,
			Bitrate:    128000,
			Format:     "mp3",
		},
		LanguageBoost: "auto",
	}
	if req.Emotion != "" && req.Emotion != models.EmotionAuto {
		p.VoiceSetting.Emotion = req.Emotion
	}
	return p
}

// backoffDelay grows exponentially with a small jitter to spread retries.
func backoffDelay(attempt int) time.Duration {
	delay := baseDelay * (1 << (attempt - 1))
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 10))
	return delay + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// --- MiniMax wire types ---

type speechPayload struct {
	Model         string         `json:"model"`
	Text          string         `json:"text"`
	TimbreWeights []timbreWeight `json:"timbre_weights"`
	VoiceSetting  voiceSetting   `json:"voice_setting"`
	AudioSetting  audioSetting   `json:"audio_setting"`
	LanguageBoost string         `json:"language_boost"`
}

type timbreWeight struct {
	VoiceID string `json:"voice_id"`
	Weight  int    `json:"weight"`
}

type voiceSetting struct {
	VoiceID   string  `json:"voice_id"`
	Speed     float64 `json:"speed"`
	Pitch     int     `json:"pitch"`
	Vol       float64 `json:"vol"`
	Emotion   string  `json:"emotion,omitempty"`
	LatexRead bool    `json:"latex_read"`
}

type audioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
}

type speechResponse struct {
	Data     *speechData `json:"data"`
	BaseResp baseResp    `json:"base_resp"`
}

type speechData struct {
	Audio string `json:"audio"`
}

type baseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

// Compile-time check that MiniMaxClient implements Synthesizer.
var _ Synthesizer = (*MiniMaxClient)(nil)
