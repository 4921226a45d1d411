package tts

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weihanchu/slidecast/internal/config"
	"github.com/weihanchu/slidecast/pkg/models"
)

func newTestClient(t *testing.T, baseURL string) *MiniMaxClient {
	t.Helper()
	c := NewMiniMaxClient(config.TTSConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		GroupID: "group-1",
		Model:   "speech-2.6-hd",
		Timeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func okResponse(audio []byte) speechResponse {
	return speechResponse{
		Data:     &speechData{Audio: hex.EncodeToString(audio)},
		BaseResp: baseResp{StatusCode: 0},
	}
}

func TestMiniMaxSynthesize(t *testing.T) {
	want := []byte("mp3-bytes")

	var got speechPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "group-1", r.URL.Query().Get("GroupId"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(okResponse(want))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	audio, err := client.Synthesize(context.Background(), SpeechRequest{
		Text:    "Hello there.",
		Role:    "teacher",
		Emotion: "happy",
		Speed:   models.SpeedFast,
		Voices:  map[string]string{"teacher": "voice-teacher"},
	})

	require.NoError(t, err)
	assert.Equal(t, want, audio)
	assert.Equal(t, "Hello there.", got.Text)
	assert.Equal(t, "voice-teacher", got.VoiceSetting.VoiceID)
	assert.Equal(t, "voice-teacher", got.TimbreWeights[0].VoiceID)
	assert.Equal(t, 1.25, got.VoiceSetting.Speed)
	assert.Equal(t, "happy", got.VoiceSetting.Emotion)
}

func TestMiniMaxSynthesize_AutoEmotionOmitted(t *testing.T) {
	var got speechPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(okResponse([]byte("a")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Synthesize(context.Background(), SpeechRequest{
		Text:    "text",
		Role:    "narrator",
		Emotion: models.EmotionAuto,
		Speed:   models.SpeedNormal,
		Voices:  map[string]string{models.RoleNarrator: "voice-n"},
	})

	require.NoError(t, err)
	assert.Empty(t, got.VoiceSetting.Emotion)
	assert.Equal(t, 1.0, got.VoiceSetting.Speed)
}

func TestMiniMaxSynthesize_NarratorFallbackVoice(t *testing.T) {
	var got speechPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(okResponse([]byte("a")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Synthesize(context.Background(), SpeechRequest{
		Text:   "text",
		Role:   "unknown-role",
		Voices: map[string]string{models.RoleNarrator: "voice-n"},
	})

	require.NoError(t, err)
	assert.Equal(t, "voice-n", got.VoiceSetting.VoiceID)
}

func TestMiniMaxSynthesize_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(okResponse([]byte("ok")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	audio, err := client.Synthesize(context.Background(), SpeechRequest{Text: "t", Role: "narrator"})

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), audio)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMiniMaxSynthesize_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Synthesize(context.Background(), SpeechRequest{Text: "t", Role: "narrator"})

	require.ErrorIs(t, err, ErrSynthUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMiniMaxSynthesize_APIErrorEnvelopeRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(speechResponse{
			BaseResp: baseResp{StatusCode: 1002, StatusMsg: "rate limit"},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Synthesize(context.Background(), SpeechRequest{Text: "t", Role: "narrator"})

	require.ErrorIs(t, err, ErrInvalidAudio)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMiniMaxSynthesize_BadHexAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(speechResponse{
			Data:     &speechData{Audio: "not-hex!"},
			BaseResp: baseResp{StatusCode: 0},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Synthesize(context.Background(), SpeechRequest{Text: "t", Role: "narrator"})

	require.ErrorIs(t, err, ErrInvalidAudio)
}
