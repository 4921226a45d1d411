package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Slidecast server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	AI       AIConfig
	TTS      TTSConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// StorageConfig locates on-disk artifacts (uploaded PDFs, page images,
// synthesized audio). SplitDPI is passed to the PDF rasterizer.
type StorageConfig struct {
	DataDir  string
	SplitDPI int
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
	Ollama           OllamaConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type TTSConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	GroupID  string
	Model    string
	Timeout  time.Duration
}

var validAIProviders = map[string]bool{
	"openai": true,
	"ollama": true,
	"mock":   true,
}

var validTTSProviders = map[string]bool{
	"minimax": true,
	"mock":    true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SLIDECAST_PORT", 8080),
			Env:  envString("SLIDECAST_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			DataDir:  envString("SLIDECAST_DATA_DIR", "./data"),
			SplitDPI: envInt("SLIDECAST_SPLIT_DPI", 72),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "openai"),
			InferenceTimeout: envDuration("AI_INFERENCE_TIMEOUT", 120*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: envString("OPENAI_BASE_URL", "https://openrouter.ai/api/v1"),
				Model:   envString("OPENAI_MODEL", "qwen/qwen3-vl-235b-a22b-instruct"),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3.2-vision"),
			},
		},
		TTS: TTSConfig{
			Provider: envString("TTS_PROVIDER", "minimax"),
			BaseURL:  envString("MINIMAX_BASE_URL", "https://api.minimax.chat"),
			APIKey:   os.Getenv("MINIMAX_API_KEY"),
			GroupID:  os.Getenv("MINIMAX_GROUP_ID"),
			Model:    envString("MINIMAX_MODEL", "speech-2.6-hd"),
			Timeout:  envDuration("TTS_TIMEOUT", 60*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("SLIDECAST_DATA_DIR must not be empty")
	}
	if c.Storage.SplitDPI < 36 || c.Storage.SplitDPI > 600 {
		return fmt.Errorf("SLIDECAST_SPLIT_DPI must be between 36 and 600, got %d", c.Storage.SplitDPI)
	}

	if !validAIProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, ollama, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}

	if !validTTSProviders[c.TTS.Provider] {
		return fmt.Errorf("TTS_PROVIDER must be one of minimax, mock; got %q", c.TTS.Provider)
	}
	if c.TTS.Provider == "minimax" {
		if c.TTS.APIKey == "" {
			return fmt.Errorf("MINIMAX_API_KEY is required when TTS_PROVIDER is minimax")
		}
		if c.TTS.GroupID == "" {
			return fmt.Errorf("MINIMAX_GROUP_ID is required when TTS_PROVIDER is minimax")
		}
		if !strings.HasPrefix(c.TTS.BaseURL, "http://") && !strings.HasPrefix(c.TTS.BaseURL, "https://") {
			return fmt.Errorf("MINIMAX_BASE_URL must start with http:// or https://, got %q", c.TTS.BaseURL)
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
