package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all process-wide settings. It is loaded once at startup
// and passed into the components that need it; nothing mutates it
// afterwards.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/sqlite/app.db"`
	DocsDir    string `env:"DOCS_DIR" envDefault:"data/docs"`

	OllamaHost string `env:"OLLAMA_HOST" envDefault:"http://127.0.0.1:11434"`
	// Default to a small model to avoid memory issues; override via env.
	ChatModel      string `env:"OLLAMA_MODEL" envDefault:"qwen2.5:0.5b"`
	EmbeddingModel string `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`

	RetrievalTopK     int           `env:"RETRIEVAL_TOP_K" envDefault:"8"`
	HistoryLimit      int           `env:"HISTORY_LIMIT" envDefault:"10"`
	StreamJoinTimeout time.Duration `env:"STREAM_JOIN_TIMEOUT" envDefault:"5s"`
}

// Load reads configuration from the environment, honoring a local .env
// file when present.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional; real env vars take precedence

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
