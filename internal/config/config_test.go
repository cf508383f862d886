package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "data/sqlite/app.db", cfg.SQLitePath)
	assert.Equal(t, "data/docs", cfg.DocsDir)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.OllamaHost)
	assert.Equal(t, "qwen2.5:0.5b", cfg.ChatModel)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
	assert.Equal(t, 8, cfg.RetrievalTopK)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, 5*time.Second, cfg.StreamJoinTimeout)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("OLLAMA_HOST", "http://ollama.local:11434")
	t.Setenv("OLLAMA_MODEL", "llama3.2:3b")
	t.Setenv("RETRIEVAL_TOP_K", "4")
	t.Setenv("STREAM_JOIN_TIMEOUT", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "http://ollama.local:11434", cfg.OllamaHost)
	assert.Equal(t, "llama3.2:3b", cfg.ChatModel)
	assert.Equal(t, 4, cfg.RetrievalTopK)
	assert.Equal(t, 250*time.Millisecond, cfg.StreamJoinTimeout)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "not-a-number")

	_, err := Load()

	require.Error(t, err)
}
