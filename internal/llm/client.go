// Package llm wraps the local Ollama server behind its
// OpenAI-compatible endpoint: streaming chat completions for answer
// generation and the embeddings endpoint for retrieval.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one entry of the chat prompt sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client struct {
	api        *openai.Client
	host       string
	chatModel  string
	embedModel string
	httpClient *http.Client // native Ollama API, used by Ping only
}

func NewClient(host, chatModel, embedModel string) *Client {
	host = strings.TrimRight(host, "/")

	cfg := openai.DefaultConfig("ollama") // Ollama ignores the API key
	cfg.BaseURL = host + "/v1"

	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		host:       host,
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// TokenStream yields incremental response fragments. Recv blocks until
// the next fragment is available and returns io.EOF once the model is
// done.
type TokenStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next text fragment. Fragments can be empty (role
// deltas, keep-alives); those are skipped here so callers only see
// text.
func (t *TokenStream) Recv() (string, error) {
	for {
		resp, err := t.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if token := resp.Choices[0].Delta.Content; token != "" {
			return token, nil
		}
	}
}

func (t *TokenStream) Close() error {
	return t.stream.Close()
}

// Stream starts a streaming chat completion. The returned stream's
// Recv call is blocking; run it off the request path.
func (c *Client) Stream(ctx context.Context, messages []Message) (*TokenStream, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: chatMessages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat stream request failed: %w", err)
	}
	return &TokenStream{stream: stream}, nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data received from ollama")
	}
	return resp.Data[0].Embedding, nil
}

// PingResult reports Ollama availability and embedding readiness.
type PingResult struct {
	OK             bool     `json:"ok"`
	Models         []string `json:"models"`
	EmbeddingModel string   `json:"embedding_model"`
	Host           string   `json:"host"`
}

// Ping lists the installed models via the native Ollama API and issues
// a lightweight embedding call to confirm the embedding model is
// loaded.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tags request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode ollama tags: %w", err)
	}

	if _, err := c.Embed(ctx, "ping"); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	return &PingResult{
		OK:             true,
		Models:         models,
		EmbeddingModel: c.embedModel,
		Host:           c.host,
	}, nil
}
