package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/localdocs/pdfchat/internal/chunks"
	"github.com/localdocs/pdfchat/internal/llm"
	"github.com/localdocs/pdfchat/internal/store"
)

// ErrEmptyMessage is returned for turn requests without a message.
var ErrEmptyMessage = errors.New("message is required")

// titleMaxLen bounds a derived conversation title; longer messages are
// truncated with an ellipsis marker.
const titleMaxLen = 60

// ConversationStore is the persistence surface a turn needs.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, conversationID string) error
	UpdateTitleIfDefault(ctx context.Context, conversationID, title string) error
	InsertMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]store.Message, error)
}

// TurnRequest is one user message plus optional conversation identity
// and retrieval scope. If both scope fields are set, SourceName wins.
type TurnRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	SourceName     string `json:"source_name,omitempty"`
	SourceID       string `json:"source_id,omitempty"`
}

// TurnResult reports the completed turn.
type TurnResult struct {
	ConversationID string
	AssistantText  string
}

// ChatService orchestrates chat turns end-to-end: persist the user
// message, resolve retrieval, compose the prompt, stream the answer,
// persist the assistant message.
type ChatService struct {
	store        ConversationStore
	resolver     *Resolver
	generator    Generator
	historyLimit int
	joinTimeout  time.Duration
}

func NewChatService(cs ConversationStore, resolver *Resolver, gen Generator, historyLimit int, joinTimeout time.Duration) *ChatService {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &ChatService{
		store:        cs,
		resolver:     resolver,
		generator:    gen,
		historyLimit: historyLimit,
		joinTimeout:  joinTimeout,
	}
}

// StreamTurn runs one chat turn, invoking emit for every token in
// production order. The caller emits its own terminal event after a
// nil-error return.
//
// Errors are only returned for invalid input or persistence failures;
// generation failures are logged and whatever partial text was
// produced is persisted anyway, so the stream can still end cleanly.
// emit errors (a vanished client) do not interrupt generation either:
// the answer is completed and persisted regardless.
func (s *ChatService) StreamTurn(ctx context.Context, req TurnRequest, emit func(token string) error) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	// The turn must outlive a client disconnect: generation and the
	// final persistence keep the request-scoped values but not its
	// cancellation.
	turnCtx := context.WithoutCancel(ctx)

	if err := s.store.EnsureConversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("failed to ensure conversation: %w", err)
	}
	userMsg := store.Message{
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Content:        req.Message,
	}
	if err := s.store.InsertMessage(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}
	if err := s.store.UpdateTitleIfDefault(ctx, conversationID, DeriveTitle(req.Message)); err != nil {
		// Not worth failing the turn over; the title stays default.
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to set conversation title")
	}

	contextChunks := s.resolver.Resolve(ctx, req.Message, chunks.Scope{
		Source:     req.SourceName,
		DocumentID: req.SourceID,
	})
	prompt := ComposePrompt(req.Message, contextChunks)

	messages, err := s.assemblePrompt(ctx, conversationID, req.Message, prompt)
	if err != nil {
		return nil, err
	}

	assistantText, genErr := runStream(turnCtx, s.generator, messages, s.joinTimeout, emit)
	if genErr != nil {
		log.Error().Err(genErr).Str("conversation_id", conversationID).
			Int("accumulated_chars", len(assistantText)).
			Msg("generation failed, persisting partial answer")
	}

	assistantMsg := store.Message{
		ConversationID: conversationID,
		Role:           store.RoleAssistant,
		Content:        assistantText,
	}
	// turnCtx, not ctx: a disconnect that cancels the request mid-stream
	// must not discard the accumulated answer.
	if err := s.store.InsertMessage(turnCtx, &assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	return &TurnResult{
		ConversationID: conversationID,
		AssistantText:  assistantText,
	}, nil
}

// assemblePrompt builds the full message list: fixed system
// instruction, the most recent prior messages, then the composed
// context prompt as the final user turn.
func (s *ChatService) assemblePrompt(ctx context.Context, conversationID, userMessage, contextPrompt string) ([]llm.Message, error) {
	rows, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	var history []llm.Message
	for _, row := range rows {
		// The user message being answered was already persisted above;
		// it re-enters the prompt as the final context-bearing turn.
		if row.Role == store.RoleUser && row.Content == userMessage {
			continue
		}
		history = append(history, llm.Message{Role: row.Role, Content: row.Content})
	}
	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: store.RoleSystem, Content: systemInstruction})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: store.RoleUser, Content: contextPrompt})
	return messages, nil
}

// DeriveTitle produces a conversation title from the first user
// message: trimmed, newlines collapsed, truncated to 59 characters
// plus an ellipsis when longer than 60.
func DeriveTitle(message string) string {
	text := strings.TrimSpace(message)
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) > titleMaxLen {
		return strings.TrimRight(string(runes[:titleMaxLen-1]), " ") + "…"
	}
	if text == "" {
		return store.DefaultTitle
	}
	return text
}
