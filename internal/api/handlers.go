package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/localdocs/pdfchat/internal/config"
	"github.com/localdocs/pdfchat/internal/core"
	"github.com/localdocs/pdfchat/internal/llm"
	"github.com/localdocs/pdfchat/internal/store"
)

const maxUploadBytes = 64 << 20 // 64 MiB

// TurnStreamer runs one chat turn, calling emit per token.
type TurnStreamer interface {
	StreamTurn(ctx context.Context, req core.TurnRequest, emit func(token string) error) (*core.TurnResult, error)
}

// ChunkRemover removes a document's chunks from the chunk store.
type ChunkRemover interface {
	Remove(ctx context.Context, documentID, source string) error
}

// Pinger checks generation-backend availability.
type Pinger interface {
	Ping(ctx context.Context) (*llm.PingResult, error)
}

// DocumentIngestor ingests a stored PDF file into the chunk store.
type DocumentIngestor interface {
	IngestPDF(ctx context.Context, path, name, documentID string) (int, error)
}

type APIHandler struct {
	turns    TurnStreamer
	store    *store.SQLiteStore
	chunks   ChunkRemover
	ingestor DocumentIngestor
	pinger   Pinger
	cfg      config.Config
}

func NewAPIHandler(turns TurnStreamer, st *store.SQLiteStore, chunks ChunkRemover, ingestor DocumentIngestor, pinger Pinger, cfg config.Config) *APIHandler {
	return &APIHandler{
		turns:    turns,
		store:    st,
		chunks:   chunks,
		ingestor: ingestor,
		pinger:   pinger,
		cfg:      cfg,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// ChatStreamHandler answers one chat turn over SSE: zero or more
// {"token": ...} events in production order, then exactly one
// {"status": "done"} event.
func (h *APIHandler) ChatStreamHandler(w http.ResponseWriter, r *http.Request) {
	var req core.TurnRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	streamed := false
	result, err := h.turns.StreamTurn(r.Context(), req, func(token string) error {
		streamed = true
		return writeSSE(w, flusher, tokenEvent{Token: token})
	})
	if err != nil {
		if errors.Is(err, core.ErrEmptyMessage) {
			// Validated above; kept for direct callers of the service.
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("chat turn failed")
		if !streamed {
			_ = writeSSE(w, flusher, statusEvent{Status: "error", Message: "failed to process chat turn"})
		}
		// A turn without a persisted assistant message is not complete;
		// ending without the done event tells the client so.
		return
	}

	_ = writeSSE(w, flusher, statusEvent{Status: "done"})
	log.Debug().Str("conversation_id", result.ConversationID).
		Int("chars", len(result.AssistantText)).Msg("chat stream completed")
}

// HealthHandler reports basic health and the config surface.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":          "ok",
		"sqlite_path":     h.cfg.SQLitePath,
		"docs_dir":        h.cfg.DocsDir,
		"ollama_host":     h.cfg.OllamaHost,
		"ollama_model":    h.cfg.ChatModel,
		"embedding_model": h.cfg.EmbeddingModel,
	})
}

// OllamaHealthHandler streams generation-backend readiness over SSE so
// the frontend can show progress while the embedding model loads.
func (h *APIHandler) OllamaHealthHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	_ = writeSSE(w, flusher, statusEvent{Status: "initializing"})

	if result, err := h.pinger.Ping(r.Context()); err != nil {
		_ = writeSSE(w, flusher, statusEvent{Status: "error", Message: err.Error()})
	} else {
		_ = writeSSE(w, flusher, struct {
			Status string `json:"status"`
			*llm.PingResult
		}{Status: "ok", PingResult: result})
	}

	_ = writeSSE(w, flusher, statusEvent{Status: "done"})
}

type uploadDocumentResponse struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Chunks     int    `json:"chunks"`
}

// UploadDocumentHandler accepts a multipart PDF upload, saves it under
// the docs directory, ingests it into the chunk store, and records the
// document.
func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		respondError(w, http.StatusBadRequest, "Only PDF uploads are supported")
		return
	}

	if err := os.MkdirAll(h.cfg.DocsDir, 0o755); err != nil {
		log.Error().Err(err).Msg("failed to create docs directory")
		respondError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	destPath := filepath.Join(h.cfg.DocsDir, name)
	dest, err := os.Create(destPath)
	if err != nil {
		log.Error().Err(err).Str("path", destPath).Msg("failed to create document file")
		respondError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	written, err := io.Copy(dest, file)
	dest.Close()
	if err != nil {
		log.Error().Err(err).Str("path", destPath).Msg("failed to write document file")
		_ = os.Remove(destPath)
		respondError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}
	if written == 0 {
		_ = os.Remove(destPath)
		respondError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	documentID := uuid.NewString()
	chunkCount, err := h.ingestor.IngestPDF(r.Context(), destPath, name, documentID)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("ingestion failed")
		respondError(w, http.StatusInternalServerError, "Ingestion failed: "+err.Error())
		return
	}

	doc := store.Document{ID: documentID, Name: name, Path: destPath}
	if err := h.store.InsertDocument(r.Context(), &doc); err != nil {
		log.Error().Err(err).Str("name", name).Msg("failed to record document")
		respondError(w, http.StatusInternalServerError, "Failed to record document")
		return
	}

	respondJSON(w, http.StatusCreated, uploadDocumentResponse{
		DocumentID: documentID,
		Name:       name,
		Path:       destPath,
		Chunks:     chunkCount,
	})
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListDocuments(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list documents")
		respondError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	respondJSON(w, http.StatusOK, docs)
}

// DeleteDocumentHandler removes the document record and its chunks.
func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	doc, err := h.store.GetDocument(r.Context(), documentID)
	if err != nil {
		log.Error().Err(err).Str("document_id", documentID).Msg("failed to load document")
		respondError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}
	if doc == nil {
		respondError(w, http.StatusNotFound, "Document not found")
		return
	}

	if _, err := h.store.DeleteDocument(r.Context(), documentID); err != nil {
		log.Error().Err(err).Str("document_id", documentID).Msg("failed to delete document")
		respondError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}
	if err := h.chunks.Remove(r.Context(), documentID, doc.Name); err != nil {
		// The record is gone; orphaned chunks only affect retrieval.
		log.Warn().Err(err).Str("document_id", documentID).Msg("failed to remove document chunks")
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":      "deleted",
		"document_id": documentID,
	})
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.store.ListConversations(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list conversations")
		respondError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []store.Conversation{}
	}
	respondJSON(w, http.StatusOK, conversations)
}

func (h *APIHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	conversation, err := h.store.GetConversation(r.Context(), conversationID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load conversation")
		respondError(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}
	if conversation == nil {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, conversation)
}

type renameConversationRequest struct {
	Title string `json:"title"`
}

func (h *APIHandler) RenameConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var req renameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	updated, err := h.store.RenameConversation(r.Context(), conversationID, req.Title)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to rename conversation")
		respondError(w, http.StatusInternalServerError, "Failed to rename conversation")
		return
	}
	if !updated {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":          "updated",
		"conversation_id": conversationID,
		"title":           req.Title,
	})
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	deleted, err := h.store.DeleteConversation(r.Context(), conversationID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to delete conversation")
		respondError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":          "deleted",
		"conversation_id": conversationID,
	})
}

func (h *APIHandler) ListConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	messages, err := h.store.ListMessages(r.Context(), conversationID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to list messages")
		respondError(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	respondJSON(w, http.StatusOK, messages)
}
