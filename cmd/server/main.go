package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/localdocs/pdfchat/internal/api"
	"github.com/localdocs/pdfchat/internal/chunks"
	"github.com/localdocs/pdfchat/internal/config"
	"github.com/localdocs/pdfchat/internal/core"
	"github.com/localdocs/pdfchat/internal/ingest"
	"github.com/localdocs/pdfchat/internal/llm"
	"github.com/localdocs/pdfchat/internal/store"
)

// generator adapts the concrete LLM client to the interface the turn
// coordinator streams from.
type generator struct {
	client *llm.Client
}

func (g generator) Stream(ctx context.Context, messages []llm.Message) (core.TokenStream, error) {
	return g.client.Stream(ctx, messages)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	db, err := store.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	dbStore, err := store.NewSQLiteStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}

	llmClient := llm.NewClient(cfg.OllamaHost, cfg.ChatModel, cfg.EmbeddingModel)

	chunkStore, err := chunks.NewSQLiteStore(db, llmClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chunk store")
	}

	resolver := core.NewResolver(chunkStore, cfg.RetrievalTopK)
	chatService := core.NewChatService(dbStore, resolver, generator{client: llmClient}, cfg.HistoryLimit, cfg.StreamJoinTimeout)
	ingestor := ingest.NewIngestor(chunkStore)

	apiHandler := api.NewAPIHandler(chatService, dbStore, chunkStore, ingestor, llmClient, cfg)
	router := api.NewRouter(apiHandler)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: chat responses stream for as long as the
		// model keeps producing tokens.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	// Give active connections (including in-flight streams) time to
	// finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited gracefully")
}
