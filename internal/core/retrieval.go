package core

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/localdocs/pdfchat/internal/chunks"
)

// DefaultTopK is the number of chunks a similarity search returns.
const DefaultTopK = 8

// ChunkSource is the retrieval surface of the chunk store.
type ChunkSource interface {
	GetBySource(ctx context.Context, source string) ([]chunks.Chunk, error)
	GetByDocumentID(ctx context.Context, documentID string) ([]chunks.Chunk, error)
	Search(ctx context.Context, query string, topK int, scope chunks.Scope) ([]chunks.Chunk, error)
}

// Resolver decides, per chat turn, whether to fetch all chunks of a
// specifically identified document or fall back to similarity search.
type Resolver struct {
	source ChunkSource
	topK   int
}

func NewResolver(source ChunkSource, topK int) *Resolver {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Resolver{source: source, topK: topK}
}

// Resolve produces the context chunks for one turn.
//
// A source name takes precedence over a document id because per-page
// document ids are not reliable in historical data. Exact-match hits
// short-circuit; anything else (no identifier, no match, store error)
// falls back to a similarity search restricted to whatever scope was
// supplied. The result may be empty; an empty context is valid input
// to the prompt composer.
func (r *Resolver) Resolve(ctx context.Context, query string, scope chunks.Scope) []chunks.Chunk {
	if scope.Source != "" {
		found, err := r.source.GetBySource(ctx, scope.Source)
		if err != nil {
			log.Warn().Err(err).Str("source", scope.Source).
				Msg("exact-match retrieval by source failed, falling back to similarity search")
		} else if len(found) > 0 {
			return found
		}
	} else if scope.DocumentID != "" {
		found, err := r.source.GetByDocumentID(ctx, scope.DocumentID)
		if err != nil {
			log.Warn().Err(err).Str("document_id", scope.DocumentID).
				Msg("exact-match retrieval by document id failed, falling back to similarity search")
		} else if len(found) > 0 {
			if len(found) == 1 {
				// Known upstream inconsistency: some documents were
				// ingested with a fresh id per page, so an id lookup
				// only ever finds one page. Flagged, not repaired.
				log.Warn().Str("document_id", scope.DocumentID).
					Msg("document id matched a single chunk; per-page ids may be inconsistent")
			}
			return found
		}
	}

	found, err := r.source.Search(ctx, query, r.topK, scope)
	if err != nil {
		// Retrieval degrades gracefully: the turn proceeds with an
		// empty context instead of failing.
		log.Warn().Err(err).Msg("similarity search failed, proceeding without context")
		return nil
	}
	return found
}
