package chunks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// Embedder turns text into an embedding vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SQLiteStore keeps chunks in a SQLite table with their embeddings
// stored as a JSON array column.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
}

func NewSQLiteStore(db *sql.DB, embedder Embedder) (*SQLiteStore, error) {
	store := &SQLiteStore{db: db, embedder: embedder}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize chunk schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS chunks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        document_id TEXT NOT NULL,
        source TEXT NOT NULL,
        page INTEGER NOT NULL,
        path TEXT,
        text TEXT NOT NULL,
        embedding_json TEXT -- JSON-encoded []float32
    );
    CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks (source);
    CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks (document_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Insert embeds and stores the given chunks.
func (s *SQLiteStore) Insert(ctx context.Context, cs []Chunk) error {
	stmt, err := s.db.PrepareContext(ctx,
		"INSERT INTO chunks (document_id, source, page, path, text, embedding_json) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cs {
		embedding, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("failed to embed chunk (%s p%d): %w", c.Meta.Source, c.Meta.Page, err)
		}
		embeddingJSON, err := json.Marshal(embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			c.Meta.DocumentID, c.Meta.Source, c.Meta.Page, c.Meta.Path, c.Text, string(embeddingJSON)); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}

// GetBySource returns every chunk whose source name matches exactly,
// in page order.
func (s *SQLiteStore) GetBySource(ctx context.Context, source string) ([]Chunk, error) {
	return s.getByAttribute(ctx, "source", source)
}

// GetByDocumentID returns every chunk with a matching document id, in
// page order. Historically unreliable; see Metadata.
func (s *SQLiteStore) GetByDocumentID(ctx context.Context, documentID string) ([]Chunk, error) {
	return s.getByAttribute(ctx, "document_id", documentID)
}

func (s *SQLiteStore) getByAttribute(ctx context.Context, column, value string) ([]Chunk, error) {
	query := fmt.Sprintf(
		"SELECT document_id, source, page, path, text FROM chunks WHERE %s = ? ORDER BY source ASC, page ASC, id ASC",
		column)
	rows, err := s.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks by %s: %w", column, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var path sql.NullString
		if err := rows.Scan(&c.Meta.DocumentID, &c.Meta.Source, &c.Meta.Page, &path, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		c.Meta.Path = path.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

type scoredChunk struct {
	chunk      Chunk
	similarity float32
}

// Search embeds the query and returns the topK most similar chunks,
// optionally restricted to the given scope.
func (s *SQLiteStore) Search(ctx context.Context, query string, topK int, scope Scope) ([]Chunk, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sqlQuery := "SELECT document_id, source, page, path, text, embedding_json FROM chunks"
	var args []any
	switch {
	case scope.Source != "":
		sqlQuery += " WHERE source = ?"
		args = append(args, scope.Source)
	case scope.DocumentID != "":
		sqlQuery += " WHERE document_id = ?"
		args = append(args, scope.DocumentID)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for search: %w", err)
	}
	defer rows.Close()

	var scored []scoredChunk
	for rows.Next() {
		var c Chunk
		var path, embeddingJSON sql.NullString
		if err := rows.Scan(&c.Meta.DocumentID, &c.Meta.Source, &c.Meta.Page, &path, &c.Text, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		c.Meta.Path = path.String

		var embedding []float32
		if embeddingJSON.String == "" {
			log.Warn().Str("source", c.Meta.Source).Int("page", c.Meta.Page).
				Msg("chunk has no stored embedding, skipping")
			continue
		}
		if err := json.Unmarshal([]byte(embeddingJSON.String), &embedding); err != nil {
			log.Warn().Err(err).Str("source", c.Meta.Source).Int("page", c.Meta.Page).
				Msg("failed to decode stored embedding, skipping chunk")
			continue
		}
		scored = append(scored, scoredChunk{
			chunk:      c,
			similarity: cosineSimilarity(queryEmbedding, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	result := make([]Chunk, 0, topK)
	for _, sc := range scored[:topK] {
		result = append(result, sc.chunk)
	}
	return result, nil
}

// Remove deletes every chunk belonging to a document, matching by
// document id or source name so documents with inconsistent per-page
// ids are still fully removed.
func (s *SQLiteStore) Remove(ctx context.Context, documentID, source string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = ? OR source = ?", documentID, source)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}
