// Package chunks is the gateway to the chunk store: page-level spans of
// extracted document text plus citation metadata, retrievable by exact
// metadata match or by embedding similarity.
package chunks

// Metadata carries the citation attributes of a chunk.
//
// DocumentID should be stable across all pages of a source file, but
// historical data violates this, so source-name matching is the
// reliable lookup path and DocumentID is best-effort only.
type Metadata struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Page       int    `json:"page"`
	Path       string `json:"path"`
}

// Chunk is the single normalized record shape both retrieval paths
// (exact match and similarity search) produce.
type Chunk struct {
	Text string   `json:"text"`
	Meta Metadata `json:"metadata"`
}

// Scope restricts a similarity search to one document. At most one of
// the two fields is meaningful at a time; Source wins when both are set.
type Scope struct {
	Source     string
	DocumentID string
}
