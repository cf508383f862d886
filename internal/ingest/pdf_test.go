package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localdocs/pdfchat/internal/chunks"
)

type fakeChunkWriter struct {
	inserted []chunks.Chunk
	err      error
}

func (f *fakeChunkWriter) Insert(_ context.Context, cs []chunks.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, cs...)
	return nil
}

func TestPageChunkFormatsSourceAndPage(t *testing.T) {
	chunk, ok := pageChunk("doc-1", "policy.pdf", "data/docs/policy.pdf", 3, "Refunds within 30 days.")

	require.True(t, ok)
	assert.Equal(t, "Source: policy.pdf\nPage: 3\nRefunds within 30 days.", chunk.Text)
	assert.Equal(t, "doc-1", chunk.Meta.DocumentID)
	assert.Equal(t, "policy.pdf", chunk.Meta.Source)
	assert.Equal(t, 3, chunk.Meta.Page)
	assert.Equal(t, "data/docs/policy.pdf", chunk.Meta.Path)
}

func TestPageChunkSkipsBlankPages(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		_, ok := pageChunk("doc-1", "policy.pdf", "p", 1, text)
		assert.False(t, ok)
	}
}

func TestIngestPDFRejectsUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))

	ing := NewIngestor(&fakeChunkWriter{})
	count, err := ing.IngestPDF(context.Background(), path, "broken.pdf", "doc-1")

	require.Error(t, err)
	assert.Zero(t, count)
}

func TestIngestPDFMissingFile(t *testing.T) {
	ing := NewIngestor(&fakeChunkWriter{})

	_, err := ing.IngestPDF(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), "nope.pdf", "doc-1")

	require.Error(t, err)
}
