// Package ingest turns uploaded PDF files into embedded chunks in the
// chunk store, one chunk per page.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/localdocs/pdfchat/internal/chunks"
)

// ChunkWriter is the ingestion surface of the chunk store.
type ChunkWriter interface {
	Insert(ctx context.Context, cs []chunks.Chunk) error
}

type Ingestor struct {
	writer ChunkWriter
}

func NewIngestor(writer ChunkWriter) *Ingestor {
	return &Ingestor{writer: writer}
}

// IngestPDF extracts per-page text from the PDF at path and stores the
// resulting chunks under the given document id and display name.
// Returns the number of chunks stored; a PDF with no extractable text
// is an error.
func (i *Ingestor) IngestPDF(ctx context.Context, path, name, documentID string) (int, error) {
	pages, err := extractPages(path)
	if err != nil {
		return 0, err
	}

	var cs []chunks.Chunk
	for _, p := range pages {
		chunk, ok := pageChunk(documentID, name, path, p.number, p.text)
		if !ok {
			continue
		}
		cs = append(cs, chunk)
	}
	if len(cs) == 0 {
		return 0, fmt.Errorf("no extractable text found in PDF %s", name)
	}

	if err := i.writer.Insert(ctx, cs); err != nil {
		return 0, fmt.Errorf("failed to store chunks for %s: %w", name, err)
	}
	log.Info().Str("source", name).Str("document_id", documentID).
		Int("chunks", len(cs)).Msg("ingested PDF")
	return len(cs), nil
}

type page struct {
	number int
	text   string
}

func extractPages(path string) ([]page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var pages []page
	for n := 1; n <= reader.NumPage(); n++ {
		p := reader.Page(n)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Int("page", n).Str("path", path).
				Msg("failed to extract page text, skipping page")
			continue
		}
		pages = append(pages, page{number: n, text: text})
	}
	return pages, nil
}

// pageChunk builds one chunk from a page of extracted text. The source
// and page prefix keeps the citation answerable even if metadata is
// stripped downstream. Pages that are blank after trimming produce no
// chunk.
func pageChunk(documentID, name, path string, pageNumber int, text string) (chunks.Chunk, bool) {
	if strings.TrimSpace(text) == "" {
		return chunks.Chunk{}, false
	}
	return chunks.Chunk{
		Text: fmt.Sprintf("Source: %s\nPage: %d\n%s", name, pageNumber, text),
		Meta: chunks.Metadata{
			DocumentID: documentID,
			Source:     name,
			Page:       pageNumber,
			Path:       path,
		},
	}, true
}
