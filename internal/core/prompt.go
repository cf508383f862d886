package core

import (
	"fmt"
	"strings"

	"github.com/localdocs/pdfchat/internal/chunks"
)

const (
	// systemInstruction is the fixed system role message that prefixes
	// every prompt sent to the model.
	systemInstruction = "You are a helpful assistant that answers using only provided context."

	answerInstructions = "You are an offline PDF assistant. Use only the provided context to answer directly. " +
		"Avoid filler like 'the context contains'. If the context does not contain the answer, " +
		"say you do not have enough information."

	noContextPlaceholder = "No context available."
)

// ComposePrompt renders the retrieved chunks and the user message into
// the final user turn of the chat prompt. Pure string building, no I/O.
//
// Each chunk becomes one citation line "[<source> p<page>] <text>";
// chunks that are blank after trimming are skipped. With no usable
// chunks the context block is a fixed placeholder rather than empty,
// so the model is explicitly told there is nothing to cite.
func ComposePrompt(message string, contextChunks []chunks.Chunk) string {
	var lines []string
	for _, c := range contextChunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		source := c.Meta.Source
		if source == "" {
			source = "doc"
		}
		page := "?"
		if c.Meta.Page > 0 {
			page = fmt.Sprintf("%d", c.Meta.Page)
		}
		lines = append(lines, fmt.Sprintf("[%s p%s] %s", source, page, text))
	}

	contextBlock := noContextPlaceholder
	if len(lines) > 0 {
		contextBlock = strings.Join(lines, "\n")
	}

	return fmt.Sprintf("%s\n\nContext:\n%s\n\nUser: %s\nAnswer:",
		answerInstructions, contextBlock, message)
}
