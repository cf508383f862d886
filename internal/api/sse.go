package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Event payloads for the chat stream. Every stream is zero or more
// token events followed by exactly one terminal status event.
type tokenEvent struct {
	Token string `json:"token"`
}

type statusEvent struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// writeSSE writes one data-only SSE frame with a JSON payload and
// flushes it immediately.
func writeSSE(w io.Writer, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	flusher.Flush()
	return nil
}

// sseHeaders prepares the response for streaming and returns the
// flusher, or an error response if the writer cannot stream.
func sseHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return flusher, true
}
