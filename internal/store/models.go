package store

import "time"

// Message roles. Messages are immutable once written.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultTitle is the placeholder title a conversation is created with.
// UpdateTitleIfDefault only ever overwrites this (or an empty) title.
const DefaultTitle = "Conversation"

type Conversation struct {
	ID        string    `json:"id"` // UUID
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"` // UUID
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Document is an ingested PDF. Its extracted chunks live in the chunk
// store, keyed by this document's ID and display name.
type Document struct {
	ID        string    `json:"id"` // UUID
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
