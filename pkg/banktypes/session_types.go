// Package banktypes defines the shared domain types for ChatBank Sovereign Core.
// This file contains the session and message types that make up a conversation
// thread and its persisted history.
package banktypes

import "time"

// MessagePart is one element of a message's content. Exactly one field is set:
// Text for prose, Image for a data-URI encoded generated or attached image.
type MessagePart struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// TextPart builds a text-only message part.
func TextPart(text string) MessagePart {
	return MessagePart{Text: text}
}

// ImagePart builds an image-only message part from a data URI.
func ImagePart(dataURI string) MessagePart {
	return MessagePart{Image: dataURI}
}

// GroundingSource is a citation attached to a search-augmented response.
// Ordering reflects the order returned by the API; duplicates are kept as-is.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Message is a single entry in a session's conversation history.
// A persisted message is append-only; the only in-place mutation permitted is
// the streaming merge into the most recent model message, which stops the
// moment the stream reports completion.
type Message struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"` // "user" or "model"
	Content   []MessagePart     `json:"content"`
	Mode      EngineMode        `json:"mode,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Sources   []GroundingSource `json:"sources,omitempty"`
	LatencyMs int64             `json:"latencyMs,omitempty"`
	ModelName string            `json:"modelName,omitempty"`
}

// Text returns the concatenated text parts of the message.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Content {
		out += p.Text
	}
	return out
}

// Session is a titled, ordered conversation thread. The title is derived from
// the most recent user message, not user-set, and LastUpdated advances on
// every message append.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Repository is the persistence port for the session collection. Adapters
// exist for a JSON file, a SQLite key/value table, and in-memory state.
type Repository interface {
	// Load reads the full session collection. A missing store returns an
	// empty collection and no error; corrupt state returns an error the
	// store treats as empty state.
	Load() ([]*Session, error)
	// Save writes the full session collection atomically.
	Save(sessions []*Session) error
}
