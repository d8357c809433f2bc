package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
)

// previewLength is the number of runes of the first message kept in a summary
const previewLength = 50

// Conversation is an ordered, append-only log of messages identified by a UUID
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// ConversationSummary is the read-only projection used when listing stored conversations
type ConversationSummary struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
	Preview      string `json:"preview"`
}

// NewConversation starts an empty conversation, seeded with a system message
// when systemPrompt is not empty.
func NewConversation(systemPrompt string) *Conversation {
	c := &Conversation{
		ID:       uuid.NewString(),
		Messages: []Message{},
	}
	if systemPrompt != "" {
		c.Messages = append(c.Messages, newMessage(RoleSystem, systemPrompt))
	}
	c.CreatedAt = Timestamp(now())
	c.UpdatedAt = c.CreatedAt
	return c
}

// AddSystemMessage appends a system message
func (c *Conversation) AddSystemMessage(content string) {
	c.add(RoleSystem, content)
}

// AddUserMessage appends a user message
func (c *Conversation) AddUserMessage(content string) {
	c.add(RoleUser, content)
}

// AddAssistantMessage appends an assistant message
func (c *Conversation) AddAssistantMessage(content string) {
	c.add(RoleAssistant, content)
}

func (c *Conversation) add(role Role, content string) {
	msg := newMessage(role, content)
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = msg.Timestamp
}

// ToModelMessages projects the log onto the role/content pairs sent to Ollama
func (c *Conversation) ToModelMessages() []api.Message {
	out := make([]api.Message, len(c.Messages))
	for i, msg := range c.Messages {
		out[i] = api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}

// LastMessages returns a copy of the last limit messages in order.
// A limit of zero or less means no truncation.
func (c *Conversation) LastMessages(limit int) []Message {
	if limit <= 0 || limit >= len(c.Messages) {
		return slices.Clone(c.Messages)
	}
	return slices.Clone(c.Messages[len(c.Messages)-limit:])
}

// Summary builds the listing projection of the conversation
func (c *Conversation) Summary() ConversationSummary {
	var first string
	if len(c.Messages) > 0 {
		first = c.Messages[0].Content
	}
	return ConversationSummary{
		ID:           c.ID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
		Preview:      preview(first),
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > previewLength {
		r = r[:previewLength]
	}
	return string(r) + "..."
}

// Encode serializes the conversation to its persisted JSON form: pretty
// printed, UTF-8, with non-ASCII and HTML characters left as written.
func (c *Conversation) Encode() ([]byte, error) {
	out := *c
	if out.Messages == nil {
		out.Messages = []Message{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode conversation %s: %w", c.ID, err)
	}
	return buf.Bytes(), nil
}

// wire mirrors the persisted layout with optional fields so that missing
// keys can be told apart from empty ones.
type wireConversation struct {
	ID        *string       `json:"id"`
	Messages  []wireMessage `json:"messages"`
	CreatedAt *string       `json:"created_at"`
	UpdatedAt *string       `json:"updated_at"`
}

type wireMessage struct {
	Role      Role    `json:"role"`
	Content   string  `json:"content"`
	Timestamp *string `json:"timestamp"`
}

// DecodeConversation parses a persisted conversation. A missing id gets a new
// UUID and missing messages an empty log. A missing timestamp takes the other
// one when present, otherwise the current time, so UpdatedAt never precedes
// CreatedAt.
func DecodeConversation(data []byte) (*Conversation, error) {
	var w wireConversation
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	stamp := Timestamp(now())
	switch {
	case w.CreatedAt == nil && w.UpdatedAt != nil:
		w.CreatedAt = w.UpdatedAt
	case w.UpdatedAt == nil && w.CreatedAt != nil:
		w.UpdatedAt = w.CreatedAt
	}
	c := &Conversation{
		ID:        orDefault(w.ID, uuid.NewString()),
		Messages:  make([]Message, 0, len(w.Messages)),
		CreatedAt: orDefault(w.CreatedAt, stamp),
		UpdatedAt: orDefault(w.UpdatedAt, stamp),
	}
	for _, m := range w.Messages {
		c.Messages = append(c.Messages, Message{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: orDefault(m.Timestamp, stamp),
		})
	}
	return c, nil
}

func orDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
