package models

import "time"

// Role represents the role of a message sender
type Role string

const (
	// RoleUser represents a message from the user
	RoleUser Role = "user"
	// RoleAssistant represents a message from the assistant
	RoleAssistant Role = "assistant"
	// RoleSystem represents a system message
	RoleSystem Role = "system"
)

// TimestampLayout is the ISO-8601 layout used for every persisted timestamp.
// It carries no zone so existing conversation files stay readable, and it
// sorts lexicographically in chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// now is swapped in tests that need deterministic timestamps
var now = time.Now

// Timestamp formats t with TimestampLayout
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Message represents a single chat turn. Messages are created by a
// Conversation and never modified afterwards.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func newMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: Timestamp(now()),
	}
}
