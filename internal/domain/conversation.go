package domain

import (
	"fmt"
	"time"
)

// MessageRole represents the author of a conversation message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Conversation represents a chat thread owned by one user
type Conversation struct {
	ID        int64
	PublicID  string
	UserID    string
	OrgID     string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents one turn in a conversation
type Message struct {
	ID             int64
	ConversationID int64
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}

const conversationTitleMaxChars = 50

// ConversationTitle derives a thread title from its first message.
func ConversationTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) <= conversationTitleMaxChars {
		return firstMessage
	}
	return string(runes[:conversationTitleMaxChars]) + "..."
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.ConversationID == 0 {
		return fmt.Errorf("message ConversationID is required")
	}

	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}

	if !isValidMessageRole(m.Role) {
		return fmt.Errorf("message Role is invalid: %s", m.Role)
	}

	return nil
}

// isValidMessageRole checks if a MessageRole is valid
func isValidMessageRole(r MessageRole) bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	}
	return false
}
