package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationTitle(t *testing.T) {
	assert.Equal(t, "short question", ConversationTitle("short question"))

	long := strings.Repeat("a", 80)
	title := ConversationTitle(long)
	assert.Equal(t, strings.Repeat("a", 50)+"...", title)
}

func TestValidateMessage(t *testing.T) {
	m := &Message{ConversationID: 1, Role: MessageRoleUser, Content: "hello"}
	assert.NoError(t, ValidateMessage(m))

	m.Role = "bot"
	assert.Error(t, ValidateMessage(m))

	m.Role = MessageRoleAssistant
	m.Content = ""
	assert.Error(t, ValidateMessage(m))
}
