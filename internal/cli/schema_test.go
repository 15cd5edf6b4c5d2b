package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommandTree() *cobra.Command {
	root := &cobra.Command{Use: "hivemesh", Short: "Hivemesh client"}
	AddHelpJSONFlag(root)

	request := &cobra.Command{Use: "request <embedding-id>", Short: "Request access to a knowledge chunk"}
	request.Flags().StringP("question", "q", "", "Question motivating the request")
	_ = request.MarkFlagRequired("question")
	request.Flags().Int64P("conversation", "c", 0, "Conversation to attach the request to")

	notifications := &cobra.Command{Use: "notifications", Short: "Manage notifications"}
	notifications.AddCommand(&cobra.Command{Use: "list", Short: "List notifications"})
	notifications.AddCommand(&cobra.Command{Use: "unread", Short: "Show unread count"})

	hidden := &cobra.Command{Use: "debug", Hidden: true}

	root.AddCommand(request, notifications, hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	root := newTestCommandTree()
	schema := GenerateSchema(root)

	assert.Equal(t, "hivemesh", schema.Name)
	assert.Equal(t, "Hivemesh client", schema.Description)

	// Hidden commands and the help-json flag itself stay out of the schema.
	names := make([]string, 0, len(schema.Subcommands))
	for _, sub := range schema.Subcommands {
		names = append(names, sub.Name)
	}
	assert.Equal(t, []string{"notifications", "request"}, names)
	assert.Empty(t, schema.Flags)
}

func TestGenerateSchema_Flags(t *testing.T) {
	root := newTestCommandTree()
	schema := GenerateSchema(root)

	var request CommandSchema
	for _, sub := range schema.Subcommands {
		if sub.Name == "request" {
			request = sub
		}
	}
	require.Len(t, request.Flags, 2)

	byName := make(map[string]FlagSchema)
	for _, f := range request.Flags {
		byName[f.Name] = f
	}

	question := byName["question"]
	assert.Equal(t, "q", question.Shorthand)
	assert.Equal(t, "string", question.Type)
	assert.True(t, question.Required)

	conversation := byName["conversation"]
	assert.Equal(t, "int64", conversation.Type)
	assert.Equal(t, "0", conversation.Default)
	assert.False(t, conversation.Required)
}

func TestFindTargetCommand(t *testing.T) {
	root := newTestCommandTree()

	assert.Equal(t, "hivemesh", findTargetCommand(root, nil).Name())
	assert.Equal(t, "request", findTargetCommand(root, []string{"request"}).Name())
	assert.Equal(t, "unread", findTargetCommand(root, []string{"notifications", "unread"}).Name())

	// Unknown path falls back to the deepest matched command.
	assert.Equal(t, "hivemesh", findTargetCommand(root, []string{"bogus"}).Name())
	assert.Equal(t, "notifications", findTargetCommand(root, []string{"notifications", "bogus"}).Name())
}
