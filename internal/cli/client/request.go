package client

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// CreateRequestRequest represents the knowledge request creation body.
type CreateRequestRequest struct {
	EmbeddingID    int64  `json:"embedding_id"`
	Question       string `json:"question"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
}

// RespondRequest represents the respond body.
type RespondRequest struct {
	RequestID       int64  `json:"request_id"`
	Decision        string `json:"decision"`
	ResponseContent string `json:"response_content,omitempty"`
}

// KnowledgeRequestView is a knowledge request as returned by the API.
type KnowledgeRequestView struct {
	ID              int64  `json:"id"`
	RequesterID     string `json:"requester_id"`
	OwnerID         string `json:"owner_id"`
	EmbeddingID     int64  `json:"embedding_id"`
	Question        string `json:"question"`
	Status          string `json:"status"`
	ResponseContent string `json:"response_content,omitempty"`
	CreatedAt       string `json:"created_at"`
	RespondedAt     string `json:"responded_at,omitempty"`
	RequesterName   string `json:"requester_name,omitempty"`
	RequesterEmail  string `json:"requester_email,omitempty"`
	OwnerName       string `json:"owner_name,omitempty"`
	OwnerEmail      string `json:"owner_email,omitempty"`
	ChunkContent    string `json:"chunk_content,omitempty"`
	ParentMessage   string `json:"parent_message,omitempty"`
}

// RequestCmd creates the request command.
func RequestCmd() *cobra.Command {
	var (
		question       string
		conversationID int64
	)

	cmd := &cobra.Command{
		Use:   "request <embedding-id>",
		Short: "Ask a colleague for access to their knowledge",
		Long:  "Creates a pending access request for one of the chunks suggested by 'hivemesh ask'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embeddingID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid embedding id: %s", args[0])
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			var convID *int64
			if conversationID > 0 {
				convID = &conversationID
			}
			return runRequest(cmd, embeddingID, question, convID, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "The question you want answered")
	cmd.Flags().Int64VarP(&conversationID, "conversation", "c", 0, "Conversation the question came from")
	cmd.MarkFlagRequired("question")

	return cmd
}

func runRequest(cmd *cobra.Command, embeddingID int64, question string, conversationID *int64, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/knowledge/requests", CreateRequestRequest{
		EmbeddingID:    embeddingID,
		Question:       question,
		ConversationID: conversationID,
	})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var created KnowledgeRequestView
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		encoded, _ := json.MarshalIndent(created, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Printf("Request %d created (status: %s). The owner has been notified.\n", created.ID, created.Status)
	return nil
}

// RespondCmd creates the respond command.
func RespondCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "respond <request-id> <approve|deny>",
		Short: "Approve or deny a pending access request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid request id: %s", args[0])
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runRespond(cmd, requestID, args[1], message, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Optional message for the requester")

	return cmd
}

func runRespond(cmd *cobra.Command, requestID int64, decision, message string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/knowledge/requests/respond", RespondRequest{
		RequestID:       requestID,
		Decision:        decision,
		ResponseContent: message,
	})
	if err != nil {
		return fmt.Errorf("respond failed: %w", err)
	}

	var resolved KnowledgeRequestView
	if err := json.Unmarshal(resp.Data, &resolved); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		encoded, _ := json.MarshalIndent(resolved, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Printf("Request %d %s.\n", resolved.ID, resolved.Status)
	return nil
}

// RequestsCmd creates the requests listing command.
func RequestsCmd() *cobra.Command {
	var (
		direction string
		status    string
	)

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List knowledge access requests",
		Long:  "Lists requests you received (default), sent, or both.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runRequests(cmd, direction, status, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&direction, "direction", "d", "received", "Direction: received, sent, or all")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status: pending, approved, or denied")

	return cmd
}

func runRequests(cmd *cobra.Command, direction, status string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := "/knowledge/requests?type=" + direction
	if status != "" {
		path += "&status=" + status
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var requests []KnowledgeRequestView
	if err := json.Unmarshal(resp.Data, &requests); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		encoded, _ := json.MarshalIndent(requests, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	if len(requests) == 0 {
		fmt.Println("No requests found.")
		return nil
	}

	for _, req := range requests {
		fmt.Printf("#%d [%s] %s\n", req.ID, req.Status, req.Question)
		fmt.Printf("   from %s <%s> to %s <%s>, created %s\n",
			req.RequesterName, req.RequesterEmail, req.OwnerName, req.OwnerEmail, req.CreatedAt)
		if req.ChunkContent != "" {
			fmt.Printf("   about: %s\n", truncate(req.ChunkContent, 120))
		}
		if req.ResponseContent != "" {
			fmt.Printf("   response: %s\n", truncate(req.ResponseContent, 120))
		}
	}

	return nil
}
