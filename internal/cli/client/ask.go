package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RetrieveRequest represents the retrieve API request.
type RetrieveRequest struct {
	Question string `json:"question"`
}

// KnowledgeSource is a chunk the caller may read.
type KnowledgeSource struct {
	EmbeddingID int64   `json:"embedding_id"`
	Content     string  `json:"content"`
	OwnerID     string  `json:"owner_id"`
	OwnerName   string  `json:"owner_name"`
	Shared      bool    `json:"shared"`
	Distance    float64 `json:"distance"`
}

// KnowledgeSuggestion points at a colleague's chunk the caller cannot read.
type KnowledgeSuggestion struct {
	EmbeddingID int64   `json:"embedding_id"`
	OwnerID     string  `json:"owner_id"`
	OwnerName   string  `json:"owner_name"`
	OwnerEmail  string  `json:"owner_email"`
	Distance    float64 `json:"distance"`
}

// ResourceMatch is an org document chunk.
type ResourceMatch struct {
	EmbeddingID int64   `json:"embedding_id"`
	ResourceID  int64   `json:"resource_id"`
	Content     string  `json:"content"`
	Distance    float64 `json:"distance"`
}

// RetrieveResponse represents the retrieve API response.
type RetrieveResponse struct {
	Sources     []KnowledgeSource     `json:"sources"`
	Suggestions []KnowledgeSuggestion `json:"suggestions"`
	Resources   []ResourceMatch       `json:"resources"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Retrieve knowledge for a question",
		Long:  "Searches your own chunks, chunks shared with you, and org resources, and suggests colleagues who may know more.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runAsk(cmd *cobra.Command, question string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/retrieve", RetrieveRequest{Question: question})
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	var out RetrieveResponse
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return fmt.Errorf("failed to parse retrieve response: %w", err)
	}

	if outputJSON {
		encoded, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	if len(out.Sources) == 0 && len(out.Suggestions) == 0 && len(out.Resources) == 0 {
		fmt.Println("No matching knowledge found.")
		return nil
	}

	if len(out.Sources) > 0 {
		fmt.Printf("Sources (%d):\n", len(out.Sources))
		for i, s := range out.Sources {
			origin := "own"
			if s.Shared {
				origin = "shared by " + s.OwnerName
			}
			fmt.Printf("%d. [%s, distance %.3f]\n   %s\n", i+1, origin, s.Distance, truncate(s.Content, 200))
		}
		fmt.Println()
	}

	if len(out.Resources) > 0 {
		fmt.Printf("Org resources (%d):\n", len(out.Resources))
		for i, m := range out.Resources {
			fmt.Printf("%d. [resource %d, distance %.3f]\n   %s\n", i+1, m.ResourceID, m.Distance, truncate(m.Content, 200))
		}
		fmt.Println()
	}

	if len(out.Suggestions) > 0 {
		fmt.Printf("Colleagues who may know more (%d):\n", len(out.Suggestions))
		for i, s := range out.Suggestions {
			fmt.Printf("%d. %s <%s> (distance %.3f)\n", i+1, s.OwnerName, s.OwnerEmail, s.Distance)
			fmt.Printf("   request access: hivemesh request %d -q \"%s\"\n", s.EmbeddingID, question)
		}
	}

	return nil
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
