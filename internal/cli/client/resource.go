package client

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ResourceView is an org resource as returned by the API.
type ResourceView struct {
	ID        int64  `json:"id"`
	OrgID     string `json:"org_id"`
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ResourceCmd creates the resource command group.
func ResourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Manage organization-wide resources",
		Long:  "Resources are org-visible documents that every retrieval can match against.",
	}

	cmd.AddCommand(resourceAddCmd())
	cmd.AddCommand(resourceListCmd())
	cmd.AddCommand(resourceUpdateCmd())
	cmd.AddCommand(resourceRemoveCmd())

	return cmd
}

// resourceContent resolves the content argument, reading from a file
// when --file is set.
func resourceContent(args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("content is required (pass it as an argument or via --file)")
	}
	return args[0], nil
}

func resourceAddCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a resource visible to the whole organization",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := resourceContent(args, file)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runResourceAdd(cmd, content, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read content from a file")

	return cmd
}

func runResourceAdd(cmd *cobra.Command, content string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/resources", map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	var created ResourceView
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		encoded, _ := json.MarshalIndent(created, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Printf("Resource %d created.\n", created.ID)
	return nil
}

func resourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the organization's resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runResourceList(cmd, outputJSON)
		},
	}
}

func runResourceList(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/resources")
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var resources []ResourceView
	if err := json.Unmarshal(resp.Data, &resources); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		encoded, _ := json.MarshalIndent(resources, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	if len(resources) == 0 {
		fmt.Println("No resources found.")
		return nil
	}

	for _, res := range resources {
		fmt.Printf("#%d (updated %s)\n   %s\n", res.ID, res.UpdatedAt, truncate(res.Content, 120))
	}

	return nil
}

func resourceUpdateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update <id> [content]",
		Short: "Replace a resource's content",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid resource id: %s", args[0])
			}
			content, err := resourceContent(args[1:], file)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runResourceUpdate(cmd, id, content, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read content from a file")

	return cmd
}

func runResourceUpdate(cmd *cobra.Command, id int64, content string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Put(fmt.Sprintf("/resources/%d", id), map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	var updated ResourceView
	if err := json.Unmarshal(resp.Data, &updated); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		encoded, _ := json.MarshalIndent(updated, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Printf("Resource %d updated.\n", updated.ID)
	return nil
}

func resourceRemoveCmd() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a resource",
		Long:  "Soft-deletes a resource by default; --purge removes it and its chunks permanently.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid resource id: %s", args[0])
			}
			return runResourceRemove(cmd, id, purge)
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Permanently delete the resource")

	return cmd
}

func runResourceRemove(cmd *cobra.Command, id int64, purge bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/resources/%d", id)
	if purge {
		path += "?purge=true"
	}

	if _, err := api.Delete(path); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	if purge {
		fmt.Printf("Resource %d permanently deleted.\n", id)
	} else {
		fmt.Printf("Resource %d deleted.\n", id)
	}
	return nil
}
