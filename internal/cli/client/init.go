package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitCmd creates the init command.
func InitCmd() *cobra.Command {
	var (
		apiKey string
		apiURL string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Store API credentials",
		Long:  "Verifies the API key against the server and stores it in the user config directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(apiKey, apiURL)
		},
	}

	cmd.Flags().StringVar(&apiKey, "key", "", "API key (hvm_...)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API base URL")
	cmd.MarkFlagRequired("key")

	return cmd
}

func runInit(apiKey, apiURL string) error {
	api, err := NewAPIClientWithConfig(apiKey, apiURL)
	if err != nil {
		return err
	}

	// An authenticated endpoint proves the key works before we store it.
	if _, err := api.Get("/notifications/unread"); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}

	if err := SaveGlobalConfig(&GlobalConfig{APIKey: apiKey, APIURL: apiURL}); err != nil {
		return err
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	fmt.Printf("Credentials verified and saved to %s\n", configPath)
	return nil
}
