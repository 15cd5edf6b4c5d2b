package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hivemesh/hivemesh/internal/cli"
	"github.com/hivemesh/hivemesh/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hivemesh",
		Short: "Hivemesh CLI - shared knowledge for teams",
		Long: `Hivemesh CLI asks questions against your team's pooled knowledge and
manages access requests between colleagues.

Environment variables:
  HIVEMESH_API_KEY   API key for authentication (required)
  HIVEMESH_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.RequestCmd())
	rootCmd.AddCommand(client.RespondCmd())
	rootCmd.AddCommand(client.RequestsCmd())
	rootCmd.AddCommand(client.NotificationsCmd())
	rootCmd.AddCommand(client.ResourceCmd())
	rootCmd.AddCommand(client.WatchCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
