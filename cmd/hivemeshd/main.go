package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hivemesh/hivemesh/internal/cli"
	"github.com/hivemesh/hivemesh/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hivemeshd",
		Short: "Hivemesh daemon and admin CLI",
		Long:  "Hivemesh daemon for running the API server and managing organizations, users, and API keys",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.OrgCmd())
	rootCmd.AddCommand(admin.UserCmd())
	rootCmd.AddCommand(admin.APIKeyCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
