package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the inboxtasks application
var rootCmd = &cobra.Command{
	Use:   "inboxtasks",
	Short: "Turns actionable Gmail messages into tasks and calendar events",
	Long: `inboxtasks scans your Gmail inbox, classifies each message, and creates
tasks (Google Tasks or Todoist) and calendar events for the actionable ones.
Messages are only handled once; already-processed ids are remembered between
runs.

It can run as:
  - An HTTP API server with an OAuth flow (default)
  - A one-shot CLI processing pass`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxtasks version %s\n" .Version}}`)

	// If no subcommand is provided, run the server by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newVersionCmd())
}
