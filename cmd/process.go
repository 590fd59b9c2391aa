package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxtasks/internal/gmail"
	"github.com/teemow/inboxtasks/internal/google"
	"github.com/teemow/inboxtasks/internal/instrumentation"
	"github.com/teemow/inboxtasks/internal/pipeline"
	"github.com/teemow/inboxtasks/internal/task/googletasks"
)

func newProcessCmd() *cobra.Command {
	var (
		debugMode  bool
		dataDir    string
		account    string
		taskList   string
		provider   string
		max        int64
		window     string
		sinceHours int
		query      string
		label      string
		dryRun     bool
		calendarID string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one processing pass over the inbox",
		Long: `Scan the Gmail inbox once, classify the matching messages, and create
tasks and calendar events for the actionable ones. Messages handled in
earlier runs are skipped. The run summary is printed as JSON.

Authenticate first with the login command or through the server's
/authorize endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			logger := newLogger(debugMode)

			oauthCfg := google.ConfigFromEnv()
			if oauthCfg.ClientID == "" || oauthCfg.ClientSecret == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
			}

			stores, err := openStores(dataDir)
			if err != nil {
				return err
			}
			if !stores.tokens.HasToken(account) {
				return fmt.Errorf("no token for account %s; run 'inboxtasks login' first", account)
			}

			factory := newProcessorFactory(oauthCfg, stores, account, taskList, logger, &instrumentation.Metrics{})
			processor, err := factory(ctx)
			if err != nil {
				return err
			}

			result, err := processor.Run(ctx, pipeline.Options{
				Provider: provider,
				Max:      max,
				Query: gmail.QueryOptions{
					Raw:        query,
					Label:      label,
					Window:     window,
					SinceHours: sinceHours,
				},
				DryRun:     dryRun,
				CalendarID: calendarID,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for tokens and state files (default: per-user cache dir)")
	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use")
	cmd.Flags().StringVar(&taskList, "task-list", googletasks.DefaultListTitle, "Google Tasks list to create tasks in")
	cmd.Flags().StringVar(&provider, "provider", googletasks.ProviderName, "Task backend: google_tasks or todoist")
	cmd.Flags().Int64Var(&max, "max", pipeline.DefaultMax, "Maximum number of messages to process")
	cmd.Flags().StringVar(&window, "window", "", "Relative time window, e.g. 7d or 2m (bare numbers mean days, hours round up to days)")
	cmd.Flags().IntVar(&sinceHours, "since-hours", 0, "Only consider messages newer than this many hours")
	cmd.Flags().StringVar(&query, "q", "", "Raw Gmail search query (overrides the default in:inbox)")
	cmd.Flags().StringVar(&label, "label", "", "Restrict to messages with this Gmail label")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify and report without creating anything")
	cmd.Flags().StringVar(&calendarID, "calendar-id", "", "Target calendar for meeting events (default: primary)")

	return cmd
}
