package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxtasks/internal/google"
)

func newLoginCmd() *cobra.Command {
	var (
		dataDir string
		account string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate a Google account from the terminal",
		Long: `Print the Google consent URL, then exchange the pasted authorization
code for a token. The token is stored in the data directory and shared
with the serve and process commands.

After granting access the browser is redirected to the configured
redirect URI; copy the value of its "code" query parameter here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			oauthCfg := google.ConfigFromEnv()
			if oauthCfg.ClientID == "" || oauthCfg.ClientSecret == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
			}

			stores, err := openStores(dataDir)
			if err != nil {
				return err
			}

			state := uuid.NewString()
			fmt.Printf("Open this URL in your browser:\n\n  %s\n\n", oauthCfg.AuthCodeURL(state))
			fmt.Print("Paste the authorization code: ")

			reader := bufio.NewReader(os.Stdin)
			code, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}
			code = strings.TrimSpace(code)
			if code == "" {
				return fmt.Errorf("no authorization code entered")
			}

			if _, err := oauthCfg.Exchange(context.Background(), stores.tokens, account, code); err != nil {
				return err
			}

			fmt.Printf("Token stored for account %s in %s\n", account, stores.tokens.Dir())
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for tokens and state files (default: per-user cache dir)")
	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use")

	return cmd
}
