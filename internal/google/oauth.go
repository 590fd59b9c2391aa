package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuthConfig holds the pieces needed to build an oauth2.Config.
// ClientID and ClientSecret come from the Google Cloud console.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// ConfigFromEnv builds an OAuthConfig from environment variables.
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required for any
// authentication to work; GOOGLE_REDIRECT_URI defaults to the local
// development callback.
func ConfigFromEnv() OAuthConfig {
	redirect := os.Getenv("GOOGLE_REDIRECT_URI")
	if redirect == "" {
		redirect = "http://localhost:5001/oauth2callback"
	}
	return OAuthConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  redirect,
	}
}

// OAuth2Config returns the oauth2.Config for all Google services used by
// inboxtasks (Gmail read-only, Tasks, Calendar).
func (c OAuthConfig) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  c.RedirectURL,
		Scopes:       DefaultOAuthScopes,
	}
}

// AuthCodeURL returns the consent URL the user should be redirected to.
// The state parameter is round-tripped through the OAuth flow and must be
// verified by the caller on callback.
func (c OAuthConfig) AuthCodeURL(state string) string {
	return c.OAuth2Config().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token and persists it for
// the given account.
func (c OAuthConfig) Exchange(ctx context.Context, store *TokenStore, account, code string) (*oauth2.Token, error) {
	token, err := c.OAuth2Config().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if err := store.SaveToken(account, token); err != nil {
		return nil, err
	}
	return token, nil
}

// HTTPClient returns an authenticated HTTP client for an account. The
// returned client refreshes the access token transparently through the
// oauth2 token source.
func (c OAuthConfig) HTTPClient(ctx context.Context, store *TokenStore, account string) (*http.Client, error) {
	token, err := store.LoadToken(account)
	if err != nil {
		return nil, err
	}

	ts := c.OAuth2Config().TokenSource(ctx, token)
	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1; the Google APIs occasionally choke on HTTP/2
	// stream errors with long-lived clients.
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			ForceAttemptHTTP2: false,
		}
	}

	return client, nil
}

// TokenStore persists OAuth tokens as JSON files under a directory,
// one file per account.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a token store rooted at dir. An empty dir falls
// back to the default cache directory.
func NewTokenStore(dir string) *TokenStore {
	if dir == "" {
		dir = DefaultCacheDir()
	}
	return &TokenStore{dir: dir}
}

// Dir returns the directory the store writes to.
func (s *TokenStore) Dir() string {
	return s.dir
}

func (s *TokenStore) tokenFile(account string) string {
	return filepath.Join(s.dir, "google-"+account+".token.json")
}

// SaveToken writes the token for an account with owner-only permissions.
func (s *TokenStore) SaveToken(account string, token *oauth2.Token) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(s.tokenFile(account), data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// LoadToken reads the stored token for an account.
func (s *TokenStore) LoadToken(account string) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.tokenFile(account))
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s", account)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token file for account %s: %w", account, err)
	}
	return &token, nil
}

// DeleteToken removes the stored token for an account. Missing tokens are
// not an error.
func (s *TokenStore) DeleteToken(account string) error {
	err := os.Remove(s.tokenFile(account))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// HasToken checks whether a token file exists for an account.
func (s *TokenStore) HasToken(account string) bool {
	_, err := os.Stat(s.tokenFile(account))
	return err == nil
}

// DefaultCacheDir returns the per-user cache directory for inboxtasks.
func DefaultCacheDir() string {
	return filepath.Join(userCacheDir(), "inboxtasks")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
