package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenStore_SaveLoadDelete(t *testing.T) {
	store := NewTokenStore(t.TempDir())

	token := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).UTC(),
	}

	require.NoError(t, store.SaveToken("default", token))
	assert.True(t, store.HasToken("default"))
	assert.False(t, store.HasToken("other"))

	loaded, err := store.LoadToken("default")
	require.NoError(t, err)
	assert.Equal(t, "access-123", loaded.AccessToken)
	assert.Equal(t, "refresh-456", loaded.RefreshToken)

	require.NoError(t, store.DeleteToken("default"))
	assert.False(t, store.HasToken("default"))

	_, err = store.LoadToken("default")
	assert.Error(t, err)
}

func TestTokenStore_DeleteMissingIsNoError(t *testing.T) {
	store := NewTokenStore(t.TempDir())
	assert.NoError(t, store.DeleteToken("absent"))
}

func TestTokenStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(dir)

	require.NoError(t, store.SaveToken("default", &oauth2.Token{AccessToken: "x"}))

	info, err := os.Stat(filepath.Join(dir, "google-default.token.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestTokenStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "google-default.token.json"), []byte("not json"), 0600))

	_, err := store.LoadToken("default")
	assert.Error(t, err)
}

func TestAuthCodeURL(t *testing.T) {
	cfg := OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:5001/oauth2callback",
	}

	url := cfg.AuthCodeURL("state-token")
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "state=state-token")
	assert.Contains(t, url, "access_type=offline")
	assert.Contains(t, url, "prompt=consent")
}

func TestConfigFromEnv_RedirectDefault(t *testing.T) {
	t.Setenv("GOOGLE_REDIRECT_URI", "")
	cfg := ConfigFromEnv()
	assert.Equal(t, "http://localhost:5001/oauth2callback", cfg.RedirectURL)

	t.Setenv("GOOGLE_REDIRECT_URI", "https://example.com/cb")
	cfg = ConfigFromEnv()
	assert.Equal(t, "https://example.com/cb", cfg.RedirectURL)
}
