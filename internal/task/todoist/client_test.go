package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxtasks/internal/task"
)

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestCreate(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":  "7531",
			"url": "https://todoist.com/showTask?id=7531",
		})
	}))
	defer srv.Close()

	c, err := NewClient("secret-token", WithEndpoint(srv.URL))
	require.NoError(t, err)

	due := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	created, err := c.Create(context.Background(), task.Input{
		Title: "Review invoice",
		Notes: "From: billing@example.com",
		Due:   due,
	})
	require.NoError(t, err)

	assert.Equal(t, "7531", created.ID)
	assert.Equal(t, "https://todoist.com/showTask?id=7531", created.Link)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "Review invoice", gotBody["content"])
	assert.Equal(t, "From: billing@example.com", gotBody["description"])
	assert.Equal(t, "2026-04-01T15:00:00Z", gotBody["due_datetime"])
}

func TestCreateWithoutDue(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "1"})
	}))
	defer srv.Close()

	c, err := NewClient("tok", WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = c.Create(context.Background(), task.Input{Title: "No deadline"})
	require.NoError(t, err)

	_, hasDue := gotBody["due_datetime"]
	assert.False(t, hasDue)
}

func TestCreateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid token"))
	}))
	defer srv.Close()

	c, err := NewClient("bad-token", WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = c.Create(context.Background(), task.Input{Title: "x"})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid token")
}

func TestName(t *testing.T) {
	c, err := NewClient("tok")
	require.NoError(t, err)
	assert.Equal(t, "todoist", c.Name())
}
