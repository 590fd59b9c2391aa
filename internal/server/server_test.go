package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/inboxtasks/internal/classify"
	"github.com/teemow/inboxtasks/internal/gmail"
	"github.com/teemow/inboxtasks/internal/google"
	"github.com/teemow/inboxtasks/internal/pipeline"
	"github.com/teemow/inboxtasks/internal/store"
	"github.com/teemow/inboxtasks/internal/task"
)

type stubMailbox struct {
	emails []gmail.Email
}

func (m *stubMailbox) ListMessageIDs(q string, maxResults int64) ([]string, error) {
	var ids []string
	for _, e := range m.emails {
		if int64(len(ids)) >= maxResults {
			break
		}
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (m *stubMailbox) FetchEmail(id string) (*gmail.Email, error) {
	for _, e := range m.emails {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

type stubClassifier struct{}

func (stubClassifier) Classify(_ context.Context, email gmail.Email, _ classify.Options) (*classify.Classification, error) {
	return &classify.Classification{
		ShouldCreate: true,
		Confidence:   0.9,
		Title:        classify.CleanTitle(email.Subject),
		Notes:        email.Body,
	}, nil
}

type stubProvider struct{ name string }

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Create(context.Context, task.Input) (*task.Created, error) {
	return &task.Created{ID: "task-1", Link: "https://tasks.example.com/1"}, nil
}

type testServer struct {
	srv     *Server
	router  http.Handler
	tokens  *google.TokenStore
	history *store.HistoryStore
	mailbox *stubMailbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	tokens := google.NewTokenStore(filepath.Join(dir, "tokens"))
	settings, err := store.NewSettingsStore(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	history, err := store.NewHistoryStore(filepath.Join(dir, "tasks_history.json"), filepath.Join(dir, "events_history.json"))
	require.NoError(t, err)
	processed, err := store.NewProcessedStore(filepath.Join(dir, "processed.json"))
	require.NoError(t, err)

	mailbox := &stubMailbox{}
	registry := task.NewRegistry(stubProvider{name: "google_tasks"})

	factory := func(context.Context) (*pipeline.Processor, error) {
		return pipeline.New(pipeline.Config{
			Mailbox:    mailbox,
			Classifier: stubClassifier{},
			Providers:  registry,
			Processed:  processed,
			History:    history,
		})
	}

	srv, err := New(Config{
		Account: "default",
		OAuth: google.OAuthConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:5001/oauth2callback",
		},
		Tokens:       tokens,
		Settings:     settings,
		History:      history,
		NewProcessor: factory,
	})
	require.NoError(t, err)

	return &testServer{
		srv:     srv,
		router:  srv.Router(),
		tokens:  tokens,
		history: history,
		mailbox: mailbox,
	}
}

func (ts *testServer) authenticate(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.tokens.SaveToken("default", &oauth2.Token{
		AccessToken: "test-token",
		Expiry:      time.Now().Add(time.Hour),
	}))
}

func (ts *testServer) do(method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestFetchEmailsRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/fetch-emails", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "not authenticated")
}

func TestFetchEmails(t *testing.T) {
	ts := newTestServer(t)
	ts.authenticate(t)
	ts.mailbox.emails = []gmail.Email{
		{ID: "m1", Subject: "Please review the report", Sender: "alice@example.com", Body: "asap"},
	}

	w := ts.do(http.MethodPost, "/api/fetch-emails?provider=google_tasks&max=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.TotalFound)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, "google_tasks", result.Provider)

	// Second run: nothing new to process.
	w = ts.do(http.MethodPost, "/api/fetch-emails?provider=google_tasks&max=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 1, result.AlreadyProcessed)
}

func TestFetchEmailsZeroMatches(t *testing.T) {
	ts := newTestServer(t)
	ts.authenticate(t)

	w := ts.do(http.MethodGet, "/api/fetch-emails", "")
	require.Equal(t, http.StatusOK, w.Code)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 0, result.TotalFound)
	assert.Equal(t, 0, result.Processed)
}

func TestFetchEmailsUnknownProvider(t *testing.T) {
	ts := newTestServer(t)
	ts.authenticate(t)

	w := ts.do(http.MethodPost, "/api/fetch-emails?provider=jira", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "jira")
}

func TestFetchEmailsInvalidParams(t *testing.T) {
	ts := newTestServer(t)
	ts.authenticate(t)

	for _, target := range []string{
		"/api/fetch-emails?max=abc",
		"/api/fetch-emails?max=0",
		"/api/fetch-emails?since_hours=-2",
		"/api/fetch-emails?dry_run=maybe",
		"/api/fetch-emails?since=tomorrow",
	} {
		w := ts.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestFetchEmailsDryRunFromBody(t *testing.T) {
	ts := newTestServer(t)
	ts.authenticate(t)
	ts.mailbox.emails = []gmail.Email{
		{ID: "m1", Subject: "Please review", Sender: "alice@example.com"},
	}

	w := ts.do(http.MethodPost, "/api/fetch-emails", `{"provider":"google_tasks","dry_run":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, ts.history.Tasks(), "dry run must not persist history")
}

func TestListAndDeleteTasks(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.history.AppendTasks(store.TaskRecord{
		ID:        "rec-1",
		MessageID: "m1",
		Provider:  "google_tasks",
		Title:     "Review report",
		CreatedAt: time.Now().UTC(),
	}))

	w := ts.do(http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tasks []store.TaskRecord `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "Review report", resp.Tasks[0].Title)

	w = ts.do(http.MethodDelete, "/api/tasks/rec-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodDelete, "/api/tasks/rec-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEvents(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.history.AppendEvents(store.EventRecord{
		ID:        "evt-rec-1",
		MessageID: "m1",
		Summary:   "Planning meeting",
		CreatedAt: time.Now().UTC(),
	}))

	w := ts.do(http.MethodGet, "/api/calendar-events", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events []store.EventRecord `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "Planning meeting", resp.Events[0].Summary)
}

func TestSettingsRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPut, "/api/settings", `{"provider":"todoist","max":50,"window":"3d"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)

	var settings store.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, "todoist", settings.Provider)
	assert.Equal(t, 50, settings.Max)
	assert.Equal(t, "3d", settings.Window)
}

func TestSettingsRejectsNegativeMax(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPut, "/api/settings", `{"max":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthStatus(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/auth/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["authenticated"])

	ts.authenticate(t)

	w = ts.do(http.MethodGet, "/api/auth/status", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["authenticated"])
	assert.Equal(t, "default", resp["account"])
}

func TestAuthorizeRedirects(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/authorize", "")
	require.Equal(t, http.StatusFound, w.Code)

	loc := w.Header().Get("Location")
	assert.Contains(t, loc, "accounts.google.com")
	assert.Contains(t, loc, "state=")

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == stateCookieName {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie, "state cookie must be set")
	assert.True(t, stateCookie.HttpOnly)
	assert.Contains(t, loc, stateCookie.Value)
}

func TestOAuthCallbackStateMismatch(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth2callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "expected"})
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "state mismatch")
}

func TestOAuthCallbackDenied(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/oauth2callback?error=access_denied", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "access_denied")
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.authenticate(t)
	require.True(t, ts.tokens.HasToken("default"))

	w := ts.do(http.MethodPost, "/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ts.tokens.HasToken("default"))
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	ts.srv.Health().SetReady(false)
	w = ts.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code, "liveness is independent of readiness")
}
