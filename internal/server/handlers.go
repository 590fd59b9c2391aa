package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/teemow/inboxtasks/internal/gmail"
	"github.com/teemow/inboxtasks/internal/instrumentation"
	"github.com/teemow/inboxtasks/internal/logging"
	"github.com/teemow/inboxtasks/internal/pipeline"
	"github.com/teemow/inboxtasks/internal/store"
	"github.com/teemow/inboxtasks/internal/task"
)

const stateCookieName = "oauth_state"

// fetchRequest carries the parameters of a fetch-emails call. All fields
// are optional; missing ones fall back to the stored settings and then
// to server defaults.
type fetchRequest struct {
	Provider   string `json:"provider"`
	Max        int    `json:"max"`
	Window     string `json:"window"`
	SinceHours int    `json:"since_hours"`
	Since      string `json:"since"`
	Query      string `json:"q"`
	Label      string `json:"label"`
	DryRun     *bool  `json:"dry_run"`
}

// parseFetchRequest reads parameters from the query string and, for POST
// requests with a JSON body, merges body fields over them.
func parseFetchRequest(r *http.Request) (fetchRequest, error) {
	var req fetchRequest

	q := r.URL.Query()
	req.Provider = q.Get("provider")
	req.Window = q.Get("window")
	req.Since = q.Get("since")
	req.Query = q.Get("q")
	req.Label = q.Get("label")

	if v := q.Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, fmt.Errorf("invalid max %q", v)
		}
		req.Max = n
	}
	if v := q.Get("since_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, fmt.Errorf("invalid since_hours %q", v)
		}
		req.SinceHours = n
	}
	if v := q.Get("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid dry_run %q", v)
		}
		req.DryRun = &b
	}

	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body fetchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return req, fmt.Errorf("invalid request body: %v", err)
		}
		if body.Provider != "" {
			req.Provider = body.Provider
		}
		if body.Max > 0 {
			req.Max = body.Max
		}
		if body.Window != "" {
			req.Window = body.Window
		}
		if body.SinceHours > 0 {
			req.SinceHours = body.SinceHours
		}
		if body.Since != "" {
			req.Since = body.Since
		}
		if body.Query != "" {
			req.Query = body.Query
		}
		if body.Label != "" {
			req.Label = body.Label
		}
		if body.DryRun != nil {
			req.DryRun = body.DryRun
		}
	}

	return req, nil
}

// handleFetchEmails runs a processing pass over the mailbox and returns
// the run summary.
func (s *Server) handleFetchEmails(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Tokens.HasToken(s.cfg.Account) {
		writeError(w, http.StatusUnauthorized, "not authenticated, visit /authorize to connect a Google account")
		return
	}

	req, err := parseFetchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings := s.cfg.Settings.Get()
	opts := pipeline.Options{
		Provider: req.Provider,
		Max:      int64(req.Max),
		DryRun:   settings.DryRun,
		Query: gmail.QueryOptions{
			Raw:        req.Query,
			Label:      req.Label,
			Window:     req.Window,
			SinceHours: req.SinceHours,
		},
	}
	if opts.Provider == "" {
		opts.Provider = settings.Provider
	}
	if opts.Provider == "" {
		opts.Provider = "google_tasks"
	}
	if opts.Max == 0 && settings.Max > 0 {
		opts.Max = int64(settings.Max)
	}
	if opts.Query.Window == "" && opts.Query.Raw == "" && req.SinceHours == 0 && req.Since == "" {
		opts.Query.Window = settings.Window
	}
	if req.DryRun != nil {
		opts.DryRun = *req.DryRun
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since %q, expected RFC3339", req.Since))
			return
		}
		opts.Query.Since = since
	}

	processor, err := s.cfg.NewProcessor(r.Context())
	if err != nil {
		s.logger.Error("failed to build processor", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to initialize processing pipeline")
		return
	}

	result, err := processor.Run(r.Context(), opts)
	if err != nil {
		var unknown *task.UnknownProviderError
		if errors.As(err, &unknown) {
			writeError(w, http.StatusBadRequest, unknown.Error())
			return
		}
		s.logger.Error("processing run failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListTasks returns the task history, newest first.
func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.cfg.History.Tasks()
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// handleDeleteTask removes a task from the history by its record id or
// provider task id.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.cfg.History.DeleteTask(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("task %s not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// handleListEvents returns the calendar event history, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	events := s.cfg.History.Events()
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
	})
}

// handleGetSettings returns the stored fetch defaults.
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Settings.Get())
}

// handlePutSettings replaces the stored fetch defaults.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings store.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if settings.Max < 0 {
		writeError(w, http.StatusBadRequest, "max must not be negative")
		return
	}
	if err := s.cfg.Settings.Put(settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleAuthStatus reports whether a Google token is present.
func (s *Server) handleAuthStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": s.cfg.Tokens.HasToken(s.cfg.Account),
		"account":       s.cfg.Account,
	})
}

// handleAuthorize redirects the browser to the Google consent page. A
// random state value is round-tripped through a short-lived cookie and
// verified on callback.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.cfg.OAuth.AuthCodeURL(state), http.StatusFound)
}

// handleOAuthCallback completes the OAuth flow: it verifies the state,
// exchanges the authorization code, and stores the token.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errMsg := q.Get("error"); errMsg != "" {
		s.metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("authorization denied: %s", errMsg))
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
		s.metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	// Consume the state cookie
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	if _, err := s.cfg.OAuth.Exchange(r.Context(), s.cfg.Tokens, s.cfg.Account, code); err != nil {
		s.metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
		s.logger.Error("token exchange failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to complete authentication")
		return
	}

	s.metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultSuccess)
	s.logger.Info("account authenticated", logging.Account(s.cfg.Account))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "authenticated",
		"account": s.cfg.Account,
	})
}

// handleLogout deletes the stored token for the account.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Tokens.DeleteToken(s.cfg.Account); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("account logged out", logging.Account(s.cfg.Account))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
