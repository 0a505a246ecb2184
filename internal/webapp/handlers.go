package webapp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/session"

	"github.com/soyeahso/orchestrator/internal/store"
	"github.com/soyeahso/orchestrator/internal/version"
)

const maxBodyBytes = 4 * 1024 * 1024

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Apps   int    `json:"apps"`
	Uptime string `json:"uptime"`
	URL    string `json:"url,omitempty"`
	Traces string `json:"traces,omitempty"` // "ok" | "unavailable"; absent when tracing is off
}

// VersionResponse is returned by GET /version.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched
// when allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("malformed request body: " + err.Error())
	}
	return nil
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Apps:   a.catalog.Len(),
		Uptime: time.Since(a.startedAt).Round(time.Second).String(),
		URL:    a.opts.URL(),
	}
	code := http.StatusOK
	if a.traces != nil {
		resp.Traces = "ok"
		if err := a.traces.Ping(r.Context()); err != nil {
			a.log.Warn().Err(err).Msg("trace store unreachable")
			resp.Status = "degraded"
			resp.Traces = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version: version.Version,
		Commit:  version.Commit,
		Date:    version.Date,
		Go:      runtime.Version(),
	})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func (a *App) handleListApps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.catalog.Apps())
}

// knownApp writes a 404 and returns false when app is not hosted.
func (a *App) knownApp(w http.ResponseWriter, app string) bool {
	if _, ok := a.runners[app]; !ok {
		writeError(w, http.StatusNotFound, "app not found: "+app)
		return false
	}
	return true
}

func (a *App) getSession(r *http.Request, app, user, id string) (session.Session, bool) {
	resp, err := a.sessions.Get(r.Context(), &session.GetRequest{AppName: app, UserID: user, SessionID: id})
	if err != nil || resp == nil || resp.Session == nil {
		return nil, false
	}
	return resp.Session, true
}

func (a *App) handleListSessions(w http.ResponseWriter, r *http.Request) {
	app, user := r.PathValue("app"), r.PathValue("user")
	if !a.knownApp(w, app) {
		return
	}

	resp, err := a.sessions.List(r.Context(), &session.ListRequest{AppName: app, UserID: user})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]apiSession, 0, len(resp.Sessions))
	for _, s := range resp.Sessions {
		out = append(out, toAPISession(s))
	}
	writeJSON(w, http.StatusOK, out)
}

type createSessionRequest struct {
	SessionID string         `json:"sessionId,omitempty"`
	State     map[string]any `json:"state,omitempty"`
}

// handleCreateSession serves both POST .../sessions and POST .../sessions/{session}.
func (a *App) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	app, user := r.PathValue("app"), r.PathValue("user")
	if !a.knownApp(w, app) {
		return
	}

	var body createSessionRequest
	if err := decodeBody(r, &body, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("session")
	if id == "" {
		id = body.SessionID
	}
	if id == "" {
		id = uuid.New().String()
	} else if _, exists := a.getSession(r, app, user, id); exists {
		writeError(w, http.StatusBadRequest, "session already exists: "+id)
		return
	}

	resp, err := a.sessions.Create(r.Context(), &session.CreateRequest{
		AppName:   app,
		UserID:    user,
		SessionID: id,
		State:     body.State,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.log.Debug().Str("app", app).Str("user", user).Str("session", id).Msg("session created")
	writeJSON(w, http.StatusOK, toAPISession(resp.Session))
}

func (a *App) handleGetSession(w http.ResponseWriter, r *http.Request) {
	app, user, id := r.PathValue("app"), r.PathValue("user"), r.PathValue("session")
	if !a.knownApp(w, app) {
		return
	}
	s, ok := a.getSession(r, app, user, id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, toAPISession(s))
}

func (a *App) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	app, user, id := r.PathValue("app"), r.PathValue("user"), r.PathValue("session")
	if !a.knownApp(w, app) {
		return
	}
	if _, ok := a.getSession(r, app, user, id); !ok {
		writeError(w, http.StatusNotFound, "session not found: "+id)
		return
	}

	if err := a.sessions.Delete(r.Context(), &session.DeleteRequest{AppName: app, UserID: user, SessionID: id}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a.traces != nil {
		if _, err := a.traces.DeleteSession(r.Context(), store.SessionKey{AppName: app, UserID: user, SessionID: id}); err != nil {
			a.log.Warn().Err(err).Str("session", id).Msg("failed to delete session traces")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
