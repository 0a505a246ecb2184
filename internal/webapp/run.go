package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/soyeahso/orchestrator/internal/hooks"
)

// RunRequest is the body of POST /run and POST /run_sse.
type RunRequest struct {
	AppName    string         `json:"appName"`
	UserID     string         `json:"userId"`
	SessionID  string         `json:"sessionId"`
	NewMessage *genai.Content `json:"newMessage"`
	Streaming  bool           `json:"streaming,omitempty"`
}

func (req *RunRequest) validate() error {
	switch {
	case req.AppName == "":
		return errors.New("appName is required")
	case req.UserID == "":
		return errors.New("userId is required")
	case req.SessionID == "":
		return errors.New("sessionId is required")
	case req.NewMessage == nil || len(req.NewMessage.Parts) == 0:
		return errors.New("newMessage must have at least one part")
	}
	if req.NewMessage.Role == "" {
		req.NewMessage.Role = genai.RoleUser
	}
	return nil
}

// readRunRequest decodes and checks a run request, writing the error
// response itself when it returns false.
func (a *App) readRunRequest(w http.ResponseWriter, r *http.Request) (*RunRequest, bool) {
	var req RunRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if !a.knownApp(w, req.AppName) {
		return nil, false
	}
	if _, ok := a.getSession(r, req.AppName, req.UserID, req.SessionID); !ok {
		writeError(w, http.StatusNotFound, "session not found: "+req.SessionID)
		return nil, false
	}
	return &req, true
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := a.readRunRequest(w, r)
	if !ok {
		return
	}

	events := []apiEvent{}
	err := a.runAgent(r.Context(), req, agent.StreamingModeNone, func(ev *session.Event) error {
		events = append(events, toAPIEvent(ev))
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *App) handleRunSSE(w http.ResponseWriter, r *http.Request) {
	req, ok := a.readRunRequest(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	mode := agent.StreamingModeNone
	if req.Streaming {
		mode = agent.StreamingModeSSE
	}

	err := a.runAgent(r.Context(), req, mode, func(ev *session.Event) error {
		return writeSSE(w, rc, toAPIEvent(ev))
	})
	if err != nil && r.Context().Err() == nil {
		// Headers are out; report the failure in-band.
		writeSSE(w, rc, errorResponse{Error: err.Error()})
	}
}

func writeSSE(w http.ResponseWriter, rc *http.ResponseController, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// runAgent runs one turn of app's agent and hands every event to emit. A
// non-nil error from emit stops the run. The lifecycle hooks fire around
// the run and for each complete event.
func (a *App) runAgent(ctx context.Context, req *RunRequest, mode agent.StreamingMode, emit func(*session.Event) error) error {
	r := a.runners[req.AppName]
	base := map[string]any{
		"app":     req.AppName,
		"user":    req.UserID,
		"session": req.SessionID,
	}
	a.hooks.Emit(ctx, hooks.EventBeforeAgentRun, base)

	start := time.Now()
	count := 0
	var runErr error
	for ev, err := range r.Run(ctx, req.UserID, req.SessionID, req.NewMessage, agent.RunConfig{StreamingMode: mode}) {
		if err != nil {
			runErr = err
			break
		}
		if ev == nil {
			continue
		}
		count++
		a.metrics.agentEvents.WithLabelValues(req.AppName, ev.Author).Inc()
		if !ev.Partial {
			a.hooks.Emit(ctx, hooks.EventEventEmitted, map[string]any{
				"app":     req.AppName,
				"user":    req.UserID,
				"session": req.SessionID,
				"event":   ev,
			})
		}
		if err := emit(ev); err != nil {
			runErr = fmt.Errorf("writing event: %w", err)
			break
		}
	}
	elapsed := time.Since(start)
	a.metrics.observeRun(req.AppName, runErr, elapsed)

	after := map[string]any{
		"app":      req.AppName,
		"user":     req.UserID,
		"session":  req.SessionID,
		"events":   count,
		"duration": elapsed,
	}
	if runErr != nil {
		after["error"] = runErr.Error()
		a.log.Warn().Err(runErr).Str("app", req.AppName).Str("session", req.SessionID).Msg("agent run failed")
	} else {
		a.log.Debug().Str("app", req.AppName).Str("session", req.SessionID).Int("events", count).Dur("duration", elapsed).Msg("agent run complete")
	}
	a.hooks.Emit(context.WithoutCancel(ctx), hooks.EventAfterAgentRun, after)
	return runErr
}
