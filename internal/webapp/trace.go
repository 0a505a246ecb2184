package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"google.golang.org/adk/session"

	"github.com/soyeahso/orchestrator/internal/hooks"
	"github.com/soyeahso/orchestrator/internal/store"
)

// recordTrace is the event_emitted hook that persists events for /debug/trace.
func (a *App) recordTrace(ctx context.Context, p hooks.Payload) error {
	ev, ok := p.Data["event"].(*session.Event)
	if !ok || ev == nil {
		return fmt.Errorf("event_emitted payload has no event")
	}

	raw, err := json.Marshal(toAPIEvent(ev))
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	tr := store.EventTrace{
		EventID:      ev.ID,
		InvocationID: ev.InvocationID,
		SessionID:    p.String("session"),
		AppName:      p.String("app"),
		UserID:       p.String("user"),
		Author:       ev.Author,
		Branch:       ev.Branch,
		Text:         eventText(ev.Content),
		Partial:      ev.Partial,
		ErrorCode:    ev.ErrorCode,
		ErrorMessage: ev.ErrorMessage,
		Raw:          raw,
		CreatedAt:    ev.Timestamp,
	}
	if u := ev.UsageMetadata; u != nil {
		tr.PromptTokens = int(u.PromptTokenCount)
		tr.OutputTokens = int(u.CandidatesTokenCount)
	}
	return a.traces.Record(context.WithoutCancel(ctx), tr)
}

func (a *App) tracesEnabled(w http.ResponseWriter) bool {
	if a.traces == nil {
		writeError(w, http.StatusNotFound, "tracing is disabled")
		return false
	}
	return true
}

func (a *App) handleTraceEvent(w http.ResponseWriter, r *http.Request) {
	if !a.tracesEnabled(w) {
		return
	}
	id := r.PathValue("event_id")
	tr, err := a.traces.ByEventID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "trace not found: "+id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (a *App) handleTraceSession(w http.ResponseWriter, r *http.Request) {
	if !a.tracesEnabled(w) {
		return
	}
	q := r.URL.Query()
	traces, err := a.traces.BySession(r.Context(), store.SessionKey{
		AppName:   q.Get("app"),
		UserID:    q.Get("user"),
		SessionID: r.PathValue("session_id"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if traces == nil {
		traces = []store.EventTrace{}
	}
	writeJSON(w, http.StatusOK, traces)
}

func (a *App) handleTraceSearch(w http.ResponseWriter, r *http.Request) {
	if !a.tracesEnabled(w) {
		return
	}
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	traces, err := a.traces.Search(r.Context(), q.Get("app"), query, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if traces == nil {
		traces = []store.EventTrace{}
	}
	writeJSON(w, http.StatusOK, traces)
}
