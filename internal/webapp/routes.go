package webapp

import "net/http"

// registerRoutes sets up all HTTP routes on the mux.
func (a *App) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /version", a.handleVersion)
	mux.Handle("GET /metrics", a.metrics.handler())

	mux.HandleFunc("GET /list-apps", a.handleListApps)

	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions", a.handleListSessions)
	mux.HandleFunc("POST /apps/{app}/users/{user}/sessions", a.handleCreateSession)
	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions/{session}", a.handleGetSession)
	mux.HandleFunc("POST /apps/{app}/users/{user}/sessions/{session}", a.handleCreateSession)
	mux.HandleFunc("DELETE /apps/{app}/users/{user}/sessions/{session}", a.handleDeleteSession)

	mux.HandleFunc("POST /run", a.handleRun)
	mux.HandleFunc("POST /run_sse", a.handleRunSSE)
	mux.HandleFunc("GET /run_live", a.handleRunLive)

	mux.HandleFunc("GET /debug/trace/{event_id}", a.handleTraceEvent)
	mux.HandleFunc("GET /debug/trace/session/{session_id}", a.handleTraceSession)
	mux.HandleFunc("GET /debug/search", a.handleTraceSearch)

	if a.opts.Web {
		a.registerUI(mux)
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}
