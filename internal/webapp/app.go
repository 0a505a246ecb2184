// Package webapp builds the HTTP application that hosts the agents: the REST
// and streaming API, the live websocket channel, debug traces, metrics and
// the bundled web UI.
package webapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"

	"github.com/soyeahso/orchestrator/internal/agentdef"
	"github.com/soyeahso/orchestrator/internal/hooks"
	"github.com/soyeahso/orchestrator/internal/logging"
	"github.com/soyeahso/orchestrator/internal/store"
)

// Options mirrors the knobs of the application factory.
type Options struct {
	AgentsDir    string   // where agent definitions are discovered
	AllowOrigins []string // CORS origins; "*" allows all
	Web          bool     // serve the bundled UI at /dev-ui/
	Host         string
	Port         int
	AccessLog    bool // log every request at info level
}

// URL returns the base URL the app is served on.
func (o Options) URL() string {
	return "http://" + net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Deps are the collaborators of an App. Only Models and Log are required
// unless Catalog carries prebuilt agents.
type Deps struct {
	Models   agentdef.ModelResolver
	Catalog  *agentdef.Catalog  // loaded from Options.AgentsDir when nil
	Sessions session.Service    // in-memory when nil
	Hooks    *hooks.Manager     // a private manager when nil
	Traces   *store.TraceStore  // nil disables /debug/trace
	Log      *logging.Logger
}

// App is the HTTP application. It is an http.Handler.
type App struct {
	opts     Options
	catalog  *agentdef.Catalog
	agents   map[string]agent.Agent
	runners  map[string]*runner.Runner
	sessions session.Service
	hooks    *hooks.Manager
	traces   *store.TraceStore
	metrics  *metrics
	upgrader websocket.Upgrader
	idleWait time.Duration // live read deadline between turns
	handler  http.Handler
	log      *logging.Logger

	startedAt time.Time
}

// New builds the application: it loads the agent catalog, builds one ADK
// runner per app and wires the routes and middleware.
func New(ctx context.Context, opts Options, deps Deps) (*App, error) {
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	log := deps.Log.Sub("webapp")

	cat := deps.Catalog
	if cat == nil {
		var err error
		cat, err = agentdef.LoadCatalog(opts.AgentsDir, deps.Log)
		if err != nil {
			return nil, err
		}
	}
	if deps.Models == nil {
		return nil, errors.New("webapp: no model resolver")
	}

	agents, err := agentdef.Build(ctx, cat, deps.Models, deps.Log)
	if err != nil {
		return nil, err
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.InMemoryService()
	}
	hm := deps.Hooks
	if hm == nil {
		hm = hooks.NewManager(deps.Log)
	}

	a := &App{
		opts:     opts,
		catalog:  cat,
		agents:   agents,
		runners:  make(map[string]*runner.Runner, len(agents)),
		sessions: sessions,
		hooks:    hm,
		traces:   deps.Traces,
		metrics:  newMetrics(),
		idleWait: livePongWait,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(opts.AllowOrigins),
		},
		startedAt: time.Now(),
	}

	for app, ag := range agents {
		r, err := runner.New(runner.Config{
			AppName:        app,
			Agent:          ag,
			SessionService: sessions,
		})
		if err != nil {
			return nil, fmt.Errorf("creating runner for %s: %w", app, err)
		}
		a.runners[app] = r
	}

	if a.traces != nil {
		hm.On(hooks.EventEventEmitted, "trace-recorder", a.recordTrace)
	}

	mux := http.NewServeMux()
	a.registerRoutes(mux)
	a.handler = withMiddleware(mux, deps.Log.Sub("http"), opts.AllowOrigins, a.metrics, opts.AccessLog)

	log.Info().
		Strs("apps", cat.Apps()).
		Str("agentsDir", opts.AgentsDir).
		Bool("web", opts.Web).
		Bool("traces", a.traces != nil).
		Msg("web application ready")
	return a, nil
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// checkWebSocketOrigin validates websocket Origin headers against the
// allowed list. Requests without an Origin come from non-browser clients.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
