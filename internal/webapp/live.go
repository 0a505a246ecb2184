package webapp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const (
	liveReadLimit    = 4 * 1024 * 1024
	livePongWait     = 60 * time.Second
	livePingInterval = 25 * time.Second
	liveWriteWait    = 10 * time.Second
)

// liveRequest is a client frame on /run_live. Text is shorthand for a
// single-part user message.
type liveRequest struct {
	Text    string         `json:"text,omitempty"`
	Content *genai.Content `json:"content,omitempty"`
}

// liveDone closes a turn.
type liveDone struct {
	TurnComplete bool `json:"turnComplete"`
}

// liveConn serializes writes to one websocket.
type liveConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *liveConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *liveConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
}

// handleRunLive runs agent turns over a websocket. Each client frame starts
// a turn; the server streams the turn's events and then {"turnComplete": true}.
func (a *App) handleRunLive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	app, user, sid := q.Get("app_name"), q.Get("user_id"), q.Get("session_id")
	if app == "" || user == "" || sid == "" {
		writeError(w, http.StatusBadRequest, "app_name, user_id and session_id are required")
		return
	}
	if !a.knownApp(w, app) {
		return
	}
	if _, ok := a.getSession(r, app, user, sid); !ok {
		writeError(w, http.StatusNotFound, "session not found: "+sid)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(liveReadLimit)

	a.metrics.liveConnections.Inc()
	defer a.metrics.liveConnections.Dec()

	lc := &liveConn{conn: conn}
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(a.idleWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(a.idleWait))
	})
	go a.keepAlive(ctx, lc)

	log := a.log.With("session", sid)
	log.Debug().Str("app", app).Str("remote", r.RemoteAddr).Msg("live connection opened")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Msg("live connection closed by client")
			} else {
				log.Debug().Err(err).Msg("live read ended")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(a.idleWait))

		var in liveRequest
		if err := json.Unmarshal(msg, &in); err != nil {
			if lc.writeJSON(errorResponse{Error: "malformed message: " + err.Error()}) != nil {
				return
			}
			continue
		}
		content := in.Content
		if content == nil && in.Text != "" {
			content = genai.NewContentFromText(in.Text, genai.RoleUser)
		}

		req := &RunRequest{AppName: app, UserID: user, SessionID: sid, NewMessage: content, Streaming: true}
		if err := req.validate(); err != nil {
			if lc.writeJSON(errorResponse{Error: err.Error()}) != nil {
				return
			}
			continue
		}

		// Nothing reads during a turn, so pongs cannot extend the deadline.
		conn.SetReadDeadline(time.Time{})
		runErr := a.runAgent(ctx, req, agent.StreamingModeSSE, func(ev *session.Event) error {
			return lc.writeJSON(toAPIEvent(ev))
		})
		if runErr != nil {
			if lc.writeJSON(errorResponse{Error: runErr.Error()}) != nil {
				return
			}
		}
		if lc.writeJSON(liveDone{TurnComplete: true}) != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(a.idleWait))
	}
}

func (a *App) keepAlive(ctx context.Context, lc *liveConn) {
	t := time.NewTicker(livePingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := lc.ping(); err != nil {
				return
			}
		}
	}
}
