package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a trace does not exist.
var ErrNotFound = errors.New("not found")

// Fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// EventTrace is the recorded form of one agent event.
type EventTrace struct {
	EventID      string          `json:"eventId"`
	InvocationID string          `json:"invocationId,omitempty"`
	SessionID    string          `json:"sessionId"`
	AppName      string          `json:"appName"`
	UserID       string          `json:"userId"`
	Author       string          `json:"author,omitempty"`
	Branch       string          `json:"branch,omitempty"`
	Text         string          `json:"text,omitempty"`
	Partial      bool            `json:"partial,omitempty"`
	ErrorCode    string          `json:"errorCode,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	PromptTokens int             `json:"promptTokens,omitempty"`
	OutputTokens int             `json:"outputTokens,omitempty"`
	Raw          json.RawMessage `json:"event,omitempty"` // full event as served to clients
	CreatedAt    time.Time       `json:"createdAt"`
	Rank         float64         `json:"rank,omitempty"` // search results only
}

// TraceStore records agent events and answers the debug trace queries.
type TraceStore struct {
	db *DB
}

// NewTraceStore creates a trace store using db.
func NewTraceStore(db *DB) *TraceStore {
	return &TraceStore{db: db}
}

const traceColumns = `t.event_id, t.invocation_id, t.session_id, t.app_name, t.user_id, t.author, t.branch,
	t.text, t.partial, t.error_code, t.error_message, t.prompt_tokens, t.output_tokens, t.raw, t.created_at`

// Record inserts tr, replacing an earlier trace with the same event id.
func (s *TraceStore) Record(ctx context.Context, tr EventTrace) error {
	if tr.EventID == "" {
		return errors.New("trace has no event id")
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now()
	}

	var raw sql.NullString
	if len(tr.Raw) > 0 {
		raw = sql.NullString{String: string(tr.Raw), Valid: true}
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO event_traces (event_id, invocation_id, session_id, app_name, user_id, author, branch,
		                           text, partial, error_code, error_message, prompt_tokens, output_tokens, raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id) DO UPDATE SET
		   text = excluded.text,
		   partial = excluded.partial,
		   error_code = excluded.error_code,
		   error_message = excluded.error_message,
		   prompt_tokens = excluded.prompt_tokens,
		   output_tokens = excluded.output_tokens,
		   raw = excluded.raw`,
		tr.EventID, tr.InvocationID, tr.SessionID, tr.AppName, tr.UserID, tr.Author, tr.Branch,
		tr.Text, tr.Partial, tr.ErrorCode, tr.ErrorMessage, tr.PromptTokens, tr.OutputTokens, raw,
		tr.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording trace %s: %w", tr.EventID, err)
	}
	return nil
}

// Ping checks that the database behind the store is reachable.
func (s *TraceStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ByEventID returns the trace for one event, or ErrNotFound.
func (s *TraceStore) ByEventID(ctx context.Context, eventID string) (*EventTrace, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+traceColumns+`, 0.0 FROM event_traces t WHERE t.event_id = ?`, eventID)
	tr, err := scanTrace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// SessionKey addresses a session. Session ids are only unique within an app
// and user.
type SessionKey struct {
	AppName   string
	UserID    string
	SessionID string
}

// BySession returns every trace of a session, oldest first. An empty AppName
// or UserID matches any app or user.
func (s *TraceStore) BySession(ctx context.Context, key SessionKey) ([]EventTrace, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT `+traceColumns+`, 0.0 FROM event_traces t
		 WHERE t.session_id = ?
		   AND (? = '' OR t.app_name = ?)
		   AND (? = '' OR t.user_id = ?)
		 ORDER BY t.created_at, t.rowid`,
		key.SessionID, key.AppName, key.AppName, key.UserID, key.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTraces(rows)
}

// Search runs an FTS5 query over trace text within an app, best match first.
// An empty app searches every app. Limit of 0 defaults to 20.
func (s *TraceStore) Search(ctx context.Context, appName, query string, limit int) ([]EventTrace, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT `+traceColumns+`, rank
		 FROM event_traces_fts
		 JOIN event_traces t ON t.rowid = event_traces_fts.rowid
		 WHERE event_traces_fts MATCH ?
		   AND (? = '' OR t.app_name = ?)
		 ORDER BY rank
		 LIMIT ?`,
		query, appName, appName, limit)
	if err != nil {
		return nil, fmt.Errorf("searching traces: %w", err)
	}
	defer rows.Close()
	return scanTraces(rows)
}

// DeleteSession removes every trace of one user's session and returns how
// many went. All key fields are required.
func (s *TraceStore) DeleteSession(ctx context.Context, key SessionKey) (int64, error) {
	if key.AppName == "" || key.UserID == "" || key.SessionID == "" {
		return 0, errors.New("deleting traces needs app, user and session")
	}
	res, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM event_traces WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting traces of session %s: %w", key.SessionID, err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrace(row scanner) (*EventTrace, error) {
	var (
		tr        EventTrace
		raw       sql.NullString
		createdAt string
	)
	if err := row.Scan(
		&tr.EventID, &tr.InvocationID, &tr.SessionID, &tr.AppName, &tr.UserID, &tr.Author, &tr.Branch,
		&tr.Text, &tr.Partial, &tr.ErrorCode, &tr.ErrorMessage, &tr.PromptTokens, &tr.OutputTokens,
		&raw, &createdAt, &tr.Rank,
	); err != nil {
		return nil, err
	}
	if raw.Valid {
		tr.Raw = json.RawMessage(raw.String)
	}
	tr.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &tr, nil
}

func scanTraces(rows *sql.Rows) ([]EventTrace, error) {
	var out []EventTrace
	for rows.Next() {
		tr, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tr)
	}
	return out, rows.Err()
}
