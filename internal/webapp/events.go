package webapp

import (
	"strings"
	"time"

	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

// apiEvent is the JSON form of an agent event served to clients.
type apiEvent struct {
	ID                 string                                      `json:"id"`
	InvocationID       string                                      `json:"invocationId"`
	Author             string                                      `json:"author"`
	Branch             string                                      `json:"branch,omitempty"`
	Timestamp          float64                                     `json:"timestamp"`
	Content            *genai.Content                              `json:"content,omitempty"`
	Partial            bool                                        `json:"partial,omitempty"`
	TurnComplete       bool                                        `json:"turnComplete,omitempty"`
	Interrupted        bool                                        `json:"interrupted,omitempty"`
	ErrorCode          string                                      `json:"errorCode,omitempty"`
	ErrorMessage       string                                      `json:"errorMessage,omitempty"`
	UsageMetadata      *genai.GenerateContentResponseUsageMetadata `json:"usageMetadata,omitempty"`
	GroundingMetadata  *genai.GroundingMetadata                    `json:"groundingMetadata,omitempty"`
	LongRunningToolIDs []string                                    `json:"longRunningToolIds,omitempty"`
	Actions            apiActions                                  `json:"actions"`
}

type apiActions struct {
	StateDelta      map[string]any `json:"stateDelta,omitempty"`
	TransferToAgent string         `json:"transferToAgent,omitempty"`
	Escalate        bool           `json:"escalate,omitempty"`
}

// apiSession is the JSON form of a session.
type apiSession struct {
	ID             string         `json:"id"`
	AppName        string         `json:"appName"`
	UserID         string         `json:"userId"`
	State          map[string]any `json:"state"`
	Events         []apiEvent     `json:"events"`
	LastUpdateTime float64        `json:"lastUpdateTime"`
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func toAPIEvent(e *session.Event) apiEvent {
	return apiEvent{
		ID:                 e.ID,
		InvocationID:       e.InvocationID,
		Author:             e.Author,
		Branch:             e.Branch,
		Timestamp:          unixSeconds(e.Timestamp),
		Content:            e.Content,
		Partial:            e.Partial,
		TurnComplete:       e.TurnComplete,
		Interrupted:        e.Interrupted,
		ErrorCode:          e.ErrorCode,
		ErrorMessage:       e.ErrorMessage,
		UsageMetadata:      e.UsageMetadata,
		GroundingMetadata:  e.GroundingMetadata,
		LongRunningToolIDs: e.LongRunningToolIDs,
		Actions: apiActions{
			StateDelta:      e.Actions.StateDelta,
			TransferToAgent: e.Actions.TransferToAgent,
			Escalate:        e.Actions.Escalate,
		},
	}
}

func toAPISession(s session.Session) apiSession {
	out := apiSession{
		ID:             s.ID(),
		AppName:        s.AppName(),
		UserID:         s.UserID(),
		State:          map[string]any{},
		Events:         []apiEvent{},
		LastUpdateTime: unixSeconds(s.LastUpdateTime()),
	}
	for k, v := range s.State().All() {
		out.State[k] = v
	}
	for e := range s.Events().All() {
		out.Events = append(out.Events, toAPIEvent(e))
	}
	return out
}

// eventText joins the text parts of an event, skipping model thoughts.
func eventText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var parts []string
	for _, p := range c.Parts {
		if p != nil && p.Text != "" && !p.Thought {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "")
}
