package session

import "github.com/viant/scriptlab/model"

// StatusEvent is published to the notification sink on every state machine
// transition of a session.
type StatusEvent struct {
	SessionID string             `json:"sessionId"`
	RunID     string             `json:"runId,omitempty"`
	Status    model.Status       `json:"status"`
	Errors    []*model.ErrorInfo `json:"errors,omitempty"`
	Fault     *model.Fault       `json:"fault,omitempty"`
}

// ConsoleEvent is published per console line as user code emits it, not
// batched at run end.
type ConsoleEvent struct {
	SessionID string `json:"sessionId"`
	RunID     string `json:"runId,omitempty"`
	Line      string `json:"line"`
}
