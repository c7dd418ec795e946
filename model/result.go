package model

// ExecutionResult is the uniform outcome envelope for every session
// operation. An absent session, a contention rejection and a genuine crash
// are all distinguishable by Status and the detail fields; there is no
// silent-failure path.
type ExecutionResult struct {
	SessionID  string          `json:"sessionId"`
	RunID      string          `json:"runId,omitempty"`
	Status     Status          `json:"status"`
	Variables  []*VariableInfo `json:"variables,omitempty"`
	Errors     []*ErrorInfo    `json:"errors,omitempty"`
	Fault      *Fault          `json:"fault,omitempty"`
	Console    []string        `json:"console,omitempty"`
	References []string        `json:"references,omitempty"`
}

// HasErrors reports whether the result carries compile or evaluation
// diagnostics.
func (r *ExecutionResult) HasErrors() bool {
	return len(r.Errors) > 0
}
