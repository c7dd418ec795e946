package model

// Status represents the lifecycle state of a script session. A session
// stores every status except StatusAnotherScriptExecuting, which is a
// response-only rejection reported to a caller that attempted to start a
// run while one was already in flight.
type Status string

const (
	StatusUnknown                Status = "unknown"
	StatusPrepareToRun           Status = "prepareToRun"
	StatusRunning                Status = "running"
	StatusCompleted              Status = "completed"
	StatusCancelled              Status = "cancelled"
	StatusCompiledWithErrors     Status = "compiledWithErrors"
	StatusThrowedException       Status = "throwedException"
	StatusAnotherScriptExecuting Status = "anotherScriptExecuting"
)

// InFlight reports whether the status denotes an accepted or executing run.
func (s Status) InFlight() bool {
	return s == StatusPrepareToRun || s == StatusRunning
}

// Terminal reports whether the status concludes a run cycle. Terminal
// statuses are stable until superseded by the next accepted run.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusCompiledWithErrors, StatusThrowedException:
		return true
	}
	return false
}

// Storable reports whether a session may hold this status.
func (s Status) Storable() bool {
	return s != StatusAnotherScriptExecuting
}
