// Package session holds the script session record and its state machine. A
// session keeps the live variable graph of the last successful run alive and
// mutable for interactive inspection, and enforces single-writer access
// across run, cancel and evaluate operations.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/viant/scriptlab/internal/clock"
	"github.com/viant/scriptlab/model"
	"github.com/viant/scriptlab/service/engine"
)

var (
	// ErrAnotherScriptExecuting rejects a run request arriving while one is
	// already in flight. The session state is left unchanged.
	ErrAnotherScriptExecuting = errors.New("another script is executing")

	// ErrScriptNotAvailable rejects an evaluation against a session that has
	// no live globals, i.e. whose status is not completed.
	ErrScriptNotAvailable = errors.New("script not available")
)

// Session is a persistent, identifier-keyed execution context. All mutable
// fields are guarded by mu; the status field is the single authoritative
// liveness indicator consulted by every component.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.RWMutex
	updatedAt   time.Time
	status      model.Status
	references  []string
	globals     []engine.NamedValue
	runtime     *engine.Runtime
	console     []string
	runID       string
	cancel      *Cancellation
	fault       *model.Fault
	diagnostics []*model.ErrorInfo
}

// New creates a session in the unknown status.
func New(id string) *Session {
	now := clock.Now()
	return &Session{ID: id, CreatedAt: now, updatedAt: now, status: model.StatusUnknown}
}

// Status returns the current session status.
func (s *Session) Status() model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// UpdatedAt returns the time of the last state transition.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// RunID returns the identifier of the current or most recent run.
func (s *Session) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// References returns the session's accumulated reference set.
func (s *Session) References() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.references...)
}

// AddReferences appends references not yet present. The set is append-only
// across runs of the same session.
func (s *Session) AddReferences(references ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
outer:
	for _, candidate := range references {
		for _, existing := range s.references {
			if existing == candidate {
				continue outer
			}
		}
		s.references = append(s.references, candidate)
	}
}

// Console returns a copy of the console lines emitted by the current run.
func (s *Session) Console() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.console...)
}

// AppendConsole records one console line as user code emits it, so output is
// observable while the run is still in flight.
func (s *Session) AppendConsole(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.console = append(s.console, line)
}

// Globals returns the top-level bindings of the last successful run.
func (s *Session) Globals() []engine.NamedValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]engine.NamedValue(nil), s.globals...)
}

// Lookup returns a top-level binding by name.
func (s *Session) Lookup(name string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, binding := range s.globals {
		if binding.Name == name {
			return binding.Value, true
		}
	}
	return nil, false
}

// CancelHandle returns the live cancellation handle, or nil when no run is
// in flight.
func (s *Session) CancelHandle() *Cancellation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancel
}

// LastFault returns structured detail of the most recent runtime fault.
func (s *Session) LastFault() *model.Fault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fault
}

// LastDiagnostics returns the compile diagnostics of the most recent failed
// compilation.
func (s *Session) LastDiagnostics() []*model.ErrorInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.ErrorInfo(nil), s.diagnostics...)
}

// Begin atomically accepts a new run, transitioning to prepareToRun. The
// request is rejected with ErrAnotherScriptExecuting when a run is already
// in flight; the prior globals, console and status stay untouched in that
// case. On acceptance the console buffer and the last error detail are
// cleared for the new attempt.
func (s *Session) Begin(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.InFlight() {
		return ErrAnotherScriptExecuting
	}
	s.status = model.StatusPrepareToRun
	s.runID = runID
	s.console = nil
	s.fault = nil
	s.diagnostics = nil
	s.updatedAt = clock.Now()
	return nil
}

// MarkRunning attaches the cancellation handle for the freshly started
// worker and transitions prepareToRun to running. The handle is present if
// and only if the status denotes an in-flight execution.
func (s *Session) MarkRunning(cancel *Cancellation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.StatusPrepareToRun {
		return
	}
	s.status = model.StatusRunning
	s.cancel = cancel
	s.updatedAt = clock.Now()
}

// CompileFailed records compile diagnostics and transitions to
// compiledWithErrors. No worker was started; globals from any prior run are
// preserved untouched.
func (s *Session) CompileFailed(diagnostics []*model.ErrorInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.StatusPrepareToRun {
		return
	}
	s.status = model.StatusCompiledWithErrors
	s.diagnostics = diagnostics
	s.updatedAt = clock.Now()
}

// Complete commits a successful run: the globals graph is replaced wholesale
// and the runtime that produced it stays attached for follow-up expression
// evaluation.
func (s *Session) Complete(runtime *engine.Runtime, globals []engine.NamedValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.StatusRunning {
		return
	}
	s.status = model.StatusCompleted
	s.runtime = runtime
	s.globals = globals
	s.cancel = nil
	s.updatedAt = clock.Now()
}

// Fail records an unhandled fault. Globals are left as they were before this
// run; partial console output is preserved.
func (s *Session) Fail(fault *model.Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.StatusRunning {
		return
	}
	s.status = model.StatusThrowedException
	s.fault = fault
	s.cancel = nil
	s.updatedAt = clock.Now()
}

// MarkCancelled concludes a run stopped by explicit cancellation. Prior
// globals stay intact; cancellation is not treated as an error.
func (s *Session) MarkCancelled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.StatusRunning {
		return
	}
	s.status = model.StatusCancelled
	s.cancel = nil
	s.updatedAt = clock.Now()
}

// WithRuntime runs fn with exclusive access to the live engine runtime of a
// completed session. Evaluation is thereby serialized with every other
// mutator of the same session and can never race a live run.
func (s *Session) WithRuntime(fn func(runtime *engine.Runtime) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.StatusCompleted || s.runtime == nil {
		return ErrScriptNotAvailable
	}
	return fn(s.runtime)
}

// Snapshot is a consistent view of the session's reportable state taken
// under the same exclusion discipline as mutations.
type Snapshot struct {
	Status      model.Status
	RunID       string
	Console     []string
	References  []string
	Fault       *model.Fault
	Diagnostics []*model.ErrorInfo
}

// Snapshot captures the session's current reportable state atomically.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Status:      s.status,
		RunID:       s.runID,
		Console:     append([]string(nil), s.console...),
		References:  append([]string(nil), s.references...),
		Fault:       s.fault,
		Diagnostics: append([]*model.ErrorInfo(nil), s.diagnostics...),
	}
}
