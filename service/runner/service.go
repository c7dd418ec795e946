// Package runner compiles and executes scripts against their sessions. Each
// accepted run happens on a dedicated worker goroutine; the submitting caller
// gets an interim result immediately plus a wait handle for the final
// outcome. Cancellation is cooperative through the engine interrupt.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/viant/scriptlab/internal/idgen"
	"github.com/viant/scriptlab/model"
	"github.com/viant/scriptlab/runtime/session"
	"github.com/viant/scriptlab/service/dao"
	daosession "github.com/viant/scriptlab/service/dao/session"
	"github.com/viant/scriptlab/service/engine"
	"github.com/viant/scriptlab/service/event"
	"github.com/viant/scriptlab/service/inspector"
	"github.com/viant/scriptlab/service/module"
	"github.com/viant/scriptlab/tracing"
)

// DefaultCancelGracePeriod bounds how long Cancel waits for an interrupted
// worker to acknowledge before reporting the current state as-is.
const DefaultCancelGracePeriod = 2 * time.Second

// Config holds runner settings.
type Config struct {
	// CancelGracePeriodMs bounds, in milliseconds, how long Cancel waits for
	// an interrupted worker to acknowledge. Zero means the default.
	CancelGracePeriodMs int `json:"cancelGracePeriodMs,omitempty" yaml:"cancelGracePeriodMs,omitempty"`
}

// GracePeriod resolves the configured cancellation grace period.
func (c Config) GracePeriod() time.Duration {
	if c.CancelGracePeriodMs <= 0 {
		return DefaultCancelGracePeriod
	}
	return time.Duration(c.CancelGracePeriodMs) * time.Millisecond
}

// Source is one named auxiliary script unit.
type Source struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Input is a run request. Auxiliary sources execute before the main source
// in the order given, inside the same runtime. References accumulate on the
// session across runs.
type Input struct {
	SessionID  string    `json:"sessionId"`
	MainSource string    `json:"mainSource"`
	Auxiliary  []*Source `json:"auxiliary,omitempty"`
	References []string  `json:"references,omitempty"`
	ForceRun   bool      `json:"forceRun,omitempty"`
}

// Wait blocks until the run submitted alongside it reaches a terminal status,
// the timeout elapses (zero means no limit) or ctx is done. On timeout it
// returns the current, possibly still running, state.
type Wait func(ctx context.Context, timeout time.Duration) (*model.ExecutionResult, error)

// Service executes scripts against registered sessions.
type Service struct {
	grace     time.Duration
	registry  daosession.Service
	modules   *module.Service
	inspector *inspector.Service
	events    *event.Service
}

// New creates a runner. The event service is optional; a nil value disables
// notifications.
func New(registry daosession.Service, modules *module.Service, inspect *inspector.Service, events *event.Service, config Config) *Service {
	if inspect == nil {
		inspect = inspector.New(inspector.DefaultLimits())
	}
	if modules == nil {
		modules = module.New()
	}
	return &Service{
		grace:     config.GracePeriod(),
		registry:  registry,
		modules:   modules,
		inspector: inspect,
		events:    events,
	}
}

// Run submits a script for execution on the identified session, creating the
// session on first use. The returned result reflects the state at return
// time: running for an accepted run, compiledWithErrors for a rejected
// compilation, or anotherScriptExecuting for a contention rejection. A
// reference that cannot be resolved (blocked, unfetchable or failing to
// compile) is reported the same way as a compile failure: status
// compiledWithErrors with the resolution error as the single diagnostic.
// The returned Wait is non-nil only for an accepted run.
func (s *Service) Run(ctx context.Context, input *Input) (result *model.ExecutionResult, wait Wait, err error) {
	if input == nil || strings.TrimSpace(input.SessionID) == "" {
		return nil, nil, fmt.Errorf("sessionId was empty")
	}
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("runner.Run %s", input.SessionID), "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()

	sess, err := s.registry.GetOrCreate(ctx, input.SessionID)
	if err != nil {
		return nil, nil, err
	}
	runID := idgen.New()
	if beginErr := s.begin(ctx, sess, runID, input.ForceRun); beginErr != nil {
		ret := s.result(sess)
		ret.Status = model.StatusAnotherScriptExecuting
		ret.Errors = []*model.ErrorInfo{{Message: beginErr.Error()}}
		return ret, nil, nil
	}
	started := time.Now()
	s.publishStatus(ctx, sess, started)
	sess.AddReferences(input.References...)

	modules, programs, diagnostics, err := s.prepare(ctx, input)
	if err != nil {
		diagnostics = []*model.ErrorInfo{{Message: err.Error()}}
	}
	if len(diagnostics) > 0 {
		sess.CompileFailed(diagnostics)
		s.publishStatus(ctx, sess, started)
		return s.result(sess), nil, nil
	}

	rt := engine.NewRuntime(func(line string) {
		sess.AppendConsole(line)
		s.publishConsole(sess, line)
	})
	cancel := session.NewCancellation(func() {
		rt.Interrupt("script cancelled")
	})
	sess.MarkRunning(cancel)
	s.publishStatus(ctx, sess, started)

	done := make(chan struct{})
	go s.execute(sess, rt, modules, programs, cancel, started, done)

	wait = func(ctx context.Context, timeout time.Duration) (*model.ExecutionResult, error) {
		var expired <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}
		select {
		case <-done:
		case <-expired:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return s.result(sess), nil
	}
	return s.result(sess), wait, nil
}

// begin accepts the run or, on contention with forceRun set, cancels the
// in-flight run and retries once.
func (s *Service) begin(ctx context.Context, sess *session.Session, runID string, forceRun bool) error {
	err := sess.Begin(runID)
	if err == nil || !forceRun {
		return err
	}
	if _, cancelErr := s.Cancel(ctx, sess.ID); cancelErr != nil {
		return err
	}
	return sess.Begin(runID)
}

// prepare resolves references and compiles every source. Compile diagnostics
// of the main and auxiliary sources are combined; resolution problems are
// returned as an error.
func (s *Service) prepare(ctx context.Context, input *Input) ([]*module.Module, []*engine.Program, []*model.ErrorInfo, error) {
	modules, err := s.modules.Resolve(ctx, input.References)
	if err != nil {
		return nil, nil, nil, err
	}
	var programs []*engine.Program
	var diagnostics []*model.ErrorInfo
	for _, source := range input.Auxiliary {
		program, diags := engine.Compile(source.Name, source.Content)
		if len(diags) > 0 {
			diagnostics = append(diagnostics, diags...)
			continue
		}
		programs = append(programs, program)
	}
	program, diags := engine.Compile("main", input.MainSource)
	if len(diags) > 0 {
		diagnostics = append(diagnostics, diags...)
	}
	if len(diagnostics) > 0 {
		return nil, nil, diagnostics, nil
	}
	programs = append(programs, program)
	return modules, programs, nil, nil
}

// execute is the worker body: it loads modules, runs every program and
// records the terminal outcome on the session.
func (s *Service) execute(sess *session.Session, rt *engine.Runtime, modules []*module.Module, programs []*engine.Program, cancel *session.Cancellation, started time.Time, done chan struct{}) {
	defer close(done)
	defer cancel.Finish()
	err := func() error {
		for _, m := range modules {
			if m.Binding != nil {
				if err := rt.Bind(m.Name, m.Binding); err != nil {
					return err
				}
				continue
			}
			if err := rt.Preload(m.Program); err != nil {
				return err
			}
		}
		for _, program := range programs {
			if err := rt.Run(program); err != nil {
				return err
			}
		}
		return nil
	}()
	s.settle(sess, rt, cancel, err)
	s.publishStatus(context.Background(), sess, started)
}

// settle records the terminal outcome of a run. The interrupt flag is always
// cleared before the runtime is kept for evaluation: a Cancel landing after
// the last program returned must not poison the completed session.
func (s *Service) settle(sess *session.Session, rt *engine.Runtime, cancel *session.Cancellation, err error) {
	switch {
	case err == nil:
		rt.ClearInterrupt()
		sess.Complete(rt, rt.Globals())
	case engine.IsInterrupt(err) || cancel.Requested():
		rt.ClearInterrupt()
		sess.MarkCancelled()
	default:
		sess.Fail(engine.FaultOf(err))
	}
}

// Cancel requests cooperative cancellation of the in-flight run, waits up to
// the grace period for the worker to acknowledge and returns the session
// state. Cancelling an idle or unknown session is not an error.
func (s *Service) Cancel(ctx context.Context, sessionID string) (result *model.ExecutionResult, err error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("runner.Cancel %s", sessionID), "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()

	var sess *session.Session
	var handle *session.Cancellation
	err = s.registry.WithSession(ctx, sessionID, func(current *session.Session) error {
		sess = current
		handle = current.CancelHandle()
		return nil
	})
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return unknownResult(sessionID), nil
		}
		return nil, err
	}
	if handle != nil {
		handle.Cancel()
		select {
		case <-handle.Done():
		case <-time.After(s.grace):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.result(sess), nil
}

// Result reports the current state of a session without mutating it.
func (s *Service) Result(ctx context.Context, sessionID string) (*model.ExecutionResult, error) {
	var sess *session.Session
	err := s.registry.WithSession(ctx, sessionID, func(current *session.Session) error {
		sess = current
		return nil
	})
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return unknownResult(sessionID), nil
		}
		return nil, err
	}
	return s.result(sess), nil
}

func (s *Service) result(sess *session.Session) *model.ExecutionResult {
	snapshot := sess.Snapshot()
	ret := &model.ExecutionResult{
		SessionID:  sess.ID,
		RunID:      snapshot.RunID,
		Status:     snapshot.Status,
		Console:    snapshot.Console,
		References: snapshot.References,
		Fault:      snapshot.Fault,
		Errors:     snapshot.Diagnostics,
	}
	if snapshot.Status == model.StatusCompleted {
		for _, binding := range sess.Globals() {
			ret.Variables = append(ret.Variables, s.inspector.Describe(binding.Name, binding.Value))
		}
	}
	return ret
}

func unknownResult(sessionID string) *model.ExecutionResult {
	return &model.ExecutionResult{
		SessionID: sessionID,
		Status:    model.StatusUnknown,
		Errors:    []*model.ErrorInfo{{Message: "session not found"}},
	}
}

func (s *Service) publishStatus(ctx context.Context, sess *session.Session, started time.Time) {
	if s.events == nil {
		return
	}
	snapshot := sess.Snapshot()
	publisher, err := event.PublisherOf[session.StatusEvent](s.events)
	if err != nil {
		log.Printf("failed to acquire status publisher: %v", err)
		return
	}
	evt := event.NewEvent(&event.Context{
		SessionID:   sess.ID,
		RunID:       snapshot.RunID,
		EventType:   "status",
		TimeTakenMs: int(time.Since(started).Milliseconds()),
	}, session.StatusEvent{
		SessionID: sess.ID,
		RunID:     snapshot.RunID,
		Status:    snapshot.Status,
		Errors:    snapshot.Diagnostics,
		Fault:     snapshot.Fault,
	})
	if err := publisher.Publish(ctx, evt); err != nil {
		log.Printf("failed to publish status event: %v", err)
	}
}

func (s *Service) publishConsole(sess *session.Session, line string) {
	if s.events == nil {
		return
	}
	publisher, err := event.PublisherOf[session.ConsoleEvent](s.events)
	if err != nil {
		log.Printf("failed to acquire console publisher: %v", err)
		return
	}
	runID := sess.RunID()
	evt := event.NewEvent(&event.Context{
		SessionID: sess.ID,
		RunID:     runID,
		EventType: "console",
	}, session.ConsoleEvent{
		SessionID: sess.ID,
		RunID:     runID,
		Line:      line,
	})
	if err := publisher.Publish(context.Background(), evt); err != nil {
		log.Printf("failed to publish console event: %v", err)
	}
}
