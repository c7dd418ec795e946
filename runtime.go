package scriptlab

import (
	"context"
	"errors"
	"time"

	"github.com/viant/scriptlab/model"
	"github.com/viant/scriptlab/runtime/session"
	"github.com/viant/scriptlab/service/dao"
	daosession "github.com/viant/scriptlab/service/dao/session"
	"github.com/viant/scriptlab/service/evaluator"
	"github.com/viant/scriptlab/service/inspector"
	"github.com/viant/scriptlab/service/runner"
)

// Runtime exposes the session operations: run, cancel, evaluate, variable
// inspection and session lifecycle.
type Runtime struct {
	runner    *runner.Service
	evaluator *evaluator.Service
	registry  daosession.Service
	inspector *inspector.Service
}

// Run submits a script for execution, creating the session on first use. The
// returned wait handle is non-nil only for an accepted run.
func (r *Runtime) Run(ctx context.Context, input *runner.Input) (*model.ExecutionResult, runner.Wait, error) {
	return r.runner.Run(ctx, input)
}

// RunAndWait submits a script and blocks until the run concludes or the
// timeout elapses; zero timeout means no limit.
func (r *Runtime) RunAndWait(ctx context.Context, input *runner.Input, timeout time.Duration) (*model.ExecutionResult, error) {
	result, wait, err := r.runner.Run(ctx, input)
	if err != nil || wait == nil {
		return result, err
	}
	return wait(ctx, timeout)
}

// Cancel requests cooperative cancellation of the in-flight run. Cancelling
// an idle or unknown session is not an error.
func (r *Runtime) Cancel(ctx context.Context, sessionID string) (*model.ExecutionResult, error) {
	return r.runner.Cancel(ctx, sessionID)
}

// Evaluate computes a single expression against the live globals of a
// completed session.
func (r *Runtime) Evaluate(ctx context.Context, sessionID, expression string, includeJSON bool) (*model.ExecutionResult, error) {
	return r.evaluator.Evaluate(ctx, sessionID, expression, includeJSON)
}

// Session reports the current state of a session without mutating it.
func (r *Runtime) Session(ctx context.Context, sessionID string) (*model.ExecutionResult, error) {
	return r.runner.Result(ctx, sessionID)
}

// Variables reports session variables. With an empty variableName it
// describes every top-level global of the last completed run; otherwise it
// resolves the variable path (for example "users[1].address") and describes
// the children of the addressed value. Unknown sessions yield an
// unknown-status result rather than an error.
func (r *Runtime) Variables(ctx context.Context, sessionID, variableName string, includeJSON bool) (*model.ExecutionResult, error) {
	ret := &model.ExecutionResult{SessionID: sessionID}
	err := r.registry.WithSession(ctx, sessionID, func(sess *session.Session) error {
		ret.RunID = sess.RunID()
		ret.Status = sess.Status()
		if variableName == "" {
			for _, binding := range sess.Globals() {
				ret.Variables = append(ret.Variables, r.inspector.DescribeWithJSON(binding.Name, binding.Value, includeJSON))
			}
			return nil
		}
		value, err := inspector.Resolve(sess.Lookup, variableName)
		if err != nil {
			ret.Errors = append(ret.Errors, &model.ErrorInfo{Message: err.Error()})
			return nil
		}
		children := r.inspector.Children(value)
		if len(children) == 0 {
			ret.Variables = append(ret.Variables, r.inspector.DescribeWithJSON(variableName, value, includeJSON))
			return nil
		}
		ret.Variables = append(ret.Variables, children...)
		return nil
	})
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			ret.Status = model.StatusUnknown
			ret.Errors = append(ret.Errors, &model.ErrorInfo{Message: "session not found"})
			return ret, nil
		}
		return nil, err
	}
	return ret, nil
}

// RemoveSession disposes a session and its live runtime, cancelling any
// in-flight run first. Removing an unknown session is not an error.
func (r *Runtime) RemoveSession(ctx context.Context, sessionID string) error {
	err := r.registry.Delete(ctx, sessionID)
	if errors.Is(err, dao.ErrNotFound) {
		return nil
	}
	return err
}
