// Package evaluator re-enters the live globals of a completed session to
// compute single expressions without starting a new run.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/scriptlab/model"
	"github.com/viant/scriptlab/runtime/session"
	"github.com/viant/scriptlab/service/dao"
	daosession "github.com/viant/scriptlab/service/dao/session"
	"github.com/viant/scriptlab/service/engine"
	"github.com/viant/scriptlab/service/inspector"
	"github.com/viant/scriptlab/tracing"
)

// Service evaluates expressions against session globals.
type Service struct {
	registry  daosession.Service
	inspector *inspector.Service
}

// New creates an evaluator over the session registry.
func New(registry daosession.Service, inspect *inspector.Service) *Service {
	if inspect == nil {
		inspect = inspector.New(inspector.DefaultLimits())
	}
	return &Service{registry: registry, inspector: inspect}
}

// Evaluate computes a single expression against the live globals of a
// completed session. The expression observes and may mutate the variable
// graph, but never changes the session status: an evaluation error is
// reported in the result without transitioning the state machine. An unknown
// session or one without live globals yields an unknown-status result rather
// than an error.
func (s *Service) Evaluate(ctx context.Context, sessionID, expression string, includeJSON bool) (result *model.ExecutionResult, err error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("sessionId was empty")
	}
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("evaluator.Evaluate %s", sessionID), "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()

	ret := &model.ExecutionResult{SessionID: sessionID}
	err = s.registry.WithSession(ctx, sessionID, func(sess *session.Session) error {
		ret.RunID = sess.RunID()
		ret.Status = sess.Status()
		return sess.WithRuntime(func(runtime *engine.Runtime) error {
			value, evalErr := runtime.Eval(expression)
			if evalErr != nil {
				if fault := engine.FaultOf(evalErr); fault != nil {
					ret.Errors = append(ret.Errors, &model.ErrorInfo{Message: fault.Message})
				}
				return nil
			}
			ret.Variables = append(ret.Variables, s.inspector.DescribeWithJSON(expression, value, includeJSON))
			return nil
		})
	})
	switch {
	case err == nil:
	case errors.Is(err, dao.ErrNotFound):
		ret.Status = model.StatusUnknown
		ret.Errors = append(ret.Errors, &model.ErrorInfo{Message: "session not found"})
		err = nil
	case errors.Is(err, session.ErrScriptNotAvailable):
		ret.Errors = append(ret.Errors, &model.ErrorInfo{Message: err.Error()})
		err = nil
	default:
		return nil, err
	}
	return ret, nil
}
