// Package session defines the registry contract for script sessions: at most
// one session exists per identifier, creation is idempotent on first
// reference and compound operations obtain scoped exclusive access.
package session

import (
	"context"

	rsession "github.com/viant/scriptlab/runtime/session"
	"github.com/viant/scriptlab/service/dao"
)

// Service is the session registry consulted by the runner, the evaluator and
// the inspection surface.
type Service interface {
	dao.Service[string, rsession.Session]

	// GetOrCreate returns the existing session or atomically creates one in
	// the unknown status. Concurrent calls for the same id observe exactly
	// one creation.
	GetOrCreate(ctx context.Context, id string) (*rsession.Session, error)

	// WithSession runs fn with scoped exclusive access to the session,
	// serializing compound operations against the same identifier. It
	// returns dao.ErrNotFound when no session exists for id.
	WithSession(ctx context.Context, id string, fn func(session *rsession.Session) error) error
}
