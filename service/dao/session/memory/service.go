// Package memory provides the in-memory, thread-safe session registry. It is
// the only owner of session records; eviction cancels any in-flight
// execution before releasing the record.
package memory

import (
	"context"
	"sync"
	"time"

	rsession "github.com/viant/scriptlab/runtime/session"
	"github.com/viant/scriptlab/service/dao"
	"github.com/viant/scriptlab/service/dao/criteria"
	daosession "github.com/viant/scriptlab/service/dao/session"
)

// evictGrace bounds how long Delete waits for a cancelled worker to stop.
const evictGrace = 2 * time.Second

// Service implements the session registry backed by a process-lifetime map.
type Service struct {
	sessions map[string]*rsession.Session
	locks    map[string]*sync.Mutex
	mux      sync.RWMutex
}

var _ daosession.Service = (*Service)(nil)

// New creates an empty registry.
func New() *Service {
	return &Service{
		sessions: map[string]*rsession.Session{},
		locks:    map[string]*sync.Mutex{},
	}
}

// GetOrCreate returns the session registered under id, creating it in the
// unknown status on first reference. The check-and-insert is atomic so
// concurrent callers observe exactly one creation.
func (s *Service) GetOrCreate(_ context.Context, id string) (*rsession.Session, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	existing, ok := s.sessions[id]
	s.mux.RUnlock()
	if ok {
		return existing, nil
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	if existing, ok = s.sessions[id]; ok {
		return existing, nil
	}
	created := rsession.New(id)
	s.sessions[id] = created
	s.locks[id] = &sync.Mutex{}
	return created, nil
}

// Save registers a session under its own identifier.
func (s *Service) Save(_ context.Context, session *rsession.Session) error {
	if session == nil {
		return dao.ErrNilEntity
	}
	if session.ID == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.sessions[session.ID] = session
	if _, ok := s.locks[session.ID]; !ok {
		s.locks[session.ID] = &sync.Mutex{}
	}
	return nil
}

// Load returns the session registered under id.
func (s *Service) Load(_ context.Context, id string) (*rsession.Session, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	session, ok := s.sessions[id]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	return session, nil
}

// WithSession runs fn while holding the session's operation lock, so that
// compound sequences (accept-compile-start, evaluate, tree inspection) never
// interleave on the same session.
func (s *Service) WithSession(ctx context.Context, id string, fn func(session *rsession.Session) error) error {
	session, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	s.mux.RLock()
	lock := s.locks[id]
	s.mux.RUnlock()
	if lock == nil {
		return dao.ErrNotFound
	}
	lock.Lock()
	defer lock.Unlock()
	return fn(session)
}

// Delete evicts a session, cancelling any in-flight execution first and
// waiting briefly for its worker to stop.
func (s *Service) Delete(ctx context.Context, id string) error {
	session, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if handle := session.CancelHandle(); handle != nil {
		handle.Cancel()
		select {
		case <-handle.Done():
		case <-time.After(evictGrace):
		}
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.sessions, id)
	delete(s.locks, id)
	return nil
}

// List returns registered sessions, optionally filtered by status.
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*rsession.Session, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*rsession.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if !criteria.FilterByStatus(string(session.Status()), parameters) {
			continue
		}
		out = append(out, session)
	}
	return out, nil
}
