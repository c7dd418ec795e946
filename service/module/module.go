// Package module resolves script references into loadable modules. A
// reference names either a source module, fetched through the virtual file
// system and compiled once, or a host module, a native binding exposed to the
// script under the reference name.
package module

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/scriptlab/service/engine"
)

// Module is a resolved reference: a compiled script to preload into the
// runtime, or a native binding to expose under Name.
type Module struct {
	Name    string
	Program *engine.Program
	Binding interface{}
}

// Service resolves references against builtin host modules and the virtual
// file system. Compiled source modules are cached by name.
type Service struct {
	fs        afs.Service
	baseURL   string
	fsOptions []storage.Option
	policy    *Policy
	builtins  map[string]func() (interface{}, error)
	mux       sync.RWMutex
	cache     map[string]*Module
}

// Option customises the module service.
type Option func(*Service)

// WithBaseURL sets the location relative module names resolve against.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.baseURL = baseURL
	}
}

// WithFSOptions sets storage options used when fetching source modules,
// for example auth options for cloud-backed locations.
func WithFSOptions(options ...storage.Option) Option {
	return func(s *Service) {
		s.fsOptions = options
	}
}

// WithPolicy installs a module access policy.
func WithPolicy(policy *Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithTypes exposes the registered extension types to scripts through the
// "types" host module.
func WithTypes(types *Types) Option {
	return func(s *Service) {
		factory := NewTypeFactory(types)
		s.builtins["types"] = func() (interface{}, error) {
			return factory, nil
		}
	}
}

// WithBinding registers an additional host module under the supplied name.
func WithBinding(name string, binding interface{}) Option {
	return func(s *Service) {
		s.builtins[name] = func() (interface{}, error) {
			return binding, nil
		}
	}
}

// New creates a module service with the env and shell host modules builtin.
func New(options ...Option) *Service {
	ret := &Service{
		fs:       afs.New(),
		builtins: make(map[string]func() (interface{}, error)),
		cache:    make(map[string]*Module),
	}
	ret.builtins["env"] = func() (interface{}, error) {
		return &Env{}, nil
	}
	shell := &Shell{}
	ret.builtins["shell"] = func() (interface{}, error) {
		return shell, nil
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Resolve maps references to modules, preserving order and skipping blank
// and duplicate names. Resolution fails fast on the first reference that is
// blocked by policy, cannot be fetched or does not compile.
func (s *Service) Resolve(ctx context.Context, references []string) ([]*Module, error) {
	var out []*Module
	seen := make(map[string]bool)
	for _, name := range references {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if !s.policy.IsAllowed(name) {
			return nil, fmt.Errorf("module %q is not allowed", name)
		}
		if builtin, ok := s.builtins[name]; ok {
			binding, err := builtin()
			if err != nil {
				return nil, fmt.Errorf("failed to init module %q: %w", name, err)
			}
			out = append(out, &Module{Name: name, Binding: binding})
			continue
		}
		module, err := s.source(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, module)
	}
	return out, nil
}

func (s *Service) source(ctx context.Context, name string) (*Module, error) {
	s.mux.RLock()
	cached, ok := s.cache[name]
	s.mux.RUnlock()
	if ok {
		return cached, nil
	}
	URL := name
	if !strings.Contains(name, "://") {
		location := name
		if path.Ext(location) == "" {
			location += ".js"
		}
		URL = url.Join(s.baseURL, location)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL, s.fsOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load module %q: %w", name, err)
	}
	program, diagnostics := engine.Compile(name, string(data))
	if len(diagnostics) > 0 {
		return nil, fmt.Errorf("failed to compile module %q: %v", name, diagnostics[0].Message)
	}
	module := &Module{Name: name, Program: program}
	s.mux.Lock()
	s.cache[name] = module
	s.mux.Unlock()
	return module, nil
}
