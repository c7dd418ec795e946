package scriptlab

import (
	"time"

	"github.com/viant/afs/storage"
	daosession "github.com/viant/scriptlab/service/dao/session"
	smemory "github.com/viant/scriptlab/service/dao/session/memory"
	"github.com/viant/scriptlab/service/evaluator"
	"github.com/viant/scriptlab/service/event"
	"github.com/viant/scriptlab/service/inspector"
	qfs "github.com/viant/scriptlab/service/messaging/fs"
	"github.com/viant/scriptlab/service/module"
	"github.com/viant/scriptlab/service/runner"
	"github.com/viant/x"
)

// Service is the high-level façade wiring the session registry, the script
// runner, the evaluator and the notification sink together.
type Service struct {
	config            *Config
	runtime           *Runtime
	registry          daosession.Service
	events            *event.Service
	moduleService     *module.Service
	inspector         *inspector.Service
	types             *module.Types
	extensionTypes    []*x.Type
	moduleBaseURL     string
	moduleFsOptions   []storage.Option
	modulePolicy      *module.Policy
	cancelGracePeriod time.Duration
}

// New creates the service with the supplied options; omitted collaborators
// fall back to in-memory defaults.
func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.runtime.registry = s.registry
	s.runtime.inspector = s.inspector
	s.runtime.runner = runner.New(s.registry, s.moduleService, s.inspector, s.events, s.config.Runner)
	s.runtime.evaluator = evaluator.New(s.registry, s.inspector)
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.cancelGracePeriod > 0 {
		s.config.Runner.CancelGracePeriodMs = int(s.cancelGracePeriod.Milliseconds())
	}
	if s.inspector == nil {
		s.inspector = inspector.New(s.config.Inspector)
	}
	if s.registry == nil {
		s.registry = smemory.New()
	}
	if s.events == nil {
		var eventOptions []event.Option
		if cfg := s.config.Events; cfg.QueueBuffer > 0 || event.Vendor(cfg.Vendor) == event.VendorFS {
			eventOptions = append(eventOptions, event.WithQueueConfig(func(string) event.QueueConfig {
				queueConfig := event.DefaultQueueConfig()
				if cfg.QueueBuffer > 0 {
					queueConfig.Memory.QueueBuffer = cfg.QueueBuffer
				}
				if event.Vendor(cfg.Vendor) == event.VendorFS {
					queueConfig.Vendor = event.VendorFS
					queueConfig.FS = qfs.DefaultConfig()
					queueConfig.FS.BaseURL = cfg.BaseURL
				}
				return queueConfig
			}))
		}
		s.events = event.New(eventOptions...)
	}
	if s.types == nil {
		s.types = module.NewTypes()
	}
	for _, aType := range s.extensionTypes {
		s.types.Register(aType)
	}
	if s.moduleService == nil {
		opts := []module.Option{module.WithTypes(s.types)}
		baseURL := s.config.Modules.BaseURL
		if s.moduleBaseURL != "" {
			baseURL = s.moduleBaseURL
		}
		if baseURL != "" {
			opts = append(opts, module.WithBaseURL(baseURL))
		}
		if len(s.moduleFsOptions) > 0 {
			opts = append(opts, module.WithFSOptions(s.moduleFsOptions...))
		}
		policy := s.config.Modules.Policy
		if s.modulePolicy != nil {
			policy = s.modulePolicy
		}
		if policy != nil {
			opts = append(opts, module.WithPolicy(policy))
		}
		s.moduleService = module.New(opts...)
	}
}

// RegisterExtensionTypes registers additional Go types for the types host
// module after construction.
func (s *Service) RegisterExtensionTypes(types ...*x.Type) {
	for i := range types {
		s.types.Register(types[i])
	}
}

// Runtime returns the operation façade.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Events returns the notification event service.
func (s *Service) Events() *event.Service {
	return s.events
}
