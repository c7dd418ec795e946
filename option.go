package scriptlab

import (
	"time"

	"github.com/viant/afs/storage"
	daosession "github.com/viant/scriptlab/service/dao/session"
	"github.com/viant/scriptlab/service/event"
	"github.com/viant/scriptlab/service/inspector"
	"github.com/viant/scriptlab/service/module"
	"github.com/viant/scriptlab/tracing"
	"github.com/viant/x"
)

// Option customises the service.
type Option func(s *Service)

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithSessionRegistry sets the session registry implementation.
func WithSessionRegistry(registry daosession.Service) Option {
	return func(s *Service) {
		s.registry = registry
	}
}

// WithEventService sets the notification event service.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.events = service
	}
}

// WithModuleService sets the reference module resolver.
func WithModuleService(service *module.Service) Option {
	return func(s *Service) {
		s.moduleService = service
	}
}

// WithModuleBaseURL sets the location relative module references resolve
// against.
func WithModuleBaseURL(URL string) Option {
	return func(s *Service) {
		s.moduleBaseURL = URL
	}
}

// WithModuleFsOptions sets storage options used when fetching source
// modules.
func WithModuleFsOptions(options ...storage.Option) Option {
	return func(s *Service) {
		s.moduleFsOptions = options
	}
}

// WithModulePolicy sets the module access policy.
func WithModulePolicy(policy *module.Policy) Option {
	return func(s *Service) {
		s.modulePolicy = policy
	}
}

// WithExtensionTypes registers Go types scripts may instantiate through the
// types host module.
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) {
		s.extensionTypes = types
	}
}

// WithInspectorLimits overrides the variable inspection bounds.
func WithInspectorLimits(limits inspector.Limits) Option {
	return func(s *Service) {
		s.inspector = inspector.New(limits)
	}
}

// WithCancelGracePeriod bounds how long Cancel waits for an interrupted
// worker to acknowledge.
func WithCancelGracePeriod(period time.Duration) Option {
	return func(s *Service) {
		s.cancelGracePeriod = period
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file
// path. Only the first successful initialisation takes effect.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}
