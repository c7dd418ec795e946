package scriptlab

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/scriptlab/internal/envexpr"
	"github.com/viant/scriptlab/service/event"
	"github.com/viant/scriptlab/service/inspector"
	"github.com/viant/scriptlab/service/module"
	"github.com/viant/scriptlab/service/runner"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from YAML or JSON; the zero-value is useful since all
// nested fields inherit their package defaults.
type Config struct {
	Runner    runner.Config    `json:"runner,omitempty" yaml:"runner,omitempty"`
	Inspector inspector.Limits `json:"inspector,omitempty" yaml:"inspector,omitempty"`
	Events    EventsConfig     `json:"events,omitempty" yaml:"events,omitempty"`
	Modules   ModulesConfig    `json:"modules,omitempty" yaml:"modules,omitempty"`
}

// EventsConfig controls the notification queues.
type EventsConfig struct {
	// QueueBuffer caps buffered events per memory queue; zero means the
	// default.
	QueueBuffer int `json:"queueBuffer,omitempty" yaml:"queueBuffer,omitempty"`
	// Vendor selects the queue implementation, "memory" (default) or "fs".
	Vendor string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	// BaseURL is the journal root of the fs vendor; any afs scheme works.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// ModulesConfig controls reference module resolution.
type ModulesConfig struct {
	BaseURL string         `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Policy  *module.Policy `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Inspector: inspector.DefaultLimits(),
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Runner.CancelGracePeriodMs < 0 {
		return fmt.Errorf("runner.cancelGracePeriodMs must be >= 0")
	}
	if c.Inspector.MaxItems < 0 || c.Inspector.MaxDepth < 0 || c.Inspector.MaxValueLength < 0 {
		return fmt.Errorf("inspector limits must be >= 0")
	}
	if c.Events.QueueBuffer < 0 {
		return fmt.Errorf("events.queueBuffer must be >= 0")
	}
	switch c.Events.Vendor {
	case "", string(event.VendorMemory):
	case string(event.VendorFS):
		if c.Events.BaseURL == "" {
			return fmt.Errorf("events.baseURL is required for the fs vendor")
		}
	default:
		return fmt.Errorf("unsupported events.vendor: %q", c.Events.Vendor)
	}
	return nil
}

// NewConfigFromYAML decodes a configuration document, expanding ${env.KEY}
// expressions before parsing.
func NewConfigFromYAML(data []byte) (*Config, error) {
	expanded := envexpr.Expand(string(data))
	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewConfigFromURL loads and decodes a configuration document from a file or
// cloud location.
func NewConfigFromURL(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	return NewConfigFromYAML(data)
}
