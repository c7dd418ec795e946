// Package event delivers session status and console notifications to
// external observers through typed publishers over pluggable queues. The
// core emits an event on every state machine transition and per console
// line; delivery is asynchronous and never blocks the execution path.
package event

import (
	"log"
	"reflect"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/scriptlab/service/messaging"
	qfs "github.com/viant/scriptlab/service/messaging/fs"
	"github.com/viant/scriptlab/service/messaging/memory"
)

// Vendor identifies a queue implementation backing the event streams.
type Vendor string

const (
	VendorMemory Vendor = "memory"
	VendorFS     Vendor = "fs"
)

// QueueConfig selects and configures the queue vendor of one event stream.
// The fs vendor journals events under a per-stream subdirectory of its
// BaseURL, so they survive process restarts.
type QueueConfig struct {
	Vendor Vendor
	Memory memory.Config
	FS     qfs.QueueConfig
}

// DefaultQueueConfig returns the in-memory vendor with its defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{Vendor: VendorMemory, Memory: memory.DefaultConfig()}
}

// Service manages one queue and publisher per payload type, plus an untyped
// any-queue observing every published event.
type Service struct {
	publisher       *Publisher[any]
	listener        *Listener[any]
	typedPublishers map[reflect.Type]any
	typedListener   map[reflect.Type]any
	mux             *sync.RWMutex
	fs              afs.Service
	newQueueConfig  func(name string) QueueConfig
}

// Option customises the event service.
type Option func(s *Service)

// WithQueueConfig overrides the per-stream queue configuration factory.
func WithQueueConfig(newConfig func(name string) QueueConfig) Option {
	return func(s *Service) {
		s.newQueueConfig = newConfig
	}
}

// New creates an event service; streams default to in-memory queues unless
// the configuration factory selects another vendor.
func New(opts ...Option) *Service {
	ret := &Service{
		typedPublishers: make(map[reflect.Type]any),
		typedListener:   make(map[reflect.Type]any),
		mux:             &sync.RWMutex{},
		fs:              afs.New(),
		newQueueConfig:  func(string) QueueConfig { return DefaultQueueConfig() },
	}
	for _, opt := range opts {
		opt(ret)
	}
	queue, err := newQueue[any](ret, "any")
	if err != nil {
		log.Printf("failed to create any-event queue: %v, falling back to memory", err)
		queue = memory.NewQueue[Event[any]](memory.DefaultConfig())
	}
	ret.publisher = NewPublisher[any](queue)
	return ret
}

// newQueue builds the queue for one event stream per its configured vendor.
func newQueue[T any](s *Service, name string) (messaging.Queue[Event[T]], error) {
	config := s.newQueueConfig(name)
	switch config.Vendor {
	case VendorFS:
		fsConfig := config.FS
		fsConfig.BaseURL = url.Join(fsConfig.BaseURL, name)
		return qfs.NewQueue[Event[T]](s.fs, fsConfig)
	default:
		return memory.NewQueue[Event[T]](config.Memory), nil
	}
}

// SetListener installs a handler observing every event of any type.
func (s *Service) SetListener(handler func(*Event[any])) {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener[any](s.publisher, handler)
	s.listener.Start()
}

func keyOf[T any]() reflect.Type {
	var t T
	rType := reflect.TypeOf(t)
	if rType != nil && rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// PublisherOf returns the publisher for the provided payload type, creating
// its queue on first use.
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return ret.(*Publisher[T]), nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok = s.typedPublishers[key]; ok {
		return ret.(*Publisher[T]), nil
	}
	queue, err := newQueue[T](s, key.String())
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	publisher.anyQueue = s.publisher.queue
	s.typedPublishers[key] = publisher
	return publisher, nil
}

// SetListenerOf installs a handler for one payload type, replacing any
// previous listener for that type.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	key := keyOf[T]()
	s.mux.RLock()
	prior, ok := s.typedListener[key]
	s.mux.RUnlock()
	if ok {
		prior.(*Listener[T]).Stop()
	}
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	listener := NewListener[T](publisher, handler)
	s.mux.Lock()
	s.typedListener[key] = listener
	s.mux.Unlock()
	listener.Start()
	return nil
}
