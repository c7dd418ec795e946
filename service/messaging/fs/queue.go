// Package fs implements a filesystem-backed messaging.Queue. Unlike the
// memory vendor, published messages survive process restarts, which makes it
// suitable for durable session event journals consumed by external workers.
// Any afs-supported scheme works as the base location.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/scriptlab/internal/clock"
	"github.com/viant/scriptlab/internal/idgen"
	"github.com/viant/scriptlab/service/messaging"
)

// MessageState tracks where a message sits in its processing lifecycle.
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

// Message implements messaging.Message for the filesystem queue.
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	name      string
	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack acknowledges the message, moving it to the completed directory.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.State = MessageStateCompleted
	m.UpdatedAt = clock.Now()
	return m.queue.completeMessage(context.Background(), m)
}

// Nack records a processing failure; the message is retried until MaxRetries
// is exceeded, then moved to the dead-letter directory.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.State = MessageStateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = clock.Now()
	return m.queue.failMessage(context.Background(), m)
}

// QueueConfig holds filesystem queue settings.
type QueueConfig struct {
	// BaseURL is the queue root; any afs scheme is accepted.
	BaseURL    string
	MaxRetries int
}

// DefaultConfig returns a standard configuration.
func DefaultConfig() QueueConfig {
	return QueueConfig{
		BaseURL:    "/tmp/scriptlab/queue",
		MaxRetries: 3,
	}
}

// Queue implements a filesystem-based messaging.Queue.
type Queue[T any] struct {
	fs            afs.Service
	config        QueueConfig
	pendingDir    string
	processingDir string
	completedDir  string
	failedDir     string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates a filesystem queue, ensuring its directory layout exists.
func NewQueue[T any](fs afs.Service, config QueueConfig) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BaseURL, "pending"),
		processingDir: path.Join(config.BaseURL, "processing"),
		completedDir:  path.Join(config.BaseURL, "completed"),
		failedDir:     path.Join(config.BaseURL, "failed"),
		dlqDir:        path.Join(config.BaseURL, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.failedDir, q.dlqDir} {
		exists, _ := fs.Exists(ctx, dir)
		if exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish persists a new message in the pending directory.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
		queue:     q,
	}
	message.name = fmt.Sprintf("%020d-%s.json", now.UnixNano(), message.ID)
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.upload(ctx, path.Join(q.pendingDir, message.name), data)
}

// Consume retrieves the oldest available message, preferring retry-eligible
// failed messages. It returns nil without error when the queue is empty; the
// filesystem vendor does not block.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	retry, err := q.takeFailed(ctx)
	if err != nil {
		return nil, err
	}
	if retry != nil {
		return retry, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	oldest, err := q.oldest(ctx, q.pendingDir)
	if err != nil || oldest == nil {
		return nil, err
	}
	message, err := q.read(ctx, oldest.URL())
	if err != nil {
		_ = q.fs.Move(ctx, oldest.URL(), path.Join(q.failedDir, "invalid-"+oldest.Name()))
		return nil, err
	}
	message, err = q.moveToProcessing(ctx, message, oldest)
	if err != nil || message == nil {
		return nil, err
	}
	return message, nil
}

// takeFailed returns the oldest failed message still eligible for retry,
// moving exhausted ones to the dead-letter directory.
func (q *Queue[T]) takeFailed(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	oldest, err := q.oldest(ctx, q.failedDir)
	if err != nil || oldest == nil {
		return nil, err
	}
	message, err := q.read(ctx, oldest.URL())
	if err != nil {
		_ = q.fs.Move(ctx, oldest.URL(), path.Join(q.dlqDir, "invalid-"+oldest.Name()))
		return nil, err
	}
	if message.Retries > q.config.MaxRetries {
		if err := q.fs.Move(ctx, oldest.URL(), path.Join(q.dlqDir, oldest.Name())); err != nil {
			return nil, fmt.Errorf("failed to move message to DLQ: %w", err)
		}
		return nil, nil
	}
	return q.moveToProcessing(ctx, message, oldest)
}

func (q *Queue[T]) moveToProcessing(ctx context.Context, message *Message[T], object storage.Object) (*Message[T], error) {
	message.State = MessageStateProcessing
	message.UpdatedAt = clock.Now()
	message.name = object.Name()
	message.queue = q
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.upload(ctx, path.Join(q.processingDir, object.Name()), data); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, object.URL()); err != nil {
		return nil, fmt.Errorf("failed to remove consumed message: %w", err)
	}
	return message, nil
}

func (q *Queue[T]) completeMessage(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal completed message: %w", err)
	}
	if err := q.upload(ctx, path.Join(q.completedDir, m.name), data); err != nil {
		return fmt.Errorf("failed to write completed message: %w", err)
	}
	return q.removeProcessing(ctx, m.name)
}

func (q *Queue[T]) failMessage(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal failed message: %w", err)
	}
	destDir := q.failedDir
	if m.Retries > q.config.MaxRetries {
		destDir = q.dlqDir
	}
	if err := q.upload(ctx, path.Join(destDir, m.name), data); err != nil {
		return fmt.Errorf("failed to write failed message: %w", err)
	}
	return q.removeProcessing(ctx, m.name)
}

func (q *Queue[T]) removeProcessing(ctx context.Context, name string) error {
	processingPath := path.Join(q.processingDir, name)
	if exists, _ := q.fs.Exists(ctx, processingPath); exists {
		if err := q.fs.Delete(ctx, processingPath); err != nil {
			return fmt.Errorf("failed to delete processed message: %w", err)
		}
	}
	return nil
}

// oldest returns the lexically first message file in a directory; filenames
// carry a zero-padded timestamp prefix so lexical order is arrival order.
func (q *Queue[T]) oldest(ctx context.Context, dir string) (storage.Object, error) {
	objects, err := q.fs.List(ctx, dir, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var ret storage.Object
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		if ret == nil || object.Name() < ret.Name() {
			ret = object
		}
	}
	return ret, nil
}

func (q *Queue[T]) upload(ctx context.Context, location string, data []byte) error {
	return q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewBuffer(data))
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	message := &Message[T]{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return message, nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
