package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	qfs "github.com/viant/scriptlab/service/messaging/fs"
)

type statusPayload struct {
	SessionID string
	Status    string
}

type consolePayload struct {
	SessionID string
	Line      string
}

func TestPublisherOf(t *testing.T) {
	service := New()
	publisher, err := PublisherOf[statusPayload](service)
	assert.Nil(t, err)
	assert.NotNil(t, publisher)

	again, err := PublisherOf[statusPayload](service)
	assert.Nil(t, err)
	assert.Same(t, publisher, again)

	ctx := context.Background()
	err = publisher.Publish(ctx, NewEvent(&Context{SessionID: "s-1", EventType: "status"}, statusPayload{SessionID: "s-1", Status: "running"}))
	assert.Nil(t, err)

	received, err := publisher.Consume(ctx)
	assert.Nil(t, err)
	if assert.NotNil(t, received) {
		assert.Equal(t, "running", received.Data.Status)
		assert.Equal(t, "s-1", received.Context.SessionID)
		assert.False(t, received.CreatedAt.IsZero())
	}
}

func TestService_FSVendor(t *testing.T) {
	baseURL := t.TempDir()
	newConfig := func(string) QueueConfig {
		config := DefaultQueueConfig()
		config.Vendor = VendorFS
		config.FS = qfs.DefaultConfig()
		config.FS.BaseURL = baseURL
		return config
	}
	ctx := context.Background()

	service := New(WithQueueConfig(newConfig))
	publisher, err := PublisherOf[statusPayload](service)
	assert.Nil(t, err)
	err = publisher.Publish(ctx, NewEvent(&Context{SessionID: "s-1"}, statusPayload{SessionID: "s-1", Status: "completed"}))
	assert.Nil(t, err)

	// the journal survives a service restart
	reopened := New(WithQueueConfig(newConfig))
	consumer, err := PublisherOf[statusPayload](reopened)
	assert.Nil(t, err)
	received, err := consumer.Consume(ctx)
	assert.Nil(t, err)
	if assert.NotNil(t, received) {
		assert.Equal(t, "completed", received.Data.Status)
		assert.Equal(t, "s-1", received.Context.SessionID)
	}
}

func TestSetListenerOf(t *testing.T) {
	service := New()
	var mu sync.Mutex
	var seen []string
	err := SetListenerOf[statusPayload](service, func(event *Event[statusPayload]) {
		mu.Lock()
		seen = append(seen, event.Data.Status)
		mu.Unlock()
	})
	assert.Nil(t, err)

	publisher, err := PublisherOf[statusPayload](service)
	assert.Nil(t, err)
	ctx := context.Background()
	for _, status := range []string{"prepareToRun", "running", "completed"} {
		err = publisher.Publish(ctx, NewEvent(&Context{SessionID: "s-1"}, statusPayload{Status: status}))
		assert.Nil(t, err)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"prepareToRun", "running", "completed"}, seen)
	mu.Unlock()
}

func TestSetListener_ObservesEveryType(t *testing.T) {
	service := New()
	var mu sync.Mutex
	var count int
	service.SetListener(func(event *Event[any]) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx := context.Background()
	statusPublisher, err := PublisherOf[statusPayload](service)
	assert.Nil(t, err)
	consolePublisher, err := PublisherOf[consolePayload](service)
	assert.Nil(t, err)

	assert.Nil(t, statusPublisher.Publish(ctx, NewEvent(&Context{SessionID: "s-1"}, statusPayload{Status: "running"})))
	assert.Nil(t, consolePublisher.Publish(ctx, NewEvent(&Context{SessionID: "s-1"}, consolePayload{Line: "hello"})))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, time.Second, 10*time.Millisecond)
}
