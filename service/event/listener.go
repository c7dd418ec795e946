package event

import (
	"context"
	"log"
	"time"
)

// pollDelay paces the consumption loop for non-blocking queue vendors that
// report an empty queue instead of waiting.
const pollDelay = 20 * time.Millisecond

// Listener consumes events from a publisher on a background goroutine and
// invokes the handler for each.
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewListener creates a stopped listener; call Start to begin consumption.
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T])) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Stop terminates the consumption loop.
func (l *Listener[T]) Stop() {
	l.cancel()
}

// Start begins consuming events until Stop is called.
func (l *Listener[T]) Start() {
	go func() {
		for {
			select {
			case <-l.ctx.Done():
				return
			default:
				event, err := l.publisher.Consume(l.ctx)
				if err != nil {
					if l.ctx.Err() != nil {
						return
					}
					log.Printf("error consuming event: %v", err)
					continue
				}
				if event == nil {
					select {
					case <-l.ctx.Done():
						return
					case <-time.After(pollDelay):
					}
					continue
				}
				l.handler(event)
			}
		}
	}()
}
