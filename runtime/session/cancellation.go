package session

import "sync"

// Cancellation couples the interrupt trigger of an in-flight run with a
// completion signal the canceller can wait on. Cancel is idempotent; Done is
// closed exactly once by the worker when it exits, regardless of outcome.
type Cancellation struct {
	interrupt func()
	once      sync.Once
	finish    sync.Once
	done      chan struct{}

	mu        sync.Mutex
	requested bool
	finished  bool
}

// NewCancellation creates a handle that fires the supplied interrupt on the
// first Cancel call.
func NewCancellation(interrupt func()) *Cancellation {
	return &Cancellation{interrupt: interrupt, done: make(chan struct{})}
}

// Cancel requests cooperative interruption of the associated run. Repeated
// calls are no-ops; after the worker finished the interrupt is not fired.
func (c *Cancellation) Cancel() {
	c.once.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.requested = true
		if !c.finished && c.interrupt != nil {
			c.interrupt()
		}
	})
}

// Requested reports whether cancellation has been asked for.
func (c *Cancellation) Requested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requested
}

// Done is closed when the associated worker has fully stopped.
func (c *Cancellation) Done() <-chan struct{} {
	return c.done
}

// Finish signals that the worker exited. Idempotent.
func (c *Cancellation) Finish() {
	c.finish.Do(func() {
		c.mu.Lock()
		c.finished = true
		c.mu.Unlock()
		close(c.done)
	})
}
