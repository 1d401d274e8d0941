package progress

import (
	"fmt"
	"sync"
)

// defaultQueueSize bounds the per-operation event channel. A slow consumer
// (the HTTP response streamer) applies backpressure to the producer rather
// than the queue growing without bound.
const defaultQueueSize = 256

// Context is the task-local progress channel for one controller operation.
// It is never shared between concurrently running operations: each worker
// creates its own and passes it explicitly through the call graph, rather
// than relying on a process-global "current context" singleton.
type Context struct {
	events chan Event

	mu   sync.Mutex
	done bool
}

// New returns a ready Context with its queue open.
func New() *Context {
	return &Context{events: make(chan Event, defaultQueueSize)}
}

// Events returns the receive side of the queue, for the response streamer
// to range over until it is closed.
func (c *Context) Events() <-chan Event {
	return c.events
}

func (c *Context) enqueue(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.events <- e
}

// Job enqueues a new phase label.
func (c *Context) Job(format string, args ...interface{}) {
	c.enqueue(Event{Kind: KindJob, Text: sprintf(format, args...)})
}

// Log enqueues an informational message.
func (c *Context) Log(format string, args ...interface{}) {
	c.enqueue(Event{Kind: KindLog, Text: sprintf(format, args...)})
}

// Error enqueues a recoverable-level error message without terminating the
// stream.
func (c *Context) Error(format string, args ...interface{}) {
	c.enqueue(Event{Kind: KindError, Text: sprintf(format, args...)})
}

// Custom enqueues an arbitrary plugin-defined event shape.
func (c *Context) Custom(fields map[string]interface{}) {
	c.enqueue(Event{Kind: KindCustom, Custom: fields})
}

// Fatal enqueues an error event and then terminates the stream, matching
// ctx.fatal's "enqueues error and sentinel" contract.
func (c *Context) Fatal(format string, args ...interface{}) {
	c.Error(format, args...)
	c.Done()
}

// Done terminates the stream. Safe to call more than once.
func (c *Context) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	close(c.events)
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
