// Package memory provides an in-process message bus for tests and local
// development.
package memory

import (
	"context"
	"sync"

	"github.com/webgraph-io/webgraph/internal/crawl"
)

// Bus queues published messages in memory and can pump them through a
// handler until the pipeline quiesces.
type Bus struct {
	mu       sync.Mutex
	pending  []crawl.Message
	recorded []crawl.Message
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish implements crawl.Bus.
func (b *Bus) Publish(_ context.Context, msg crawl.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, msg)
	b.recorded = append(b.recorded, msg)
	return nil
}

// Messages returns every message published so far, in order.
func (b *Bus) Messages() []crawl.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]crawl.Message, len(b.recorded))
	copy(out, b.recorded)
	return out
}

// MessagesOn returns published messages for one topic.
func (b *Bus) MessagesOn(topic crawl.Topic) []crawl.Message {
	var out []crawl.Message
	for _, msg := range b.Messages() {
		if msg.Topic() == topic {
			out = append(out, msg)
		}
	}
	return out
}

// pop removes and returns the oldest undelivered message.
func (b *Bus) pop() (crawl.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil, false
	}
	msg := b.pending[0]
	b.pending = b.pending[1:]
	return msg, true
}

// Pump delivers queued messages to handle, one at a time in publish order,
// until the queue drains or a handler fails. Recursive publishes made by the
// handler are delivered too, so a whole crawl converges in one call.
func (b *Bus) Pump(ctx context.Context, handle func(context.Context, crawl.Message) error) error {
	for {
		msg, ok := b.pop()
		if !ok {
			return nil
		}
		if err := handle(ctx, msg); err != nil {
			return err
		}
	}
}
