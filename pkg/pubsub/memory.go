package pubsub

import (
	"context"
	"sync"
)

type subscriber struct {
	id      uint64
	handler Handler
}

// MemoryBus delivers messages in-process. Delivery is synchronous, in
// subscription order, on the publisher's goroutine.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]subscriber
	nextID uint64
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]subscriber)}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]subscriber, len(b.subs[channel]))
	copy(handlers, b.subs[channel])
	b.mu.RUnlock()

	for _, s := range handlers {
		s.handler(ctx, channel, data)
	}
	return nil
}

func (b *MemoryBus) Subscribe(channel string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	id := b.nextID
	b.subs[channel] = append(b.subs[channel], subscriber{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[channel]
		for i, s := range subs {
			if s.id == id {
				b.subs[channel] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.subs = make(map[string][]subscriber)
	b.mu.Unlock()
	return nil
}
