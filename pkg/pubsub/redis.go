package pubsub

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"AlphaDesk/pkg/logger"
)

// RedisBus distributes messages across processes with Redis Pub/Sub.
type RedisBus struct {
	client *redis.Client
	prefix string
	log    *logger.Logger

	mu     sync.Mutex
	subs   []*redis.PubSub
	wg     sync.WaitGroup
	closed bool
}

func NewRedisBus(client *redis.Client, prefix string, log *logger.Logger) *RedisBus {
	return &RedisBus{client: client, prefix: prefix, log: log}
}

func (b *RedisBus) channel(name string) string {
	if b.prefix == "" {
		return name
	}
	return b.prefix + ":" + name
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(channel), data).Err()
}

// Subscribe starts one receive loop per subscription. The handler runs on that loop.
func (b *RedisBus) Subscribe(channel string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	ctx := context.Background()
	ps := b.client.Subscribe(ctx, b.channel(channel))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	b.subs = append(b.subs, ps)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ps.Channel() {
			h(ctx, channel, []byte(msg.Payload))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				b.log.Warn("redis unsubscribe failed", logger.String("channel", channel), logger.Error(err))
			}
		})
	}, nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	b.wg.Wait()
	return nil
}
