package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations interface.
// Values are stored as JSON; Get decodes into dest.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	// TryLock takes key for ttl. On success it returns the holder's token; Unlock
	// only releases the lock while that token still owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// GetTyped reads key and decodes it into a T. The boolean is false on a miss.
func GetTyped[T any](ctx context.Context, c Service, key string) (T, bool, error) {
	var obj T
	if err := c.Get(ctx, key, &obj); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return obj, false, nil
		}
		return obj, false, err
	}
	return obj, true, nil
}
