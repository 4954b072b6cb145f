package cache

import "time"

// MemoryOption configures a MemoryCache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxSize int
	sweep   time.Duration
	now     func() time.Time
}

// WithMemoryMaxSize bounds the number of live keys; the least recently used key is evicted past it.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *memoryConfig) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithMemorySweep sets how often expired keys are purged in the background.
func WithMemorySweep(interval time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if interval > 0 {
			c.sweep = interval
		}
	}
}

// WithMemoryClock overrides the clock used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(c *memoryConfig) {
		c.now = now
	}
}
