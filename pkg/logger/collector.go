package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher receives flushed batches; a pubsub.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, default 30s
	CountThreshold int           // distinct entries that force an early flush, default 100
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one distinct error and how often it repeated.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the payload published on each flush, most frequent first.
type LogBatch struct {
	Entries   []AggregatedLogEntry `json:"entries"`
	FlushedAt time.Time            `json:"flushed_at"`
}

// LogCollector deduplicates errors between flushes so a failing dependency
// produces one line with a count instead of a flood.
type LogCollector struct {
	config *CollectionConfig
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	d := &LogCollector{
		config:  config,
		now:     time.Now,
		entries: make(map[string]*AggregatedLogEntry),
		stop:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	// occurrence-specific values would defeat aggregation
	delete(fields, "latency_ms")
	key := entryKey(level, message, fields, caller)
	now := d.now()

	d.mu.Lock()
	if e, ok := d.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		d.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch *LogBatch
	if len(d.entries) >= d.config.CountThreshold {
		batch = d.drainLocked()
	}
	d.mu.Unlock()

	if batch != nil {
		go d.publish(batch)
	}
}

// Flush publishes whatever is pending and waits for the publish to return.
func (d *LogCollector) Flush() {
	d.mu.Lock()
	batch := d.drainLocked()
	d.mu.Unlock()
	d.publish(batch)
}

// Close stops the periodic flush after a final one.
func (d *LogCollector) Close() {
	d.once.Do(func() {
		close(d.stop)
		d.wg.Wait()
	})
}

func (d *LogCollector) run() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Flush()
		case <-d.stop:
			d.Flush()
			return
		}
	}
}

func (d *LogCollector) drainLocked() *LogBatch {
	if len(d.entries) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, *e)
	}
	d.entries = make(map[string]*AggregatedLogEntry)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return &LogBatch{Entries: out, FlushedAt: d.now()}
}

func (d *LogCollector) publish(batch *LogBatch) {
	if batch == nil || d.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.config.Publisher.Publish(ctx, d.config.Topic, batch); err != nil {
		// Logging through the logger here could feed the collector its own failure.
		fmt.Fprintf(os.Stderr, "log collector: publish %d entries: %v\n", len(batch.Entries), err)
	}
}

func entryKey(level, message string, fields map[string]interface{}, caller string) string {
	data, _ := json.Marshal(struct {
		Level   string                 `json:"l"`
		Message string                 `json:"m"`
		Fields  map[string]interface{} `json:"f"`
		Caller  string                 `json:"c"`
	}{level, message, fields, caller})
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:16])
}
