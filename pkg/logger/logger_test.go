package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	batches []*LogBatch
}

func (p *capturePublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.(*LogBatch))
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func TestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel).With(String("agent", "Risk"))

	l.Info("tick done",
		Int("confidence", 72),
		Float64("cost", 0.25),
		Bool("halted", false),
		Duration("latency_ms", 1500*time.Millisecond),
		Error(errors.New("boom")),
		Strings("tasks", []string{"a", "b"}),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "tick done", got["message"])
	assert.Equal(t, "Risk", got["agent"])
	assert.Equal(t, 72.0, got["confidence"])
	assert.Equal(t, 1500.0, got["latency_ms"])
	assert.Equal(t, "boom", got["error"])
	assert.Equal(t, "a, b", got["tasks"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestCollector_AggregatesRepeats(t *testing.T) {
	pub := &capturePublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "system:logs", Publisher: pub})
	child := l.With(String("component", "router"))

	for i := 0; i < 3; i++ {
		child.Error("provider failed", String("provider", "openai"), Duration("latency_ms", time.Duration(i)*time.Second))
	}
	child.Error("provider failed", String("provider", "gemini"))
	l.Warn("warnings are not collected")

	l.collector.Flush()

	require.Equal(t, 1, pub.count())
	batch := pub.batches[0]
	assert.Equal(t, "system:logs", pub.topics[0])
	require.Len(t, batch.Entries, 2)
	assert.Equal(t, 3, batch.Entries[0].Count, "most frequent first")
	assert.Equal(t, "openai", batch.Entries[0].Fields["provider"])
	assert.NotContains(t, batch.Entries[0].Fields, "latency_ms")
	assert.Equal(t, 1, batch.Entries[1].Count)

	l.RemoveCollector()
}

func TestCollector_ThresholdFlushes(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "t", Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", map[string]interface{}{}, "x.go:1")
	c.AddLog("error", "b", map[string]interface{}{}, "x.go:2")

	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollector_CloseFlushesPending(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Publisher: pub})

	c.AddLog("error", "pending", map[string]interface{}{}, "x.go:1")
	c.Close()
	c.Close()

	assert.Equal(t, 1, pub.count())
}

func TestCollector_EmptyFlushPublishesNothing(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Publisher: pub})
	c.Flush()
	c.Close()
	assert.Zero(t, pub.count())
}
