package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_PublishDeliversToChannelSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	var got []string

	_, err := bus.Subscribe(ChannelAlphaUpdates, func(_ context.Context, ch string, payload []byte) {
		got = append(got, ch+"="+string(payload))
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(ChannelAgentLogs, func(context.Context, string, []byte) {
		t.Fatal("wrong channel delivered")
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), ChannelAlphaUpdates, map[string]int{"confidence": 71}))
	assert.Equal(t, []string{`alpha:updates={"confidence":71}`}, got)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	calls := 0
	unsub, err := bus.Subscribe("c", func(context.Context, string, []byte) { calls++ })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "c", "x"))
	unsub()
	require.NoError(t, bus.Publish(context.Background(), "c", "x"))
	assert.Equal(t, 1, calls)
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus()
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), "c", 1), ErrClosed)
	_, err := bus.Subscribe("c", func(context.Context, string, []byte) {})
	assert.ErrorIs(t, err, ErrClosed)
}

type fakeMirror struct {
	topics []string
	keys   []string
	err    error
}

func (f *fakeMirror) Publish(_ context.Context, topic string, key []byte, _ interface{}) error {
	f.topics = append(f.topics, topic)
	f.keys = append(f.keys, string(key))
	return f.err
}

func TestMirroredBus_CopiesAndIgnoresMirrorFailure(t *testing.T) {
	primary := NewMemoryBus()
	mirror := &fakeMirror{err: errors.New("broker down")}
	bus := NewMirroredBus(primary, mirror, "alphadesk.broadcast", testLogger(t))

	delivered := 0
	_, err := bus.Subscribe(ChannelEmergency, func(context.Context, string, []byte) { delivered++ })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), ChannelEmergency, map[string]string{"type": "halt"}))
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"alphadesk.broadcast"}, mirror.topics)
	assert.Equal(t, []string{ChannelEmergency}, mirror.keys)
}
