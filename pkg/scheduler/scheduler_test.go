package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaDesk/pkg/logger"
)

func TestTicker_FiresPeriodically(t *testing.T) {
	s := New(context.Background(), logger.NewNop())
	defer s.StopAll()

	var n atomic.Int32
	s.Schedule("a", 10*time.Millisecond, func(context.Context) { n.Add(1) })

	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestTicker_SlowRunDoesNotBlockNextFiring(t *testing.T) {
	s := New(context.Background(), logger.NewNop())
	defer s.StopAll()

	release := make(chan struct{})
	defer close(release)

	var started atomic.Int32
	s.Schedule("slow", 10*time.Millisecond, func(context.Context) {
		started.Add(1)
		<-release
	})

	require.Eventually(t, func() bool { return started.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestTicker_ReplaceAndCancel(t *testing.T) {
	s := New(context.Background(), logger.NewNop())
	defer s.StopAll()

	var first, second atomic.Int32
	s.Schedule("a", 10*time.Millisecond, func(context.Context) { first.Add(1) })
	s.Schedule("a", 10*time.Millisecond, func(context.Context) { second.Add(1) })
	assert.Equal(t, []string{"a"}, s.Tasks())

	require.Eventually(t, func() bool { return second.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, first.Load(), int32(1))

	assert.True(t, s.Cancel("a"))
	assert.False(t, s.Cancel("a"))
	assert.Empty(t, s.Tasks())

	settled := second.Load()
	time.Sleep(40 * time.Millisecond)
	assert.LessOrEqual(t, second.Load()-settled, int32(1))
}

func TestTicker_PanicIsRecovered(t *testing.T) {
	s := New(context.Background(), logger.NewNop())
	defer s.StopAll()

	var n atomic.Int32
	s.Schedule("boom", 10*time.Millisecond, func(context.Context) {
		n.Add(1)
		panic("boom")
	})

	require.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestTicker_StopAll(t *testing.T) {
	s := New(context.Background(), logger.NewNop())
	s.Schedule("a", time.Hour, func(context.Context) {})
	s.Schedule("b", time.Hour, func(context.Context) {})
	assert.Equal(t, []string{"a", "b"}, s.Tasks())

	s.StopAll()
	assert.Empty(t, s.Tasks())
}
