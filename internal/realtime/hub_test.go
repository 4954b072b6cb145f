package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/metrics"
	"AlphaDesk/pkg/pubsub"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastAllReachesEveryClient(t *testing.T) {
	h := NewHub(8, metrics.Nop{}, logger.NewNop())
	defer h.Close()
	srv := httptest.NewServer(h)
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	waitClients(t, h, 2)

	h.BroadcastAll("emergency_halt", map[string]string{"reason": "risk"})

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		assert.Equal(t, "emergency_halt", env.Type)
		assert.JSONEq(t, `{"reason":"risk"}`, string(env.Data))
	}
}

func TestHub_ForwardsBusChannels(t *testing.T) {
	bus := pubsub.NewMemoryBus()
	h := NewHub(8, metrics.Nop{}, logger.NewNop())
	defer h.Close()
	require.NoError(t, h.Forward(bus))
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, h, 1)

	require.NoError(t, bus.Publish(context.Background(), pubsub.ChannelAlphaUpdates, map[string]int{"confidence": 71}))
	env := readEnvelope(t, conn)
	assert.Equal(t, TypeAlphaUpdate, env.Type)
	assert.JSONEq(t, `{"confidence":71}`, string(env.Data))

	require.NoError(t, bus.Publish(context.Background(), pubsub.ChannelAgentLogs, map[string]string{"agentName": "Risk"}))
	assert.Equal(t, TypeAgentLog, readEnvelope(t, conn).Type)
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	h := NewHub(8, metrics.Nop{}, logger.NewNop())
	defer h.Close()
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, h, 1)
	require.NoError(t, conn.Close())
	waitClients(t, h, 0)
}

func TestHub_ForcedFrameDisplacesOldestWhenQueueFull(t *testing.T) {
	h := NewHub(1, metrics.Nop{}, logger.NewNop())
	c := &client{send: make(chan []byte, 1)}
	h.clients[c] = struct{}{}

	h.broadcast(TypeAgentLog, []byte(`1`), false)
	h.broadcast(TypeAgentLog, []byte(`2`), false)
	h.BroadcastAll("emergency_halt", 3)

	var env Envelope
	require.NoError(t, json.Unmarshal(<-c.send, &env))
	assert.Equal(t, "emergency_halt", env.Type)
}
