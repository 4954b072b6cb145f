package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	domrepo "AlphaDesk/internal/domain/repository"
	applogger "AlphaDesk/pkg/logger"
	"AlphaDesk/pkg/pubsub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message types pushed to dashboard clients.
const (
	TypeAlphaUpdate = "alpha_update"
	TypeAgentLog    = "agent_log"
	TypeSystemLog   = "system_log"
)

// Envelope is the frame every client receives.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans broadcast messages out to every connected WebSocket client.
// Each client has its own buffered queue so one slow reader never stalls the rest.
type Hub struct {
	upgrader websocket.Upgrader
	sendBuf  int
	metrics  domrepo.Metrics
	l        *applogger.Logger
	now      func() time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}
	unsubs  []func()
	closed  bool
}

func NewHub(sendBuf int, metrics domrepo.Metrics, l *applogger.Logger) *Hub {
	if sendBuf <= 0 {
		sendBuf = 64
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sendBuf: sendBuf,
		metrics: metrics,
		l:       l,
		now:     time.Now,
		clients: make(map[*client]struct{}),
	}
}

// Forward relays the live alpha, agent-log and aggregated error channels to clients.
func (h *Hub) Forward(bus pubsub.Bus) error {
	routes := map[string]string{
		pubsub.ChannelAlphaUpdates: TypeAlphaUpdate,
		pubsub.ChannelAgentLogs:    TypeAgentLog,
		pubsub.ChannelSystemLogs:   TypeSystemLog,
	}
	for channel, msgType := range routes {
		msgType := msgType
		unsub, err := bus.Subscribe(channel, func(_ context.Context, _ string, payload []byte) {
			h.broadcast(msgType, payload, false)
		})
		if err != nil {
			return err
		}
		h.mu.Lock()
		h.unsubs = append(h.unsubs, unsub)
		h.mu.Unlock()
	}
	return nil
}

// BroadcastAll force-pushes a message: a full client queue drops its oldest
// frame to make room rather than dropping this one.
func (h *Hub) BroadcastAll(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.l.Error("realtime payload encode failed", applogger.String("type", msgType), applogger.Error(err))
		return
	}
	h.broadcast(msgType, data, true)
}

func (h *Hub) broadcast(msgType string, data []byte, force bool) {
	frame, err := json.Marshal(Envelope{Type: msgType, Data: data, Timestamp: h.now().UTC()})
	if err != nil {
		h.l.Error("realtime frame encode failed", applogger.String("type", msgType), applogger.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
			continue
		default:
		}
		if !force {
			h.metrics.RecordError("realtime_drop")
			continue
		}
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- frame:
		default:
			h.metrics.RecordError("realtime_drop")
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.sendBuf)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.l.Debug("websocket client connected", applogger.Int("clients", n))

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump only exists to notice disconnects and answer pings.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// Close detaches from the bus and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, unsub := range h.unsubs {
		unsub()
	}
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
